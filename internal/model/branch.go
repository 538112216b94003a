package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRescheduleNoticeHours applies when a branch has no explicit policy.
const DefaultRescheduleNoticeHours = 24

type Branch struct {
	Base
	Name     string `db:"name" json:"name"`
	Location string `db:"location" json:"location"`
	Status   string `db:"status" json:"status"`
}

// BranchPolicy holds the per-branch reschedule settings. One row per branch,
// mutated only through the admin configuration endpoints.
type BranchPolicy struct {
	BranchID             uuid.UUID `db:"branch_id" json:"branch_id"`
	RescheduleTimeLimit  int       `db:"reschedule_time_limit" json:"reschedule_time_limit"`
	AllowSameDayBooking  bool      `db:"allow_same_day_booking" json:"allow_same_day_booking"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// NoticeHours returns the policy's notice window, falling back to the
// default when the stored value is missing or non-positive.
func (p *BranchPolicy) NoticeHours() int {
	if p == nil || p.RescheduleTimeLimit <= 0 {
		return DefaultRescheduleNoticeHours
	}
	return p.RescheduleTimeLimit
}

type UpdateBranchPolicyRequest struct {
	RescheduleTimeLimit *int  `json:"reschedule_time_limit" binding:"omitempty,gte=1,lte=720"`
	AllowSameDayBooking *bool `json:"allow_same_day_booking"`
}
