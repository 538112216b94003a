package model

import (
	"time"

	"github.com/google/uuid"
)

type Service struct {
	Base
	BranchID    uuid.UUID `db:"branch_id" json:"branch_id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Duration    int       `db:"duration" json:"duration"` // in minutes
	Status      string    `db:"status" json:"status"`
}

// ServiceSchedule is one weekly opening window for a service. A service may
// carry several rows for the same weekday (split morning/afternoon shifts).
// StartTime and EndTime are zero-padded "HH:MM" wall-clock values and
// StartTime < EndTime is enforced at creation time.
type ServiceSchedule struct {
	Base
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"` // 0 = Sunday .. 6 = Saturday
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

type CreateScheduleRequest struct {
	ServiceID uuid.UUID `json:"service_id" binding:"required"`
	DayOfWeek int       `json:"day_of_week" binding:"gte=0,lte=6"`
	StartTime string    `json:"start_time" binding:"required,len=5"`
	EndTime   string    `json:"end_time" binding:"required,len=5"`
	IsActive  *bool     `json:"is_active"`
}

type UpdateScheduleRequest struct {
	DayOfWeek *int    `json:"day_of_week" binding:"omitempty,gte=0,lte=6"`
	StartTime *string `json:"start_time" binding:"omitempty,len=5"`
	EndTime   *string `json:"end_time" binding:"omitempty,len=5"`
	IsActive  *bool   `json:"is_active"`
}

// ParseClock parses a zero-padded "HH:MM" value into minutes since midnight.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
