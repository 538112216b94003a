package scheduling

import (
	"fmt"
	"time"

	"github.com/clinicflow/queue-api/internal/model"
)

// AdminNoticeHours is the relaxed notice floor for administrators.
const AdminNoticeHours = 2

// RoleAdmin is the role claim value that unlocks the relaxed notice window.
const RoleAdmin = "admin"

type RejectionKind string

const (
	RejectMissingDate        RejectionKind = "missing_date"
	RejectMissingTime        RejectionKind = "missing_time"
	RejectPastDate           RejectionKind = "past_date"
	RejectTodayTooSoon       RejectionKind = "today_too_soon"
	RejectInsufficientNotice RejectionKind = "insufficient_notice"
	RejectTimeNotAvailable   RejectionKind = "time_not_available"
	RejectNoSlotsForDay      RejectionKind = "no_slots_for_day"
)

// Rejection is a recoverable, user-facing validation failure. Kind is the
// machine-readable taxonomy; MinAllowed and ClosedDay carry the
// interpolation data a caller needs to render a specific message.
type Rejection struct {
	Kind       RejectionKind `json:"kind"`
	MinAllowed *time.Time    `json:"min_allowed,omitempty"`
	ClosedDay  string        `json:"closed_day,omitempty"`
}

func (r *Rejection) Error() string {
	switch r.Kind {
	case RejectMissingDate:
		return "a reschedule date is required"
	case RejectMissingTime:
		return "a reschedule time is required"
	case RejectPastDate:
		return "the chosen date is in the past"
	case RejectTodayTooSoon:
		return fmt.Sprintf("too close to now, earliest allowed is %s", r.MinAllowed.Format(time.RFC3339))
	case RejectInsufficientNotice:
		return fmt.Sprintf("insufficient notice, earliest allowed is %s", r.MinAllowed.Format(time.RFC3339))
	case RejectTimeNotAvailable:
		return "the chosen time is not an available slot"
	case RejectNoSlotsForDay:
		return fmt.Sprintf("the service is not open on %s", r.ClosedDay)
	default:
		return string(r.Kind)
	}
}

// ValidateInput is everything the reschedule validator consumes. Date is
// nil when the caller supplied no date; Time is empty when no time was
// chosen yet. Policy may be nil (branch without explicit configuration).
type ValidateInput struct {
	Date      *time.Time
	Time      string
	Role      string
	Policy    *model.BranchPolicy
	Schedules []model.ServiceSchedule
	Now       time.Time
}

// ValidateReschedule decides whether the candidate date+time is a legal
// reschedule target. It is pure and re-entrant: no I/O, no mutation, and
// deterministic for a given input.
//
// Day-level problems are reported before time-level ones, so a caller with
// both sees the day-level message. When no time has been chosen yet the
// end of the candidate day stands in for it, so an otherwise-valid day is
// not rejected purely for the missing time.
func ValidateReschedule(in ValidateInput) *Rejection {
	noticeHours := in.Policy.NoticeHours()
	if in.Role == RoleAdmin {
		noticeHours = AdminNoticeHours
	}
	minAllowed := in.Now.Add(time.Duration(noticeHours) * time.Hour)

	if in.Date == nil {
		return &Rejection{Kind: RejectMissingDate}
	}

	loc := in.Now.Location()
	dayStart := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, loc)
	candidate := dayStart.Add(24*time.Hour - time.Millisecond)
	if in.Time != "" {
		if minutes, err := model.ParseClock(in.Time); err == nil {
			candidate = dayStart.Add(time.Duration(minutes) * time.Minute)
		}
	}

	todayStart := time.Date(in.Now.Year(), in.Now.Month(), in.Now.Day(), 0, 0, 0, 0, loc)
	switch {
	case dayStart.Before(todayStart):
		return &Rejection{Kind: RejectPastDate}
	case dayStart.Equal(todayStart) && candidate.Before(minAllowed):
		return &Rejection{Kind: RejectTodayTooSoon, MinAllowed: &minAllowed}
	case candidate.Before(minAllowed):
		return &Rejection{Kind: RejectInsufficientNotice, MinAllowed: &minAllowed}
	}

	if in.Time == "" {
		return &Rejection{Kind: RejectMissingTime}
	}

	slots := ComputeSlots(in.Schedules, *in.Date)
	if len(slots) == 0 {
		// Closed weekday, not a taken slot: the message must name the day.
		return &Rejection{Kind: RejectNoSlotsForDay, ClosedDay: in.Date.Weekday().String()}
	}
	for _, slot := range slots {
		if slot == in.Time {
			return nil
		}
	}
	return &Rejection{Kind: RejectTimeNotAvailable}
}
