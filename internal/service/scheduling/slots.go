package scheduling

import (
	"sort"
	"time"

	"github.com/clinicflow/queue-api/internal/model"
)

// SlotInterval is the fixed booking grid width.
const SlotInterval = 30

// ComputeSlots returns the bookable "HH:MM" slots for a service on the
// given date. Windows whose weekday matches the date and that are active
// contribute slots on a 30-minute grid from StartTime up to, excluding,
// EndTime. Overlapping windows are unioned and deduplicated; the result is
// sorted ascending, which for zero-padded values is chronological order.
//
// An empty result is not an error: it means the service is closed that day.
// The function is pure and ignores "now" entirely; notice-window checks
// belong to the validator.
func ComputeSlots(schedules []model.ServiceSchedule, date time.Time) []string {
	weekday := int(date.Weekday())

	seen := make(map[int]struct{})
	for _, sched := range schedules {
		if sched.DayOfWeek != weekday || !sched.IsActive {
			continue
		}
		start, err := model.ParseClock(sched.StartTime)
		if err != nil {
			continue
		}
		end, err := model.ParseClock(sched.EndTime)
		if err != nil {
			continue
		}
		for m := start; m < end; m += SlotInterval {
			seen[m] = struct{}{}
		}
	}

	slots := make([]string, 0, len(seen))
	for m := range seen {
		slots = append(slots, formatClock(m))
	}
	sort.Strings(slots)
	return slots
}

func formatClock(minutes int) string {
	return time.Date(0, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format("15:04")
}
