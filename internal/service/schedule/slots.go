package schedule

import (
	"time"

	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/pkg/calendar"
)

// Business rules for the practice calendar. Fixed, not caller-overridable.
const (
	businessHourStart = 8
	businessHourEnd   = 17
	slotsPerHour      = 2
	slotDuration      = 30 * time.Minute
	maxRangeDays      = 30
)

const slotTimeLayout = "2006-01-02T15:04:05"

// generateOpenSlots walks each calendar day in [startDay, endDay] and emits
// the grid slots that are not in the past and not booked. startDay and
// endDay must be midnights in loc. The grid runs 08:00 through 16:30 so no
// slot's end exceeds 17:00.
func generateOpenSlots(startDay, endDay time.Time, booked []*model.Appointment, now time.Time, loc *time.Location) []model.Slot {
	slots := []model.Slot{}

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if calendar.IsWeekend(day, loc) {
			continue
		}

		for hour := businessHourStart; hour < businessHourEnd; hour++ {
			for i := 0; i < slotsPerHour; i++ {
				minute := i * (60 / slotsPerHour)
				slotStart := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
				slotEnd := slotStart.Add(slotDuration)

				if slotStart.Before(now) {
					continue
				}
				if isBooked(slotStart, slotEnd, booked) {
					continue
				}

				slots = append(slots, model.Slot{
					Date:          calendar.FormatDate(slotStart, loc),
					StartTime:     slotStart.In(loc).Format(slotTimeLayout),
					EndTime:       slotEnd.In(loc).Format(slotTimeLayout),
					FormattedTime: calendar.FormatTimeRange(slotStart, slotEnd, loc),
				})
			}
		}
	}

	return slots
}

// isBooked applies the half-open overlap test plus exact boundary
// coincidence. A booking starting or ending exactly on the slot boundary
// still blocks the slot: the practice does not offer back-to-back slots
// against an existing booking's edge.
func isBooked(slotStart, slotEnd time.Time, booked []*model.Appointment) bool {
	for _, appt := range booked {
		if appt.StartTime.Equal(slotStart) || appt.EndTime.Equal(slotEnd) {
			return true
		}
		if appt.StartTime.Before(slotEnd) && appt.EndTime.After(slotStart) {
			return true
		}
	}
	return false
}
