// Package calendar holds the wall-clock arithmetic for the clinic's
// business timezone. Stored instants are absolute; everything that derives
// an hour, a weekday or a calendar date must project into the business
// timezone first, and every projection in the codebase goes through here.
package calendar

import (
	"fmt"
	"time"

	"github.com/avahealth/scheduling-api/pkg/errors"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	// TimeOfDayLayout is the bare time-of-day shape accepted by the agent.
	TimeOfDayLayout = "15:04"

	clockLayout = "3:04 PM"
)

// timestamp shapes accepted for start/end inputs, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// LoadLocation resolves an IANA zone name.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseDate parses a YYYY-MM-DD value as midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, errors.Validation(fmt.Sprintf("invalid date %q, use YYYY-MM-DD", value), err)
	}
	return t, nil
}

// ParseInstant parses a caller-supplied start or end value. The agent sends
// either a full timestamp or a bare HH:mm to be combined with date. All
// shapes resolve in loc; anything else is a validation failure.
func ParseInstant(value string, date time.Time, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	for _, layout := range []string{TimeOfDayLayout, "15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}
	return time.Time{}, errors.Validation(fmt.Sprintf("invalid time %q", value), nil)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last instant of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// IsWeekend reports whether t falls on a Saturday or Sunday in loc.
func IsWeekend(t time.Time, loc *time.Location) bool {
	wd := t.In(loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// FormatDate renders t's calendar date in loc as YYYY-MM-DD.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// FormatTimeRange renders a human-readable range like "9:00 AM - 9:30 AM".
func FormatTimeRange(start, end time.Time, loc *time.Location) string {
	return fmt.Sprintf("%s - %s", start.In(loc).Format(clockLayout), end.In(loc).Format(clockLayout))
}
