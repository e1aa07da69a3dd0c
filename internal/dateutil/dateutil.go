// Package dateutil holds the calendar-date helpers every component must use
// for date comparison. Dates travel through the system as local-timezone
// YYYY-MM-DD strings; lexicographic order on those strings matches
// chronological order, but any comparison through time.Time has to zero out
// the time of day first or sub-day drift produces off-by-one dates.
package dateutil

import (
	"fmt"
	"time"
)

// DateLayout is the canonical calendar-date format
const DateLayout = "2006-01-02"

// TimeSlotLayout is the canonical time-of-day format for schedule slots
const TimeSlotLayout = "15:04"

// Today returns the current calendar date in the local timezone
func Today() string {
	return ToDateString(time.Now())
}

// ToDateString formats t as a local-timezone calendar date
func ToDateString(t time.Time) string {
	return t.Local().Format(DateLayout)
}

// Parse converts a YYYY-MM-DD string to local midnight of that date
func Parse(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// Classification describes where a date sits relative to today
type Classification struct {
	IsToday  bool
	IsPast   bool
	IsFuture bool
}

// Classify compares date against today's local date
func Classify(date string) Classification {
	today := Today()
	switch {
	case date == today:
		return Classification{IsToday: true}
	case date < today:
		return Classification{IsPast: true}
	default:
		return Classification{IsFuture: true}
	}
}

// IsToday reports whether date is the current local calendar date
func IsToday(date string) bool { return date == Today() }

// IsPast reports whether date is strictly before today
func IsPast(date string) bool { return date < Today() }

// IsFuture reports whether date is strictly after today
func IsFuture(date string) bool { return date > Today() }

// DatesBetween returns every calendar date from start to end inclusive.
// Returns an error if either bound is malformed or end precedes start.
func DatesBetween(start, end string) ([]string, error) {
	startT, err := Parse(start)
	if err != nil {
		return nil, err
	}
	endT, err := Parse(end)
	if err != nil {
		return nil, err
	}
	if endT.Before(startT) {
		return nil, fmt.Errorf("end date %s precedes start date %s", end, start)
	}

	var dates []string
	for d := startT; !d.After(endT); d = d.AddDate(0, 0, 1) {
		dates = append(dates, ToDateString(d))
	}
	return dates, nil
}

// WeekdayOf returns the weekday of a calendar date
func WeekdayOf(date string) (time.Weekday, error) {
	t, err := Parse(date)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}

// CombineDateTime returns the instant for a date plus an HH:MM slot in the
// local timezone.
func CombineDateTime(date, timeSlot string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+"T"+TimeSlotLayout, date+"T"+timeSlot, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, timeSlot, err)
	}
	return t, nil
}
