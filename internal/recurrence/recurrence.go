// Package recurrence decides whether a medication schedule is due on a given
// calendar date. It is pure: both the reconciliation engine and the analytics
// aggregator call through here, so the two can never disagree about what
// counts as an expected dose.
package recurrence

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/medtrackr/backend/internal/dateutil"
	"github.com/medtrackr/backend/pkg/model"
)

// Malformed days_of_week JSON must not abort a query. Historically both
// weekly and date_range treated an unreadable day set as "due every day";
// the constants keep that policy explicit and independently toggleable.
const (
	weeklyFailOpen    = true
	dateRangeFailOpen = true
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// IsDue reports whether the schedule for med is due on date. The date bounds
// (start inclusive, end inclusive when present) come from the medication
// definition; frequency and day-of-week mask come from the schedule row.
func IsDue(med model.Medication, rule model.ScheduleRule, date string) bool {
	if date < med.StartDate {
		return false
	}
	if med.EndDate != nil && *med.EndDate != "" && date > *med.EndDate {
		return false
	}

	switch rule.Frequency {
	case model.FrequencyDaily:
		return true
	case model.FrequencyAsNeeded:
		// As-needed medications are never automatically due.
		return false
	case model.FrequencyWeekly:
		return dueOnWeekday(rule.DaysOfWeek, date, weeklyFailOpen)
	case model.FrequencyDateRange:
		// date_range is meaningless without a closed end bound.
		if med.EndDate == nil || *med.EndDate == "" {
			return false
		}
		if rule.DaysOfWeek == nil || *rule.DaysOfWeek == "" {
			return true
		}
		return dueOnWeekday(rule.DaysOfWeek, date, dateRangeFailOpen)
	default:
		return false
	}
}

// dueOnWeekday tests whether date's weekday is in the serialized day set.
// An empty or absent set means due every day (backward compatibility with
// rows written before the day mask existed).
func dueOnWeekday(raw *string, date string, failOpen bool) bool {
	if raw == nil || *raw == "" {
		return true
	}

	days, err := ParseDaysOfWeek(*raw)
	if err != nil {
		return failOpen
	}
	if len(days) == 0 {
		return true
	}

	weekday, err := dateutil.WeekdayOf(date)
	if err != nil {
		return false
	}
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

// ParseDaysOfWeek decodes a serialized day set. Both historical encodings are
// accepted: an array of weekday name strings ("monday") or an array of 0-6
// integers with 0=Sunday. The element type of the first entry selects the
// branch. Unknown names and out-of-range indices are skipped.
func ParseDaysOfWeek(raw string) ([]time.Weekday, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, nil
	}

	var days []time.Weekday
	if elems[0][0] == '"' {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, err
		}
		for _, name := range names {
			if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
				days = append(days, d)
			}
		}
		return days, nil
	}

	var indices []int
	if err := json.Unmarshal([]byte(raw), &indices); err != nil {
		return nil, err
	}
	for _, i := range indices {
		if i >= 0 && i <= 6 {
			days = append(days, time.Weekday(i))
		}
	}
	return days, nil
}
