package recurrence

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrackr/backend/pkg/model"
)

func strPtr(s string) *string { return &s }

func TestIsDue(t *testing.T) {
	// 2025-01-06 Monday, 2025-01-07 Tuesday, 2025-01-08 Wednesday
	tests := []struct {
		name     string
		med      model.Medication
		rule     model.ScheduleRule
		date     string
		expected bool
	}{
		{
			name:     "daily within bounds",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDaily},
			date:     "2025-01-06",
			expected: true,
		},
		{
			name:     "before start date",
			med:      model.Medication{StartDate: "2025-01-10"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDaily},
			date:     "2025-01-06",
			expected: false,
		},
		{
			name:     "after end date",
			med:      model.Medication{StartDate: "2025-01-01", EndDate: strPtr("2025-01-05")},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDaily},
			date:     "2025-01-06",
			expected: false,
		},
		{
			name:     "end date inclusive",
			med:      model.Medication{StartDate: "2025-01-01", EndDate: strPtr("2025-01-06")},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDaily},
			date:     "2025-01-06",
			expected: true,
		},
		{
			name:     "as needed never due",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyAsNeeded},
			date:     "2025-01-06",
			expected: false,
		},
		{
			name:     "weekly matching day by name",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: strPtr(`["monday","wednesday"]`)},
			date:     "2025-01-06",
			expected: true,
		},
		{
			name:     "weekly non-matching day by name",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: strPtr(`["monday","wednesday"]`)},
			date:     "2025-01-07",
			expected: false,
		},
		{
			name:     "weekly matching day by index",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: strPtr(`[1,3]`)},
			date:     "2025-01-06",
			expected: true,
		},
		{
			name:     "weekly empty day set means every day",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: strPtr(`[]`)},
			date:     "2025-01-07",
			expected: true,
		},
		{
			name:     "weekly nil day set means every day",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly},
			date:     "2025-01-07",
			expected: true,
		},
		{
			name:     "weekly malformed day set fails open",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: strPtr(`{broken`)},
			date:     "2025-01-07",
			expected: true,
		},
		{
			name:     "date range without end date never due",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDateRange},
			date:     "2025-01-06",
			expected: false,
		},
		{
			name:     "date range within bounds",
			med:      model.Medication{StartDate: "2025-01-01", EndDate: strPtr("2025-01-31")},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDateRange},
			date:     "2025-01-06",
			expected: true,
		},
		{
			name:     "date range with day mask",
			med:      model.Medication{StartDate: "2025-01-01", EndDate: strPtr("2025-01-31")},
			rule:     model.ScheduleRule{Frequency: model.FrequencyDateRange, DaysOfWeek: strPtr(`["tuesday"]`)},
			date:     "2025-01-06",
			expected: false,
		},
		{
			name:     "unknown frequency never due",
			med:      model.Medication{StartDate: "2025-01-01"},
			rule:     model.ScheduleRule{Frequency: "hourly"},
			date:     "2025-01-06",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsDue(tt.med, tt.rule, tt.date))
		})
	}
}

func TestParseDaysOfWeek(t *testing.T) {
	days, err := ParseDaysOfWeek(`["Monday", " friday "]`)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, days)

	days, err = ParseDaysOfWeek(`[0, 6, 7, -1]`)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, days)

	days, err = ParseDaysOfWeek(`["notaday"]`)
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = ParseDaysOfWeek(`{broken`)
	assert.Error(t, err)
}

func TestNameAndIndexEncodingsAgree(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	names := []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

	properties.Property("name-based and index-based day sets are equivalent", prop.ForAll(
		func(indices []int, dayOffset int) bool {
			nameParts := make([]string, len(indices))
			indexParts := make([]string, len(indices))
			for i, idx := range indices {
				nameParts[i] = fmt.Sprintf("%q", names[idx])
				indexParts[i] = fmt.Sprintf("%d", idx)
			}
			byName := "[" + strings.Join(nameParts, ",") + "]"
			byIndex := "[" + strings.Join(indexParts, ",") + "]"

			med := model.Medication{StartDate: "2025-01-01"}
			date := time.Date(2025, 1, 5, 0, 0, 0, 0, time.Local).
				AddDate(0, 0, dayOffset).Format("2006-01-02")

			nameRule := model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: &byName}
			indexRule := model.ScheduleRule{Frequency: model.FrequencyWeekly, DaysOfWeek: &byIndex}
			return IsDue(med, nameRule, date) == IsDue(med, indexRule, date)
		},
		gen.SliceOf(gen.IntRange(0, 6)),
		gen.IntRange(0, 27),
	))

	properties.TestingRun(t)
}
