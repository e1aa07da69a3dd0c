package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/medtrackr/backend/internal/dateutil"
	"github.com/medtrackr/backend/pkg/model"
)

// streakWindowDays is the trailing window streaks are computed over
const streakWindowDays = 30

// AnalyticsService computes expected-vs-actual adherence over date ranges and
// perfect-day streaks. It plans expected doses through the same
// expectedOccurrences function as the reconciliation engine, so its totals
// always agree with the per-date occurrence view for the same catalog state.
type AnalyticsService struct {
	catalog *CatalogService
	logs    *HealthLogService
	logger  *zap.Logger

	now func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(catalog *CatalogService, logs *HealthLogService, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		catalog: catalog,
		logs:    logs,
		logger:  logger,
		now:     time.Now,
	}
}

// StatsForRange computes expected and actual dose counts for [start, end]
func (s *AnalyticsService) StatsForRange(ctx context.Context, start, end string) (*model.RangeStats, error) {
	dates, err := dateutil.DatesBetween(start, end)
	if err != nil {
		return nil, err
	}

	scheduled, err := s.catalog.ListScheduled(ctx)
	if err != nil {
		return nil, err
	}

	logged, err := s.loggedStatuses(ctx, start, end)
	if err != nil {
		return nil, err
	}

	stats := &model.RangeStats{}
	today := dateutil.Today()
	nowClock := s.now().Format(dateutil.TimeSlotLayout)

	for _, date := range dates {
		for _, sm := range expectedOccurrences(scheduled, date) {
			stats.Total++

			if status, ok := logged[logKey{sm.Medication.ID, date}]; ok {
				switch status {
				case model.StatusTaken:
					stats.Taken++
				case model.StatusSkipped:
					stats.Skipped++
				case model.StatusMissed:
					stats.Missed++
				default:
					stats.Pending++
				}
				continue
			}

			switch {
			case date < today:
				stats.Missed++
			case date == today:
				// Today splits on whether the slot has already elapsed.
				if sm.Schedule.TimeSlot <= nowClock {
					stats.Missed++
				} else {
					stats.Pending++
				}
			default:
				stats.Pending++
			}
		}
	}

	stats.AdherenceRate = percentage(stats.Taken, stats.Total)

	s.logger.Info("range stats computed",
		zap.String("start", start),
		zap.String("end", end),
		zap.Int("total", stats.Total),
		zap.Int("adherence_rate", stats.AdherenceRate),
	)
	return stats, nil
}

// StreakData walks the trailing window and reports the current and longest
// runs of perfect days. A day is perfect when at least one dose was expected
// and every expected dose was taken. An imperfect today does not break the
// current streak — the day is not over yet — but only a perfect today extends
// it.
func (s *AnalyticsService) StreakData(ctx context.Context) (*model.StreakData, error) {
	today := dateutil.Today()
	todayT, err := dateutil.Parse(today)
	if err != nil {
		return nil, err
	}
	start := dateutil.ToDateString(todayT.AddDate(0, 0, -(streakWindowDays - 1)))

	dates, err := dateutil.DatesBetween(start, today)
	if err != nil {
		return nil, err
	}

	scheduled, err := s.catalog.ListScheduled(ctx)
	if err != nil {
		return nil, err
	}
	logged, err := s.loggedStatuses(ctx, start, today)
	if err != nil {
		return nil, err
	}

	perfect := make(map[string]bool, len(dates))
	for _, date := range dates {
		total, taken := 0, 0
		for _, sm := range expectedOccurrences(scheduled, date) {
			total++
			if logged[logKey{sm.Medication.ID, date}] == model.StatusTaken {
				taken++
			}
		}
		perfect[date] = total > 0 && taken == total
	}

	data := &model.StreakData{}

	run := 0
	for _, date := range dates {
		if perfect[date] {
			run++
			if run > data.LongestStreak {
				data.LongestStreak = run
			}
		} else {
			run = 0
		}
	}

	for i := len(dates) - 1; i >= 0; i-- {
		date := dates[i]
		if perfect[date] {
			data.CurrentStreak++
			continue
		}
		if date == today {
			continue
		}
		break
	}

	return data, nil
}

type logKey struct {
	medicationID int64
	date         string
}

// loggedStatuses keys log entries by (medication, date). First entry wins:
// rows arrive in ascending creation order and only the first per key is kept.
func (s *AnalyticsService) loggedStatuses(ctx context.Context, start, end string) (map[logKey]model.LogStatus, error) {
	entries, err := s.logs.QueryForRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	logged := make(map[logKey]model.LogStatus, len(entries))
	for _, e := range entries {
		key := logKey{e.MedicationID, dateutil.ToDateString(e.ScheduledTime)}
		if _, ok := logged[key]; !ok {
			logged[key] = e.Status
		}
	}
	return logged, nil
}
