package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/medtrackr/backend/internal/dateutil"
	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/repository"
	"github.com/medtrackr/backend/pkg/model"
)

// HealthLogService handles adherence events, side-effect reports and the
// cached daily summaries derived from them
type HealthLogService struct {
	repo   *repository.HealthLogRepository
	logger *zap.Logger
}

// NewHealthLogService creates a new HealthLogService
func NewHealthLogService(repo *repository.HealthLogRepository, logger *zap.Logger) *HealthLogService {
	return &HealthLogService{
		repo:   repo,
		logger: logger,
	}
}

// LogEvent appends a medication log entry and recomputes that date's summary
func (s *HealthLogService) LogEvent(ctx context.Context, entry *model.MedicationLogEntry) error {
	if entry.MedicationName == "" {
		return apperrors.NewValidation("medication name is required")
	}
	switch entry.Status {
	case model.StatusTaken, model.StatusSkipped, model.StatusMissed, model.StatusRescheduled, model.StatusPending:
	default:
		return apperrors.NewValidation("invalid log status")
	}
	if entry.UserID == "" {
		entry.UserID = model.LocalUserID
	}

	if _, err := s.repo.InsertLog(ctx, entry); err != nil {
		return err
	}

	date := dateutil.ToDateString(entry.ScheduledTime)
	if err := s.RecomputeDailySummary(ctx, date); err != nil {
		// The summary is a cache recomputed from source rows; a failed
		// refresh must not fail the write that succeeded.
		s.logger.Warn("summary recompute failed after log write",
			zap.Error(err),
			zap.String("date", date),
		)
	}

	s.logger.Info("medication event logged",
		zap.Int64("medication_id", entry.MedicationID),
		zap.String("status", string(entry.Status)),
		zap.String("date", date),
	)
	return nil
}

// UpdateStatus updates the matching log row in place, used for the
// taken/skipped toggle. A no-op when the status is already newStatus. This
// low-level path deliberately does not check interaction permission; the
// occurrence engine's commands do.
func (s *HealthLogService) UpdateStatus(ctx context.Context, medicationID int64, scheduledTime time.Time, newStatus model.LogStatus, note *string) error {
	switch newStatus {
	case model.StatusTaken, model.StatusSkipped, model.StatusMissed, model.StatusRescheduled:
	default:
		return apperrors.NewValidation("invalid log status")
	}

	changed, err := s.repo.UpdateLogStatus(ctx, medicationID, scheduledTime, newStatus, note)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	date := dateutil.ToDateString(scheduledTime)
	if err := s.RecomputeDailySummary(ctx, date); err != nil {
		s.logger.Warn("summary recompute failed after status update",
			zap.Error(err),
			zap.String("date", date),
		)
	}

	s.logger.Info("log status updated",
		zap.Int64("medication_id", medicationID),
		zap.String("new_status", string(newStatus)),
	)
	return nil
}

// LogSideEffect appends a side-effect report and recomputes the summary for
// the reported date
func (s *HealthLogService) LogSideEffect(ctx context.Context, entry *model.SideEffectEntry) error {
	if entry.Symptom == "" {
		return apperrors.NewValidation("symptom is required")
	}
	switch entry.Severity {
	case model.SeverityMild, model.SeverityModerate, model.SeveritySevere:
	default:
		return apperrors.NewValidation("invalid severity")
	}
	if entry.UserID == "" {
		entry.UserID = model.LocalUserID
	}
	if entry.ReportedTime.IsZero() {
		entry.ReportedTime = time.Now()
	}

	if _, err := s.repo.InsertSideEffect(ctx, entry); err != nil {
		return err
	}

	date := dateutil.ToDateString(entry.ReportedTime)
	if err := s.RecomputeDailySummary(ctx, date); err != nil {
		s.logger.Warn("summary recompute failed after side-effect write",
			zap.Error(err),
			zap.String("date", date),
		)
	}

	s.logger.Info("side effect logged",
		zap.String("symptom", entry.Symptom),
		zap.String("severity", string(entry.Severity)),
	)
	return nil
}

// DeleteSideEffect removes a side-effect report; no-op if it does not exist
func (s *HealthLogService) DeleteSideEffect(ctx context.Context, id int64) error {
	return s.repo.DeleteSideEffect(ctx, id)
}

// QueryForDate retrieves log entries for one calendar date
func (s *HealthLogService) QueryForDate(ctx context.Context, date string) ([]model.MedicationLogEntry, error) {
	return s.repo.LogsForDate(ctx, model.LocalUserID, date)
}

// QueryForRange retrieves log entries for a date range inclusive
func (s *HealthLogService) QueryForRange(ctx context.Context, start, end string) ([]model.MedicationLogEntry, error) {
	return s.repo.LogsForRange(ctx, model.LocalUserID, start, end)
}

// QueryLatestStatusMap returns the authoritative entry per medication for one
// date (highest creation time wins)
func (s *HealthLogService) QueryLatestStatusMap(ctx context.Context, date string) (map[int64]model.MedicationLogEntry, error) {
	return s.repo.LatestStatusByMedication(ctx, model.LocalUserID, date)
}

// QuerySideEffects retrieves side-effect reports for a date range
func (s *HealthLogService) QuerySideEffects(ctx context.Context, start, end string) ([]model.SideEffectEntry, error) {
	return s.repo.SideEffectsForRange(ctx, model.LocalUserID, start, end)
}

// GetDailySummary returns the cached summary row for a date
func (s *HealthLogService) GetDailySummary(ctx context.Context, date string) (*model.DailyHealthSummary, error) {
	return s.repo.GetDailySummary(ctx, model.LocalUserID, date)
}

// AdherenceStats aggregates logged doses over a date range. One entry per
// (medication, date) pair counts; duplicates resolve to the most recently
// created row, matching the engine's status derivation.
func (s *HealthLogService) AdherenceStats(ctx context.Context, start, end string) (*model.AdherenceStats, error) {
	entries, err := s.repo.LogsForRange(ctx, model.LocalUserID, start, end)
	if err != nil {
		return nil, err
	}

	type key struct {
		medicationID int64
		date         string
	}
	latest := make(map[key]model.LogStatus)
	for _, e := range entries { // rows arrive in ascending created_at order
		latest[key{e.MedicationID, dateutil.ToDateString(e.ScheduledTime)}] = e.Status
	}

	stats := &model.AdherenceStats{}
	for _, status := range latest {
		stats.TotalDoses++
		switch status {
		case model.StatusTaken:
			stats.TakenDoses++
		case model.StatusSkipped:
			stats.SkippedDoses++
		case model.StatusMissed:
			stats.MissedDoses++
		}
	}
	stats.AdherencePercentage = percentage(stats.TakenDoses, stats.TotalDoses)
	return stats, nil
}

// RecomputeDailySummary rebuilds the cached summary row for one date from the
// medication_logs and side_effect_logs source rows
func (s *HealthLogService) RecomputeDailySummary(ctx context.Context, date string) error {
	latest, err := s.repo.LatestStatusByMedication(ctx, model.LocalUserID, date)
	if err != nil {
		return err
	}
	sideEffects, err := s.repo.SideEffectCountForDate(ctx, model.LocalUserID, date)
	if err != nil {
		return err
	}

	summary := &model.DailyHealthSummary{
		UserID:           model.LocalUserID,
		SummaryDate:      date,
		SideEffectsCount: sideEffects,
	}
	for _, e := range latest {
		summary.TotalMedications++
		switch e.Status {
		case model.StatusTaken:
			summary.MedicationsTaken++
		case model.StatusSkipped:
			summary.MedicationsSkipped++
		case model.StatusMissed:
			summary.MedicationsMissed++
		}
	}

	return s.repo.UpsertDailySummary(ctx, summary)
}

// percentage returns round(100*part/total), 0 when total is 0
func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
