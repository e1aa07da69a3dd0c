package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/medtrackr/backend/internal/dateutil"
	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/recurrence"
	"github.com/medtrackr/backend/pkg/model"
)

// missedSweepNote marks log rows written by the sweep rather than the user
const missedSweepNote = "automatically marked missed"

// expectedOccurrences filters a catalog join down to the schedules due on
// date. The reconciliation engine and the analytics aggregator both derive
// their expected set through this one function, so the home view and the
// analytics view can never disagree about which doses were expected.
func expectedOccurrences(scheduled []model.ScheduledMedication, date string) []model.ScheduledMedication {
	var due []model.ScheduledMedication
	for _, sm := range scheduled {
		if recurrence.IsDue(sm.Medication, sm.Schedule, date) {
			due = append(due, sm)
		}
	}
	return due
}

// OccurrenceService derives, for any calendar date, the authoritative set of
// medication occurrences, their current status and whether the user may still
// act on them, and reconciles that view against persisted log rows.
type OccurrenceService struct {
	catalog *CatalogService
	logs    *HealthLogService
	logger  *zap.Logger
}

// NewOccurrenceService creates a new OccurrenceService
func NewOccurrenceService(catalog *CatalogService, logs *HealthLogService, logger *zap.Logger) *OccurrenceService {
	return &OccurrenceService{
		catalog: catalog,
		logs:    logs,
		logger:  logger,
	}
}

// OccurrencesForDate produces the unified, time-ordered occurrence list for
// one date: expected doses from the active catalog plus orphaned log entries
// whose medication has since been deleted.
func (s *OccurrenceService) OccurrencesForDate(ctx context.Context, date string) ([]model.Occurrence, error) {
	cls := dateutil.Classify(date)

	// Finalize stale pending occurrences before reading a past date. A sweep
	// failure degrades to the runtime-inferred missed status below; it must
	// not block the user from seeing their day.
	if cls.IsPast {
		if err := s.SweepMissed(ctx, date); err != nil {
			s.logger.Warn("missed sweep failed, proceeding with inferred statuses",
				zap.Error(err),
				zap.String("date", date),
			)
		}
	}

	scheduled, err := s.catalog.ListScheduled(ctx)
	if err != nil {
		return nil, err
	}
	due := expectedOccurrences(scheduled, date)

	// One query for every medication's authoritative status, not one per
	// medication.
	statusMap, err := s.logs.QueryLatestStatusMap(ctx, date)
	if err != nil {
		return nil, err
	}

	occurrences := make([]model.Occurrence, 0, len(due))
	expectedIDs := make(map[int64]bool, len(due))
	for _, sm := range due {
		expectedIDs[sm.Medication.ID] = true

		occ := model.Occurrence{
			MedicationID:   sm.Medication.ID,
			MedicationName: sm.Medication.Name,
			Dosage:         sm.Medication.Dosage,
			TimeSlot:       sm.Schedule.TimeSlot,
			Date:           date,
		}
		if entry, ok := statusMap[sm.Medication.ID]; ok {
			occ.Status = entry.Status
			occ.ActualTime = entry.ActualTime
		} else if cls.IsPast {
			occ.Status = model.StatusMissed
		} else {
			occ.Status = model.StatusPending
		}
		occ.CanInteract = canInteract(cls, occ.Status)
		occurrences = append(occurrences, occ)
	}

	orphans := s.orphanedOccurrences(ctx, date, statusMap, expectedIDs)
	occurrences = append(occurrences, orphans...)

	// HH:MM slots are zero-padded, so string order is chronological order.
	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].TimeSlot != occurrences[j].TimeSlot {
			return occurrences[i].TimeSlot < occurrences[j].TimeSlot
		}
		return occurrences[i].MedicationName < occurrences[j].MedicationName
	})
	return occurrences, nil
}

// SweepMissed appends a missed log entry for every expected occurrence on a
// past date that has no log row yet. Idempotent: occurrences that already
// resolved to any status are left alone. Future and current dates are never
// swept.
func (s *OccurrenceService) SweepMissed(ctx context.Context, date string) error {
	if !dateutil.IsPast(date) {
		return nil
	}

	scheduled, err := s.catalog.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("missed sweep: %w", err)
	}
	due := expectedOccurrences(scheduled, date)
	if len(due) == 0 {
		return nil
	}

	statusMap, err := s.logs.QueryLatestStatusMap(ctx, date)
	if err != nil {
		return fmt.Errorf("missed sweep: %w", err)
	}

	swept := 0
	for _, sm := range due {
		if _, ok := statusMap[sm.Medication.ID]; ok {
			continue
		}
		scheduledAt, err := dateutil.CombineDateTime(date, sm.Schedule.TimeSlot)
		if err != nil {
			s.logger.Warn("skipping sweep for malformed time slot",
				zap.Int64("medication_id", sm.Medication.ID),
				zap.String("time_slot", sm.Schedule.TimeSlot),
			)
			continue
		}

		note := missedSweepNote
		entry := &model.MedicationLogEntry{
			UserID:         model.LocalUserID,
			MedicationID:   sm.Medication.ID,
			MedicationName: sm.Medication.Name,
			Dosage:         sm.Medication.Dosage,
			ScheduledTime:  scheduledAt,
			Status:         model.StatusMissed,
			Notes:          &note,
		}
		if err := s.logs.LogEvent(ctx, entry); err != nil {
			return fmt.Errorf("missed sweep: %w", err)
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info("missed sweep completed",
			zap.String("date", date),
			zap.Int("entries", swept),
		)
	}
	return nil
}

// Take records that the user took a medication on the given date
func (s *OccurrenceService) Take(ctx context.Context, date string, medicationID int64) error {
	return s.recordAction(ctx, date, medicationID, model.StatusTaken)
}

// Skip records that the user skipped a medication on the given date
func (s *OccurrenceService) Skip(ctx context.Context, date string, medicationID int64) error {
	return s.recordAction(ctx, date, medicationID, model.StatusSkipped)
}

// recordAction resolves a take/skip command for the occurrence. Future-date
// occurrences are rejected. When a log row already exists for the pair the
// command routes through the in-place UpdateStatus path (a no-op if the
// status matches); otherwise a fresh entry is appended, which then wins under
// the MAX(created_at) tie-break.
func (s *OccurrenceService) recordAction(ctx context.Context, date string, medicationID int64, status model.LogStatus) error {
	cls := dateutil.Classify(date)
	if cls.IsFuture {
		return apperrors.NewValidation(fmt.Sprintf("cannot act on future occurrence %s", date))
	}

	scheduled, err := s.catalog.ListScheduled(ctx)
	if err != nil {
		return err
	}

	var target *model.ScheduledMedication
	for i := range scheduled {
		if scheduled[i].Medication.ID == medicationID {
			target = &scheduled[i]
			break
		}
	}
	if target == nil {
		return apperrors.NewNotFound(fmt.Sprintf("no active schedule for medication %d", medicationID))
	}
	if !recurrence.IsDue(target.Medication, target.Schedule, date) {
		return apperrors.NewValidation(fmt.Sprintf("medication %d is not due on %s", medicationID, date))
	}

	scheduledAt, err := dateutil.CombineDateTime(date, target.Schedule.TimeSlot)
	if err != nil {
		return apperrors.NewValidation(fmt.Sprintf("invalid time slot %q", target.Schedule.TimeSlot))
	}

	statusMap, err := s.logs.QueryLatestStatusMap(ctx, date)
	if err != nil {
		return err
	}
	if entry, ok := statusMap[medicationID]; ok {
		if entry.Status == status {
			return nil
		}
		return s.logs.UpdateStatus(ctx, medicationID, entry.ScheduledTime, status, nil)
	}

	now := time.Now()
	entry := &model.MedicationLogEntry{
		UserID:         model.LocalUserID,
		MedicationID:   medicationID,
		MedicationName: target.Medication.Name,
		Dosage:         target.Medication.Dosage,
		ScheduledTime:  scheduledAt,
		ActualTime:     &now,
		Status:         status,
	}
	return s.logs.LogEvent(ctx, entry)
}

// orphanedOccurrences surfaces log entries for the date whose medication is
// no longer active so history survives deletion. Always non-interactive.
func (s *OccurrenceService) orphanedOccurrences(ctx context.Context, date string, statusMap map[int64]model.MedicationLogEntry, expectedIDs map[int64]bool) []model.Occurrence {
	var orphans []model.Occurrence
	for medID, entry := range statusMap {
		if expectedIDs[medID] {
			continue
		}
		active, err := s.catalog.IsMedicationActive(ctx, medID)
		if err != nil {
			s.logger.Warn("failed to resolve log medication, surfacing as orphan",
				zap.Error(err),
				zap.Int64("medication_id", medID),
			)
			active = false
		}
		if active {
			// Active but not expected today (schedule changed); the catalog
			// view owns it, not the orphan path.
			continue
		}

		orphans = append(orphans, model.Occurrence{
			MedicationID:        medID,
			MedicationName:      entry.MedicationName,
			Dosage:              entry.Dosage,
			TimeSlot:            entry.ScheduledTime.Format(dateutil.TimeSlotLayout),
			Date:                date,
			Status:              entry.Status,
			ActualTime:          entry.ActualTime,
			CanInteract:         false,
			IsDeletedMedication: true,
		})
	}
	return orphans
}

// canInteract implements the display-permission rule: today's occurrences are
// always actionable; past occurrences only once they carry a terminal
// taken/skipped outcome. A bare missed on a past date is not editable through
// this path (UpdateStatus still permits it at the service layer).
func canInteract(cls dateutil.Classification, status model.LogStatus) bool {
	if cls.IsToday {
		return true
	}
	if cls.IsPast {
		return status == model.StatusTaken || status == model.StatusSkipped
	}
	return false
}
