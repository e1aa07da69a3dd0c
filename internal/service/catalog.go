package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/medtrackr/backend/internal/errors"
	"github.com/medtrackr/backend/internal/notify"
	"github.com/medtrackr/backend/internal/repository"
	"github.com/medtrackr/backend/pkg/model"
)

// CatalogService handles medication definition and schedule management
type CatalogService struct {
	repo      *repository.MedicationRepository
	scheduler notify.Scheduler
	logger    *zap.Logger

	mu        sync.Mutex
	reminders map[int64][]string // medication id -> armed reminder handles
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo *repository.MedicationRepository, scheduler notify.Scheduler, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		repo:      repo,
		scheduler: scheduler,
		logger:    logger,
		reminders: make(map[int64][]string),
	}
}

// AddMedication inserts a medication definition and its schedule rule,
// arms a reminder when the rule asks for one, and returns the new id.
func (s *CatalogService) AddMedication(ctx context.Context, med *model.Medication, rule *model.ScheduleRule) (int64, error) {
	if med.Name == "" {
		return 0, apperrors.NewValidation("medication name is required")
	}
	if med.Dosage == "" {
		return 0, apperrors.NewValidation("medication dosage is required")
	}
	if med.StartDate == "" {
		return 0, apperrors.NewValidation("medication start date is required")
	}
	if med.UserID == "" {
		med.UserID = model.LocalUserID
	}
	med.IsActive = true

	if rule != nil {
		if rule.TimeSlot == "" {
			return 0, apperrors.NewValidation("schedule time slot is required")
		}
		switch rule.Frequency {
		case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyAsNeeded:
		case model.FrequencyDateRange:
			if med.EndDate == nil || *med.EndDate == "" {
				return 0, apperrors.NewValidation("date_range frequency requires an end date")
			}
		default:
			return 0, apperrors.NewValidation(fmt.Sprintf("unknown frequency %q", rule.Frequency))
		}
		rule.IsActive = true
	}

	id, err := s.repo.Create(ctx, med, rule)
	if err != nil {
		s.logger.Error("failed to add medication",
			zap.Error(err),
			zap.String("name", med.Name),
		)
		return 0, err
	}

	if rule != nil && rule.ReminderEnabled {
		s.armReminder(id, med, rule)
	}

	s.logger.Info("medication added",
		zap.Int64("medication_id", id),
		zap.String("name", med.Name),
	)
	return id, nil
}

// UpdateMedication writes only the supplied definition fields
func (s *CatalogService) UpdateMedication(ctx context.Context, id int64, fields map[string]any) error {
	if name, ok := fields["name"]; ok {
		if str, _ := name.(string); str == "" {
			return apperrors.NewValidation("medication name cannot be empty")
		}
	}
	if dosage, ok := fields["dosage"]; ok {
		if str, _ := dosage.(string); str == "" {
			return apperrors.NewValidation("medication dosage cannot be empty")
		}
	}

	if err := s.repo.UpdateSparse(ctx, id, fields); err != nil {
		s.logger.Error("failed to update medication", zap.Error(err), zap.Int64("medication_id", id))
		return err
	}

	s.logger.Info("medication updated", zap.Int64("medication_id", id))
	return nil
}

// UpdateSchedule writes only the supplied schedule fields
func (s *CatalogService) UpdateSchedule(ctx context.Context, scheduleID int64, fields map[string]any) error {
	if err := s.repo.UpdateScheduleSparse(ctx, scheduleID, fields); err != nil {
		s.logger.Error("failed to update schedule", zap.Error(err), zap.Int64("schedule_id", scheduleID))
		return err
	}
	s.logger.Info("schedule updated", zap.Int64("schedule_id", scheduleID))
	return nil
}

// DeleteMedication soft-deletes a medication and its schedules and cancels
// any armed reminders. The rows survive for historical log reconciliation.
func (s *CatalogService) DeleteMedication(ctx context.Context, id int64) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		s.logger.Error("failed to delete medication", zap.Error(err), zap.Int64("medication_id", id))
		return err
	}

	s.mu.Lock()
	handles := s.reminders[id]
	delete(s.reminders, id)
	s.mu.Unlock()
	for _, h := range handles {
		s.scheduler.Cancel(h)
	}

	s.logger.Info("medication deleted", zap.Int64("medication_id", id))
	return nil
}

// ListMedications retrieves active medications, alphabetical by name
func (s *CatalogService) ListMedications(ctx context.Context) ([]model.Medication, error) {
	return s.repo.ListActive(ctx, model.LocalUserID)
}

// ListSchedulesFor retrieves the active schedule rules for a medication
func (s *CatalogService) ListSchedulesFor(ctx context.Context, medicationID int64) ([]model.ScheduleRule, error) {
	return s.repo.SchedulesFor(ctx, medicationID)
}

// ListScheduled joins active medications with their active schedules
func (s *CatalogService) ListScheduled(ctx context.Context) ([]model.ScheduledMedication, error) {
	return s.repo.ListActiveWithSchedules(ctx, model.LocalUserID)
}

// IsMedicationActive reports whether the medication exists and is active
func (s *CatalogService) IsMedicationActive(ctx context.Context, id int64) (bool, error) {
	return s.repo.IsActive(ctx, id)
}

// GetMedication retrieves a single definition, active or not
func (s *CatalogService) GetMedication(ctx context.Context, id int64) (*model.Medication, error) {
	return s.repo.FindByID(ctx, id)
}

// RearmReminders arms reminders for every active, reminder-enabled schedule.
// Called at startup since in-process cron entries do not survive restarts.
func (s *CatalogService) RearmReminders(ctx context.Context) error {
	scheduled, err := s.repo.ListActiveWithSchedules(ctx, model.LocalUserID)
	if err != nil {
		return fmt.Errorf("rearm reminders: %w", err)
	}

	armed := 0
	for i := range scheduled {
		sm := scheduled[i]
		if !sm.Schedule.ReminderEnabled || sm.Schedule.Frequency == model.FrequencyAsNeeded {
			continue
		}
		s.armReminder(sm.Medication.ID, &sm.Medication, &sm.Schedule)
		armed++
	}

	s.logger.Info("reminders rearmed", zap.Int("count", armed))
	return nil
}

func (s *CatalogService) armReminder(medicationID int64, med *model.Medication, rule *model.ScheduleRule) {
	var (
		handle string
		err    error
	)
	if rule.Frequency == model.FrequencyDateRange && med.EndDate != nil {
		handle, err = s.scheduler.ArmRange(med.StartDate, *med.EndDate, med.Name, med.Dosage, rule.TimeSlot)
	} else {
		handle, err = s.scheduler.ArmDaily(med.Name, med.Dosage, rule.TimeSlot)
	}
	if err != nil {
		// Reminder arming is fire-and-forget; a failure must not block the write.
		s.logger.Error("failed to arm reminder",
			zap.Error(err),
			zap.Int64("medication_id", medicationID),
			zap.String("time_slot", rule.TimeSlot),
		)
		return
	}
	if handle == "" {
		return
	}

	s.mu.Lock()
	s.reminders[medicationID] = append(s.reminders[medicationID], handle)
	s.mu.Unlock()
}
