// Package notify implements the local-reminder collaborator. The core only
// tells it "fire a reminder at time T for medication M"; delivery to the
// platform notification tray is outside this process, so firing is logged.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler arms and cancels local medication reminders. Fire-and-forget:
// callers only consume success or failure.
type Scheduler interface {
	// ArmDaily schedules a reminder every day at timeSlot (HH:MM local).
	// Returns a handle usable with Cancel.
	ArmDaily(name, dosage, timeSlot string) (string, error)
	// ArmRange schedules a daily reminder active only between start and end
	// calendar dates inclusive.
	ArmRange(start, end, name, dosage, timeSlot string) (string, error)
	// Cancel disarms a previously armed reminder. Unknown handles are a no-op.
	Cancel(id string)
}

// CronScheduler arms reminders as in-process cron entries
type CronScheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	today  func() string

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewCronScheduler creates and starts a CronScheduler. todayFn supplies the
// current local calendar date for range checks.
func NewCronScheduler(logger *zap.Logger, todayFn func() string) *CronScheduler {
	c := cron.New()
	c.Start()
	return &CronScheduler{
		cron:    c,
		logger:  logger,
		today:   todayFn,
		entries: make(map[string]cron.EntryID),
	}
}

// ArmDaily schedules a reminder every day at timeSlot
func (s *CronScheduler) ArmDaily(name, dosage, timeSlot string) (string, error) {
	spec, err := cronSpec(timeSlot)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	entryID, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("medication reminder due",
			zap.String("medication", name),
			zap.String("dosage", dosage),
			zap.String("time_slot", timeSlot),
		)
	})
	if err != nil {
		return "", fmt.Errorf("arm daily reminder: %w", err)
	}

	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	return id, nil
}

// ArmRange schedules a daily reminder that only fires between start and end
func (s *CronScheduler) ArmRange(start, end, name, dosage, timeSlot string) (string, error) {
	spec, err := cronSpec(timeSlot)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	entryID, err := s.cron.AddFunc(spec, func() {
		today := s.today()
		if today < start || today > end {
			return
		}
		s.logger.Info("medication reminder due",
			zap.String("medication", name),
			zap.String("dosage", dosage),
			zap.String("time_slot", timeSlot),
		)
	})
	if err != nil {
		return "", fmt.Errorf("arm range reminder: %w", err)
	}

	s.mu.Lock()
	s.entries[id] = entryID
	s.mu.Unlock()
	return id, nil
}

// Cancel disarms a reminder by handle
func (s *CronScheduler) Cancel(id string) {
	s.mu.Lock()
	entryID, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	if ok {
		s.cron.Remove(entryID)
	}
}

// Stop halts the cron runner; armed entries are discarded
func (s *CronScheduler) Stop() {
	s.cron.Stop()
}

func cronSpec(timeSlot string) (string, error) {
	parts := strings.SplitN(timeSlot, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time slot %q", timeSlot)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid time slot %q", timeSlot)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time slot %q", timeSlot)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// NopScheduler ignores all arming requests; used in tests and headless runs
type NopScheduler struct{}

func (NopScheduler) ArmDaily(string, string, string) (string, error) { return "", nil }
func (NopScheduler) ArmRange(string, string, string, string, string) (string, error) {
	return "", nil
}
func (NopScheduler) Cancel(string) {}
