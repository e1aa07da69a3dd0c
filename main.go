package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/medtrackr/backend/internal/config"
	"github.com/medtrackr/backend/internal/dateutil"
	"github.com/medtrackr/backend/internal/notify"
	"github.com/medtrackr/backend/internal/repository"
	"github.com/medtrackr/backend/internal/service"
	"github.com/medtrackr/backend/internal/storage"
)

var (
	logger *zap.Logger
	cfg    *config.Config
)

func main() {
	// Load configuration
	var err error
	cfg, err = config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize Zap logger
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Environment),
		zap.String("data_dir", cfg.Storage.DataDir),
	)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	opts := storage.Options{
		RetryAttempts:  cfg.Storage.RetryAttempts,
		RetryBaseDelay: cfg.Storage.RetryBaseDelay,
		LockTimeout:    cfg.Storage.LockTimeout,
	}

	// Open the three separated datastores
	userStore := storage.NewUserDataStore(cfg.Storage.UserDataPath(), opts, logger)
	medicationStore := storage.NewMedicationStore(cfg.Storage.MedicationPath(), opts, logger)
	healthStore := storage.NewHealthLogStore(cfg.Storage.HealthLogPath(), opts, logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, store := range []*storage.Store{userStore, medicationStore, healthStore} {
		if err := store.EnsureReady(startupCtx); err != nil {
			logger.Fatal("Failed to open datastore",
				zap.Error(err),
				zap.String("store", store.Name()),
			)
		}
	}
	logger.Info("Datastores ready")

	// Initialize repositories
	userRepo := repository.NewUserRepository(userStore, logger)
	medicationRepo := repository.NewMedicationRepository(medicationStore, logger)
	healthLogRepo := repository.NewHealthLogRepository(healthStore, logger)

	// Initialize reminder scheduler
	scheduler := notify.NewCronScheduler(logger, dateutil.Today)

	// Initialize services
	profileService := service.NewProfileService(userRepo, logger)
	catalogService := service.NewCatalogService(medicationRepo, scheduler, logger)
	healthLogService := service.NewHealthLogService(healthLogRepo, logger)
	occurrenceService := service.NewOccurrenceService(catalogService, healthLogService, logger)
	analyticsService := service.NewAnalyticsService(catalogService, healthLogService, logger)

	// First-run bootstrap: make sure the local profile row exists
	if _, err := profileService.GetProfile(startupCtx); err != nil {
		logger.Fatal("Failed to ensure local profile", zap.Error(err))
	}

	// In-process cron entries do not survive restarts
	if err := catalogService.RearmReminders(startupCtx); err != nil {
		logger.Error("Failed to rearm reminders", zap.Error(err))
	}

	// Finalize anything left pending from yesterday
	yesterday := dateutil.ToDateString(time.Now().AddDate(0, 0, -1))
	if err := occurrenceService.SweepMissed(startupCtx, yesterday); err != nil {
		logger.Error("Startup missed sweep failed", zap.Error(err))
	}

	if streak, err := analyticsService.StreakData(startupCtx); err != nil {
		logger.Error("Failed to compute adherence streak", zap.Error(err))
	} else {
		logger.Info("Adherence streak",
			zap.Int("current", streak.CurrentStreak),
			zap.Int("longest", streak.LongestStreak),
		)
	}

	logger.Info("Service started")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	scheduler.Stop()
	for _, store := range []*storage.Store{healthStore, medicationStore, userStore} {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close datastore",
				zap.Error(err),
				zap.String("store", store.Name()),
			)
		}
	}

	logger.Info("Shutdown complete")
}
