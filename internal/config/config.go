package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Storage     StorageConfig
	Logging     LoggingConfig
}

// StorageConfig holds the on-device datastore configuration
type StorageConfig struct {
	DataDir        string
	UserDataFile   string
	MedicationFile string
	HealthLogFile  string
	RetryAttempts  int
	RetryBaseDelay time.Duration
	LockTimeout    time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// UserDataPath returns the full path of the user-data database
func (c StorageConfig) UserDataPath() string {
	return filepath.Join(c.DataDir, c.UserDataFile)
}

// MedicationPath returns the full path of the medication-definition database
func (c StorageConfig) MedicationPath() string {
	return filepath.Join(c.DataDir, c.MedicationFile)
}

// HealthLogPath returns the full path of the health-log database
func (c StorageConfig) HealthLogPath() string {
	return filepath.Join(c.DataDir, c.HealthLogFile)
}

// Load reads configuration from environment variables with defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("storage.datadir", "./data")
	v.SetDefault("storage.userdatafile", "user_data.db")
	v.SetDefault("storage.medicationfile", "medication_data.db")
	v.SetDefault("storage.healthlogfile", "health_logs.db")
	v.SetDefault("storage.retryattempts", 3)
	v.SetDefault("storage.retrybasedelay", 100*time.Millisecond)
	v.SetDefault("storage.locktimeout", 5*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("environment", "ENV", "ENVIRONMENT")

	v.BindEnv("storage.datadir", "MEDTRACKR_DATA_DIR")
	v.BindEnv("storage.userdatafile", "MEDTRACKR_USER_DB")
	v.BindEnv("storage.medicationfile", "MEDTRACKR_MEDICATION_DB")
	v.BindEnv("storage.healthlogfile", "MEDTRACKR_HEALTH_DB")

	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.datadir is required")
	}
	if c.Storage.RetryAttempts < 0 {
		return fmt.Errorf("storage.retryattempts cannot be negative")
	}
	if c.Storage.LockTimeout <= 0 {
		return fmt.Errorf("storage.locktimeout must be positive")
	}
	return nil
}
