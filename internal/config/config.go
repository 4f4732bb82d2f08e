// Package config loads application settings from the environment.
// A .env file in the working directory is read first if present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/orbit/internal/spaced_repetition"
)

// Default settings
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
	DefaultDatabasePath          = "data/orbit.db"
)

// Config is the full application configuration
type Config struct {
	Database  DatabaseConfig
	Telegram  TelegramConfig
	Reminders ReminderConfig
	// QueueSize bounds one review session; 0 uses the review package default
	QueueSize int
	Scheduler spaced_repetition.Config
	LogMode   string
}

// DatabaseConfig selects the store backend
type DatabaseConfig struct {
	// Type is "sqlite" or "postgres"
	Type string
	// Path of the SQLite file
	Path string
	// URL is the PostgreSQL connection string
	URL string
}

// Driver returns the database/sql driver name for Type
func (d DatabaseConfig) Driver() string {
	if d.Type == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

// DSN returns the connection string for the configured backend
func (d DatabaseConfig) DSN() string {
	if d.Type == "postgres" {
		return d.URL
	}
	return d.Path
}

// TelegramConfig configures the bot
type TelegramConfig struct {
	Token string
	// ChatID is the only chat the bot answers; 0 accepts the first chat that writes
	ChatID int64
}

// ReminderConfig configures the hourly due-card reminder
type ReminderConfig struct {
	Enabled   bool
	StartHour int
	EndHour   int
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Type: strings.ToLower(getenv("DB_TYPE")),
			Path: getenv("DB_PATH"),
			URL:  getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{Token: getenv("TELEGRAM_BOT_TOKEN")},
		Reminders: ReminderConfig{
			Enabled:   getenv("ENABLE_REMINDERS") != "false",
			StartHour: DefaultNotificationStartHour,
			EndHour:   DefaultNotificationEndHour,
		},
		Scheduler: spaced_repetition.DefaultConfig(),
		LogMode:   getenv("LOG_MODE"),
	}

	switch cfg.Database.Type {
	case "":
		cfg.Database.Type = "sqlite"
	case "sqlite", "sqlite3":
		cfg.Database.Type = "sqlite"
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL is required when DB_TYPE is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q", cfg.Database.Type)
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.FromSlash(DefaultDatabasePath)
	}

	var err error
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		if cfg.Telegram.ChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}
	if cfg.Reminders.StartHour, err = hour(getenv, "NOTIFICATION_START_HOUR", DefaultNotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.Reminders.EndHour, err = hour(getenv, "NOTIFICATION_END_HOUR", DefaultNotificationEndHour); err != nil {
		return nil, err
	}
	if cfg.Reminders.StartHour > cfg.Reminders.EndHour {
		return nil, fmt.Errorf("notification start hour %d is after end hour %d", cfg.Reminders.StartHour, cfg.Reminders.EndHour)
	}

	if v := getenv("REVIEW_QUEUE_SIZE"); v != "" {
		if cfg.QueueSize, err = strconv.Atoi(v); err != nil || cfg.QueueSize < 0 {
			return nil, fmt.Errorf("invalid REVIEW_QUEUE_SIZE %q", v)
		}
	}

	if v := getenv("SRS_LEARNING_STEPS"); v != "" {
		steps, err := parseDurations(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SRS_LEARNING_STEPS: %w", err)
		}
		cfg.Scheduler.LearningSteps = steps
	}
	if v := getenv("SRS_INITIAL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SRS_INITIAL_INTERVAL %q", v)
		}
		cfg.Scheduler.InitialReviewInterval = d
	}

	return cfg, nil
}

func hour(getenv func(string) string, key string, fallback int) (int, error) {
	v := getenv(key)
	if v == "" {
		return fallback, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid %s %q: want an hour between 0 and 23", key, v)
	}
	return h, nil
}

// parseDurations parses a comma-separated list such as "1m,10m"
func parseDurations(s string) ([]time.Duration, error) {
	var out []time.Duration
	for _, part := range strings.Split(s, ",") {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("step %q must be positive", part)
		}
		out = append(out, d)
	}
	return out, nil
}
