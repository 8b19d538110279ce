package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/example/webvoca/internal/highlight"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("config: invalid configuration")

// Config holds all configuration for webvoca.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Highlight HighlightConfig `yaml:"highlight"`
	Review    ReviewConfig    `yaml:"review"`
	Bot       BotConfig       `yaml:"bot"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // "sqlite" or "postgres"
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// HighlightConfig holds the highlighter settings and ranking weights.
type HighlightConfig struct {
	highlight.Settings `yaml:",inline"`
	Alpha              float64                    `yaml:"alpha"`
	Beta               float64                    `yaml:"beta"`
	Gamma              float64                    `yaml:"gamma"`
	Familiarity        highlight.FamiliarityModel `yaml:"familiarity"`
}

// RankOptions returns the ranking weights without a result limit
func (h HighlightConfig) RankOptions() highlight.RankOptions {
	return highlight.RankOptions{Alpha: h.Alpha, Beta: h.Beta, Gamma: h.Gamma}
}

// ReviewConfig tunes the SM-2 scheduler.
type ReviewConfig struct {
	InitialEaseFactor float64 `yaml:"initial_ease_factor"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token           string  `yaml:"token"`
	ChatIDs         []int64 `yaml:"chat_ids"` // Chats allowed to use the bot and receive reminders
	CardsPerSession int     `yaml:"cards_per_session"`
}

// SchedulerConfig holds background job configuration.
type SchedulerConfig struct {
	Enabled               bool          `yaml:"enabled"`
	ReminderInterval      time.Duration `yaml:"reminder_interval"`
	NotificationStartHour int           `yaml:"notification_start_hour"`
	NotificationEndHour   int           `yaml:"notification_end_hour"`
	PendingInterval       time.Duration `yaml:"pending_interval"`
	PendingBatch          int           `yaml:"pending_batch"`
	PendingMaxAttempts    int           `yaml:"pending_max_attempts"`
}

// EventsConfig holds the cross-process event channel configuration.
type EventsConfig struct {
	RedisAddr     string `yaml:"redis_addr"` // Empty disables redis and events are only logged
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Channel       string `yaml:"channel"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/webvoca.db",
		},
		Highlight: HighlightConfig{
			Settings:    highlight.DefaultSettings(),
			Alpha:       0.6,
			Beta:        0.4,
			Gamma:       0,
			Familiarity: highlight.DefaultFamiliarityModel(),
		},
		Review: ReviewConfig{
			InitialEaseFactor: 2.5,
		},
		Bot: BotConfig{
			CardsPerSession: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:               true,
			ReminderInterval:      time.Hour,
			NotificationStartHour: 9,
			NotificationEndHour:   22,
			PendingInterval:       time.Minute,
			PendingBatch:          20,
			PendingMaxAttempts:    5,
		},
		Events: EventsConfig{
			Channel: "webvoca-cache",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, key, v)
		}
		*dst = n
		return nil
	}

	str("WEBVOCA_DB_DRIVER", &c.Database.Driver)
	str("WEBVOCA_DB_DSN", &c.Database.DSN)
	str("TELEGRAM_BOT_TOKEN", &c.Bot.Token)
	str("WEBVOCA_REDIS_ADDR", &c.Events.RedisAddr)
	str("WEBVOCA_LOG_LEVEL", &c.Logging.Level)

	if err := num("NOTIFICATION_START_HOUR", &c.Scheduler.NotificationStartHour); err != nil {
		return err
	}
	if err := num("NOTIFICATION_END_HOUR", &c.Scheduler.NotificationEndHour); err != nil {
		return err
	}

	if v, ok := lookup("WEBVOCA_CHAT_IDS"); ok && v != "" {
		ids, err := parseChatIDs(v)
		if err != nil {
			return err
		}
		c.Bot.ChatIDs = ids
	}
	return nil
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: chat id %q is not a number", ErrInvalid, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Validate checks every section
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalid, c.Database.Driver)
	}

	if err := c.Highlight.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Highlight.Familiarity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Highlight.Alpha < 0 || c.Highlight.Beta < 0 || c.Highlight.Gamma < 0 {
		return fmt.Errorf("%w: highlight weights must be >= 0", ErrInvalid)
	}

	if c.Review.InitialEaseFactor < 1.3 {
		return fmt.Errorf("%w: review.initial_ease_factor must be >= 1.3", ErrInvalid)
	}

	s := c.Scheduler
	if s.NotificationStartHour < 0 || s.NotificationStartHour > 23 ||
		s.NotificationEndHour < 0 || s.NotificationEndHour > 23 {
		return fmt.Errorf("%w: notification hours must be within [0, 23]", ErrInvalid)
	}
	if s.Enabled && (s.ReminderInterval <= 0 || s.PendingInterval <= 0) {
		return fmt.Errorf("%w: scheduler intervals must be positive", ErrInvalid)
	}
	if s.PendingMaxAttempts < 1 {
		return fmt.Errorf("%w: scheduler.pending_max_attempts must be >= 1", ErrInvalid)
	}

	if c.Bot.CardsPerSession < 1 {
		return fmt.Errorf("%w: bot.cards_per_session must be >= 1", ErrInvalid)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("%w: metrics.address is required when metrics are enabled", ErrInvalid)
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown logging format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ParseLevel maps a level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalid, level)
}

// NewLogger builds the process logger from the logging section
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
