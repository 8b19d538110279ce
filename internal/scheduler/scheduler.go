package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/webvoca/internal/config"
	"github.com/example/webvoca/internal/vocabulary"
	"github.com/example/webvoca/pkg/models"
)

// Notifier delivers review reminders
type Notifier interface {
	SendReminders(ctx context.Context, count int) error
}

// Vocabulary is the part of the vocabulary store the jobs use
type Vocabulary interface {
	Due(ctx context.Context, reference time.Time, limit int) ([]models.WordEntry, error)
	DrainPending(ctx context.Context, batch, maxAttempts int) (vocabulary.DrainResult, error)
}

// Scheduler manages the background jobs of the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	vocab     Vocabulary
	notifier  Notifier
	cfg       config.SchedulerConfig
	logger    *slog.Logger
	clock     func() time.Time
	loc       *time.Location
}

// Option configures a Scheduler
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithLocation sets the time zone of the notification hours
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// New creates a scheduler. A nil notifier disables the reminder job.
func New(vocab Vocabulary, notifier Notifier, cfg config.SchedulerConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		vocab:    vocab,
		notifier: notifier,
		cfg:      cfg,
		logger:   slog.Default(),
		clock:    time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.scheduler = gocron.NewScheduler(s.loc)
	s.scheduler.SingletonModeAll()
	return s
}

// Start registers the jobs and runs them asynchronously until Stop or ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	if s.notifier != nil && s.cfg.ReminderInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.ReminderInterval).Do(func() {
			if _, err := s.CheckReminders(ctx); err != nil {
				s.logger.Error("Reminder check failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}

	if s.cfg.PendingInterval > 0 {
		if _, err := s.scheduler.Every(s.cfg.PendingInterval).Do(func() {
			if _, err := s.DrainPending(ctx); err != nil {
				s.logger.Error("Pending drain failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule pending drain: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("Scheduler started",
		"jobs", len(s.scheduler.Jobs()),
		"reminder_interval", s.cfg.ReminderInterval,
		"pending_interval", s.cfg.PendingInterval)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop terminates all scheduled jobs
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

// CheckReminders sends a reminder when reviews are due inside the notification
// hours. It returns the number of due words announced.
func (s *Scheduler) CheckReminders(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	now := s.clock().In(s.loc)
	if !WithinNotificationHours(now.Hour(), s.cfg.NotificationStartHour, s.cfg.NotificationEndHour) {
		s.logger.Debug("Outside notification hours, skipping reminders",
			"hour", now.Hour(),
			"start", s.cfg.NotificationStartHour,
			"end", s.cfg.NotificationEndHour)
		return 0, nil
	}

	due, err := s.vocab.Due(ctx, now, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get due words: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	if err := s.notifier.SendReminders(ctx, len(due)); err != nil {
		return 0, fmt.Errorf("failed to send reminders: %w", err)
	}
	s.logger.Info("Reminders sent", "due", len(due))
	return len(due), nil
}

// DrainPending runs one pass over the pending-request queue
func (s *Scheduler) DrainPending(ctx context.Context) (vocabulary.DrainResult, error) {
	res, err := s.vocab.DrainPending(ctx, s.cfg.PendingBatch, s.cfg.PendingMaxAttempts)
	if err != nil {
		return res, err
	}
	if res.Stored > 0 || res.Failed > 0 {
		s.logger.Info("Pending requests drained", "stored", res.Stored, "failed", res.Failed)
	}
	return res, nil
}

// WithinNotificationHours reports whether hour lies in [start, end]. A window
// with start after end wraps around midnight.
func WithinNotificationHours(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}
