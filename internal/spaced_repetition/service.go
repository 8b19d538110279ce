package spaced_repetition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/metrics"
	"github.com/example/webvoca/pkg/models"
)

// Store loads and persists review states.
// GetReviewState returns database.ErrNotFound for a word that was never graded.
// SaveReviewState returns database.ErrConflict when state.Version is stale.
type Store interface {
	GetReviewState(ctx context.Context, id string) (models.ReviewState, error)
	SaveReviewState(ctx context.Context, state models.ReviewState) (models.ReviewState, error)
}

// Publisher broadcasts change notifications
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

// Clock returns the current time
type Clock func() time.Time

// Service applies grades to stored review states
type Service struct {
	engine    *SM2
	store     Store
	publisher Publisher
	clock     Clock
	locks     *keyLock
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithClock(c Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// NewService creates a review service. A nil engine uses NewSM2.
func NewService(engine *SM2, store Store, opts ...Option) *Service {
	if engine == nil {
		engine = NewSM2()
	}
	s := &Service{
		engine: engine,
		store:  store,
		clock:  time.Now,
		locks:  newKeyLock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the SM-2 engine used by the service
func (s *Service) Engine() *SM2 {
	return s.engine
}

// ApplyReview grades wordID and persists the new state.
// Calls for the same word are serialized within the process; a concurrent
// writer in another process surfaces as database.ErrConflict.
func (s *Service) ApplyReview(ctx context.Context, wordID string, grade Grade) (models.ReviewState, error) {
	if !grade.Valid() {
		return models.ReviewState{}, fmt.Errorf("%w: got %d", ErrInvalidGrade, grade)
	}
	if wordID == "" {
		return models.ReviewState{}, fmt.Errorf("%w: empty word id", ErrInvalidState)
	}

	unlock := s.locks.Lock(wordID)
	defer unlock()

	now := s.clock()
	state, err := s.store.GetReviewState(ctx, wordID)
	if errors.Is(err, database.ErrNotFound) {
		state = s.engine.NewReviewState(wordID, now)
	} else if err != nil {
		s.metrics.ObserveReview(metrics.OutcomeError)
		return models.ReviewState{}, fmt.Errorf("failed to load review state: %w", err)
	}

	next, err := s.engine.Apply(state, grade, now)
	if err != nil {
		s.metrics.ObserveReview(metrics.OutcomeError)
		return models.ReviewState{}, err
	}

	saved, err := s.store.SaveReviewState(ctx, next)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			s.metrics.ObserveReview(metrics.OutcomeConflict)
		} else {
			s.metrics.ObserveReview(metrics.OutcomeError)
		}
		return models.ReviewState{}, fmt.Errorf("failed to save review state: %w", err)
	}

	if int(grade) >= s.engine.PassThreshold {
		s.metrics.ObserveReview(metrics.OutcomePassed)
	} else {
		s.metrics.ObserveReview(metrics.OutcomeFailed)
	}

	if s.publisher != nil {
		event := models.Event{Type: models.EventReviewApplied, ID: wordID}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish review event", "word_id", wordID, "error", err)
		}
	}

	s.logger.Debug("Review applied",
		"word_id", wordID,
		"grade", int(grade),
		"interval", saved.Interval,
		"ease_factor", saved.EaseFactor,
		"repetitions", saved.Repetitions)
	return saved, nil
}
