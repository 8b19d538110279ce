package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/events"
	"github.com/example/webvoca/internal/highlight"
	"github.com/example/webvoca/internal/metrics"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/pkg/models"
)

// ErrInvalidSelection is returned for a selection without a word
var ErrInvalidSelection = errors.New("vocabulary: selection has no word")

// highlightSettingsKey is the settings row holding user highlight preferences
const highlightSettingsKey = "highlight"

// Options wires the collaborators of a Service. Zero values get defaults.
type Options struct {
	Highlight   highlight.Settings
	Rank        highlight.RankOptions
	Familiarity highlight.FamiliarityModel
	Engine      *spaced_repetition.SM2
	Publisher   events.Publisher
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Service is the vocabulary store: capture, review, highlight and backup
type Service struct {
	words     *database.WordRepository
	states    *database.ReviewStateRepository
	pending   *database.PendingRepository
	settings  *database.SettingsRepository
	stats     *database.StatisticsRepository
	snapshots *database.SnapshotRepository
	reviews   *spaced_repetition.Service

	mu          sync.RWMutex
	highlighter *highlight.Highlighter

	rank        highlight.RankOptions
	familiarity highlight.FamiliarityModel
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService builds the repositories on db and validates the highlight settings
func NewService(db *sqlx.DB, opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewLogPublisher(opts.Logger)
	}
	if opts.Rank == (highlight.RankOptions{}) {
		opts.Rank = highlight.DefaultRankOptions()
	}
	if opts.Familiarity == (highlight.FamiliarityModel{}) {
		opts.Familiarity = highlight.DefaultFamiliarityModel()
	}
	if opts.Highlight.Density == "" {
		opts.Highlight = highlight.DefaultSettings()
	}
	if err := opts.Familiarity.Validate(); err != nil {
		return nil, err
	}

	h, err := highlight.NewHighlighter(opts.Highlight, opts.Rank, opts.Logger)
	if err != nil {
		return nil, err
	}

	clock := database.NewMonotonicClock(opts.Clock)
	s := &Service{
		words:       database.NewWordRepository(db, clock),
		states:      database.NewReviewStateRepository(db),
		pending:     database.NewPendingRepository(db, clock),
		settings:    database.NewSettingsRepository(db, clock),
		stats:       database.NewStatisticsRepository(db),
		snapshots:   database.NewSnapshotRepository(db),
		highlighter: h,
		rank:        opts.Rank,
		familiarity: opts.Familiarity,
		publisher:   opts.Publisher,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		clock:       opts.Clock,
	}
	s.reviews = spaced_repetition.NewService(opts.Engine, s.states,
		spaced_repetition.WithPublisher(opts.Publisher),
		spaced_repetition.WithClock(opts.Clock),
		spaced_repetition.WithLogger(opts.Logger),
		spaced_repetition.WithMetrics(opts.Metrics),
	)
	return s, nil
}

func (s *Service) publish(ctx context.Context, t models.EventType, id string) {
	if err := s.publisher.Publish(ctx, models.Event{Type: t, ID: id}); err != nil {
		s.logger.Warn("Failed to publish event", "type", string(t), "id", id, "error", err)
	}
}

// Register stores a captured selection. A selection for a word already captured
// on the same page updates that entry and keeps fields the selection leaves unset.
func (s *Service) Register(ctx context.Context, sel models.Selection) (models.WordEntry, error) {
	normalized := models.NormalizeWord(sel.Word)
	if normalized == "" {
		return models.WordEntry{}, ErrInvalidSelection
	}
	id := models.WordEntryID(sel.Word, sel.URL)

	existing, err := s.words.Get(ctx, id)
	created := errors.Is(err, database.ErrNotFound)
	if err != nil && !created {
		return models.WordEntry{}, err
	}

	var entry models.WordEntry
	if created {
		entry = newEntry(id, normalized, sel)
	} else {
		entry = mergeEntry(existing, normalized, sel)
	}

	saved, err := s.words.Upsert(ctx, entry)
	if err != nil {
		return models.WordEntry{}, err
	}
	s.metrics.ObserveWordRegistered(created)
	if created {
		s.publish(ctx, models.EventWordCreated, saved.ID)
	} else {
		s.publish(ctx, models.EventWordUpdated, saved.ID)
	}
	s.logger.Debug("Word registered", "id", saved.ID, "created", created)
	return saved, nil
}

func newEntry(id, normalized string, sel models.Selection) models.WordEntry {
	e := models.WordEntry{
		ID:             id,
		Word:           sel.Word,
		NormalizedWord: normalized,
		Context:        sel.Context,
		URL:            sel.URL,
		SourceTitle:    sel.Title,
		Language:       sel.Language,
		Tags:           models.StringList(sel.Tags),
		IncludeInQuiz:  true,
		Definitions:    models.StringList(sel.Definitions),
	}
	if sel.IsFavorite != nil {
		e.IsFavorite = *sel.IsFavorite
	}
	if sel.Note != nil {
		e.Note = *sel.Note
	}
	if sel.Phonetic != nil {
		e.Phonetic = *sel.Phonetic
	}
	if sel.AudioURL != nil {
		e.AudioURL = *sel.AudioURL
	}
	return e
}

func mergeEntry(e models.WordEntry, normalized string, sel models.Selection) models.WordEntry {
	e.Word = sel.Word
	e.NormalizedWord = normalized
	e.Context = sel.Context
	e.URL = sel.URL
	e.SourceTitle = sel.Title
	e.Language = sel.Language
	if sel.Tags != nil {
		e.Tags = models.StringList(sel.Tags)
	}
	if sel.IsFavorite != nil {
		e.IsFavorite = *sel.IsFavorite
	}
	if sel.Note != nil {
		e.Note = *sel.Note
	}
	if sel.Definitions != nil {
		e.Definitions = models.StringList(sel.Definitions)
	}
	if sel.Phonetic != nil {
		e.Phonetic = *sel.Phonetic
	}
	if sel.AudioURL != nil {
		e.AudioURL = *sel.AudioURL
	}
	return e
}

// QueueForRetry keeps a selection that could not be registered for the drain job
func (s *Service) QueueForRetry(ctx context.Context, sel models.Selection) (models.PendingRequest, error) {
	req, err := s.pending.Enqueue(ctx, sel)
	if err != nil {
		return models.PendingRequest{}, err
	}
	s.publish(ctx, models.EventPendingQueued, "")
	return req, nil
}

// RegisterOrQueue registers sel, queueing it for a retry when storing fails.
// Invalid selections are rejected and never queued.
func (s *Service) RegisterOrQueue(ctx context.Context, sel models.Selection) (models.WordEntry, bool, error) {
	entry, err := s.Register(ctx, sel)
	if err == nil {
		return entry, false, nil
	}
	if errors.Is(err, ErrInvalidSelection) {
		return models.WordEntry{}, false, err
	}
	s.logger.Warn("Registration failed, queueing for retry", "word", sel.Word, "error", err)
	if _, qerr := s.QueueForRetry(ctx, sel); qerr != nil {
		return models.WordEntry{}, false, fmt.Errorf("failed to queue selection: %w", errors.Join(err, qerr))
	}
	return models.WordEntry{}, true, nil
}

// DrainResult summarizes one drain pass
type DrainResult struct {
	Stored int `json:"stored"`
	Failed int `json:"failed"`
}

// DrainPending retries up to batch queued selections. Failing requests go back
// to the queue until they reach maxAttempts.
func (s *Service) DrainPending(ctx context.Context, batch, maxAttempts int) (DrainResult, error) {
	var res DrainResult
	for i := 0; batch <= 0 || i < batch; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		req, err := s.pending.PopNext(ctx)
		if errors.Is(err, database.ErrNotFound) {
			break
		}
		if err != nil {
			return res, err
		}

		if _, err := s.Register(ctx, models.Selection(req.Payload)); err != nil {
			res.Failed++
			s.metrics.ObservePendingDrained("failed")
			if errors.Is(err, ErrInvalidSelection) {
				s.logger.Warn("Dropping invalid pending request", "id", req.ID)
				continue
			}
			failed, ferr := s.pending.RecordFailure(ctx, req, maxAttempts)
			if ferr != nil {
				return res, ferr
			}
			s.logger.Warn("Pending request failed again",
				"id", req.ID, "attempts", failed.AttemptCount, "status", string(failed.Status), "error", err)
			if failed.Status == models.PendingStatusRetrying {
				// retry on the next pass rather than spinning on the same request
				break
			}
			continue
		}
		res.Stored++
		s.metrics.ObservePendingDrained("stored")
	}

	if res.Stored > 0 {
		s.publish(ctx, models.EventPendingDrained, "")
	}
	return res, nil
}

// Get returns a word by id
func (s *Service) Get(ctx context.Context, id string) (models.WordEntry, error) {
	return s.words.Get(ctx, id)
}

// List pages through words, newest first
func (s *Service) List(ctx context.Context, opts database.ListOptions) ([]models.WordEntry, error) {
	return s.words.List(ctx, opts)
}

// Recent returns the latest captured words
func (s *Service) Recent(ctx context.Context, limit int) ([]models.WordEntry, error) {
	return s.words.Recent(ctx, limit)
}

// Due returns words whose review is due at reference. A zero reference means now.
func (s *Service) Due(ctx context.Context, reference time.Time, limit int) ([]models.WordEntry, error) {
	if reference.IsZero() {
		reference = s.clock()
	}
	return s.words.Due(ctx, models.Millis(reference), limit)
}

// DueStates returns due review states ordered by review priority
func (s *Service) DueStates(ctx context.Context, limit int) ([]models.ReviewState, error) {
	now := s.clock()
	states, err := s.states.DueReviewStates(ctx, models.Millis(now))
	if err != nil {
		return nil, err
	}
	return spaced_repetition.PrioritizeDue(states, now, limit), nil
}

// ReviewState returns the schedule of a word
func (s *Service) ReviewState(ctx context.Context, id string) (models.ReviewState, error) {
	return s.states.GetReviewState(ctx, id)
}

// ApplyReview grades a stored word
func (s *Service) ApplyReview(ctx context.Context, id string, grade spaced_repetition.Grade) (models.ReviewState, error) {
	if _, err := s.words.Get(ctx, id); err != nil {
		return models.ReviewState{}, err
	}
	return s.reviews.ApplyReview(ctx, id, grade)
}

// MarkKnown removes a word from the review schedule
func (s *Service) MarkKnown(ctx context.Context, id string) error {
	if err := s.words.MarkKnown(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, models.EventWordUpdated, id)
	return nil
}

// Delete removes a word and its schedule
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.words.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, models.EventWordDeleted, id)
	return nil
}

// RecordView counts a look at a word
func (s *Service) RecordView(ctx context.Context, id string) error {
	return s.words.RecordView(ctx, id)
}

// Stats summarizes the store
func (s *Service) Stats(ctx context.Context) (models.Statistics, error) {
	return s.stats.Summary(ctx, models.Millis(s.clock()), spaced_repetition.IsMastered)
}

// ExportSnapshot reads the whole store
func (s *Service) ExportSnapshot(ctx context.Context) (models.Snapshot, error) {
	return s.snapshots.Export(ctx)
}

// ImportSnapshot replaces the whole store. A snapshot holding a review state
// the engine cannot grade is rejected before anything is written.
func (s *Service) ImportSnapshot(ctx context.Context, snap models.Snapshot) error {
	engine := s.reviews.Engine()
	for i, state := range snap.ReviewStates {
		if err := engine.Validate(state); err != nil {
			return fmt.Errorf("snapshot review state %d (%q): %w", i, state.ID, err)
		}
	}
	if err := s.snapshots.Import(ctx, snap); err != nil {
		return err
	}
	s.logger.Info("Snapshot imported",
		"words", len(snap.WordEntries),
		"review_states", len(snap.ReviewStates),
		"pending", len(snap.PendingRequests))
	return nil
}

// AllWords returns every stored word, oldest first
func (s *Service) AllWords(ctx context.Context) ([]models.WordEntry, error) {
	return s.words.All(ctx)
}
