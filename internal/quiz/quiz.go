package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/pkg/models"
)

var (
	ErrNoCards       = errors.New("quiz: nothing to review")
	ErrSessionClosed = errors.New("quiz: session already finished")
	ErrCardNotInQuiz = errors.New("quiz: word is not part of the session")
	ErrAlreadyGraded = errors.New("quiz: card already graded")
)

// recentFallback is how many recent words are considered when nothing is due
const recentFallback = 20

// QuestionType represents different kinds of cards
type QuestionType string

const (
	// Recall shows the word and asks the user to grade how well they remember it
	Recall QuestionType = "recall"
	// Cloze shows the captured sentence with the word blanked out
	Cloze QuestionType = "cloze"
)

const blank = "_______"

// Vocabulary is the part of the vocabulary store a quiz needs
type Vocabulary interface {
	DueStates(ctx context.Context, limit int) ([]models.ReviewState, error)
	Get(ctx context.Context, id string) (models.WordEntry, error)
	Recent(ctx context.Context, limit int) ([]models.WordEntry, error)
	ApplyReview(ctx context.Context, id string, grade spaced_repetition.Grade) (models.ReviewState, error)
}

// Card is a single question of a session
type Card struct {
	Word   models.WordEntry `json:"word"`
	Type   QuestionType     `json:"type"`
	Prompt string           `json:"prompt"`
}

// Session is a started quiz with its cards
type Session struct {
	models.QuizSession
	Cards []Card `json:"cards"`
}

// Options tunes a Module. Zero values get defaults.
type Options struct {
	CardsPerSession int
	PassThreshold   int
	Clock           func() time.Time
	Rand            *rand.Rand
	Logger          *slog.Logger
}

// Module runs review sessions over the vocabulary
type Module struct {
	vocab    Vocabulary
	sessions *database.QuizSessionRepository
	opts     Options

	mu     sync.Mutex // guards session read-modify-write and rnd
	graded map[string]map[string]struct{}
}

// NewModule creates a quiz module
func NewModule(vocab Vocabulary, sessions *database.QuizSessionRepository, opts Options) *Module {
	if opts.CardsPerSession <= 0 {
		opts.CardsPerSession = 10
	}
	if opts.PassThreshold <= 0 {
		opts.PassThreshold = spaced_repetition.NewSM2().PassThreshold
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Module{
		vocab:    vocab,
		sessions: sessions,
		opts:     opts,
		graded:   make(map[string]map[string]struct{}),
	}
}

// Start picks due cards by review priority. When nothing is due it falls back to
// a shuffled selection of the most recent quiz-enabled words.
func (m *Module) Start(ctx context.Context) (Session, error) {
	words, err := m.dueWords(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(words) == 0 {
		if words, err = m.recentWords(ctx); err != nil {
			return Session{}, err
		}
	}
	if len(words) == 0 {
		return Session{}, ErrNoCards
	}

	session := Session{
		QuizSession: models.QuizSession{
			ID:        database.NewQuizSessionID(),
			WordIDs:   make(models.StringList, 0, len(words)),
			StartedAt: models.Millis(m.opts.Clock()),
		},
		Cards: make([]Card, 0, len(words)),
	}
	for _, w := range words {
		session.WordIDs = append(session.WordIDs, w.ID)
		session.Cards = append(session.Cards, newCard(w))
	}
	if err := m.sessions.Save(ctx, session.QuizSession); err != nil {
		return Session{}, err
	}
	m.opts.Logger.Info("Quiz session started", "id", session.ID, "cards", len(session.Cards))
	return session, nil
}

func (m *Module) dueWords(ctx context.Context) ([]models.WordEntry, error) {
	states, err := m.vocab.DueStates(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get due reviews: %w", err)
	}
	words := make([]models.WordEntry, 0, m.opts.CardsPerSession)
	for _, s := range states {
		if len(words) == m.opts.CardsPerSession {
			break
		}
		w, err := m.vocab.Get(ctx, s.WordID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if w.IncludeInQuiz {
			words = append(words, w)
		}
	}
	return words, nil
}

func (m *Module) recentWords(ctx context.Context) ([]models.WordEntry, error) {
	recent, err := m.vocab.Recent(ctx, recentFallback)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent words: %w", err)
	}
	words := slices.DeleteFunc(recent, func(w models.WordEntry) bool { return !w.IncludeInQuiz })

	m.mu.Lock()
	m.opts.Rand.Shuffle(len(words), func(i, j int) {
		words[i], words[j] = words[j], words[i]
	})
	m.mu.Unlock()

	if len(words) > m.opts.CardsPerSession {
		words = words[:m.opts.CardsPerSession]
	}
	return words, nil
}

func newCard(w models.WordEntry) Card {
	if prompt, ok := ClozeSentence(w.Context, w.Word); ok {
		return Card{Word: w, Type: Cloze, Prompt: prompt}
	}
	return Card{Word: w, Type: Recall, Prompt: w.Word}
}

// Answer grades one card of an open session and updates its schedule
func (m *Module) Answer(ctx context.Context, sessionID, wordID string, grade spaced_repetition.Grade) (models.ReviewState, error) {
	if !grade.Valid() {
		return models.ReviewState{}, fmt.Errorf("%w: %d", spaced_repetition.ErrInvalidGrade, grade)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.ReviewState{}, err
	}
	if session.CompletedAt != 0 {
		return models.ReviewState{}, ErrSessionClosed
	}
	if !slices.Contains(session.WordIDs, wordID) {
		return models.ReviewState{}, fmt.Errorf("%w: %s", ErrCardNotInQuiz, wordID)
	}
	if _, done := m.graded[sessionID][wordID]; done {
		return models.ReviewState{}, fmt.Errorf("%w: %s", ErrAlreadyGraded, wordID)
	}

	state, err := m.vocab.ApplyReview(ctx, wordID, grade)
	if err != nil {
		return models.ReviewState{}, err
	}

	if int(grade) >= m.opts.PassThreshold {
		session.CorrectCount++
	} else {
		session.IncorrectCount++
	}
	if m.graded[sessionID] == nil {
		m.graded[sessionID] = make(map[string]struct{})
	}
	m.graded[sessionID][wordID] = struct{}{}

	if session.CorrectCount+session.IncorrectCount == len(session.WordIDs) {
		session.CompletedAt = models.Millis(m.opts.Clock())
		delete(m.graded, sessionID)
	}
	if err := m.sessions.Save(ctx, session); err != nil {
		return models.ReviewState{}, err
	}
	return state, nil
}

// Finish closes a session. Finishing a closed session returns it unchanged.
func (m *Module) Finish(ctx context.Context, sessionID string) (models.QuizSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return models.QuizSession{}, err
	}
	if session.CompletedAt != 0 {
		return session, nil
	}
	session.CompletedAt = models.Millis(m.opts.Clock())
	if err := m.sessions.Save(ctx, session); err != nil {
		return models.QuizSession{}, err
	}
	delete(m.graded, sessionID)
	m.opts.Logger.Info("Quiz session finished",
		"id", session.ID, "correct", session.CorrectCount, "incorrect", session.IncorrectCount)
	return session, nil
}

// History returns the latest sessions first
func (m *Module) History(ctx context.Context, limit int) ([]models.QuizSession, error) {
	return m.sessions.List(ctx, limit)
}

// ClozeSentence blanks the first whole-word occurrence of word in sentence,
// ignoring case. It reports false when the word does not occur.
func ClozeSentence(sentence, word string) (string, bool) {
	if sentence == "" || word == "" {
		return "", false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return "", false
	}
	loc := re.FindStringIndex(sentence)
	if loc == nil {
		return "", false
	}
	return sentence[:loc[0]] + blank + sentence[loc[1]:], true
}
