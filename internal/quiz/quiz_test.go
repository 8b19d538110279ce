package quiz

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/events"
	"github.com/example/webvoca/internal/highlight"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/internal/vocabulary"
	"github.com/example/webvoca/pkg/models"
)

var start = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	vocab *vocabulary.Service
	quiz  *Module
	now   *time.Time
}

func newFixture(t *testing.T, cards int) *fixture {
	t.Helper()
	db, err := database.Open(database.Options{Driver: database.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := start
	clock := func() time.Time { return now }
	vocab, err := vocabulary.NewService(db, vocabulary.Options{
		Highlight: highlight.DefaultSettings(),
		Publisher: &events.Recorder{},
		Clock:     clock,
	})
	require.NoError(t, err)

	q := NewModule(vocab, database.NewQuizSessionRepository(db), Options{
		CardsPerSession: cards,
		Clock:           clock,
		Rand:            rand.New(rand.NewSource(1)),
	})
	return &fixture{vocab: vocab, quiz: q, now: &now}
}

func (f *fixture) register(t *testing.T, word, sentence string) models.WordEntry {
	t.Helper()
	w, err := f.vocab.Register(context.Background(), models.Selection{Word: word, Context: sentence, URL: "https://read.test/a"})
	require.NoError(t, err)
	return w
}

func TestClozeSentence(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		word     string
		want     string
		ok       bool
	}{
		{"first occurrence", "Ebb and flow, ebb again.", "ebb", "_______ and flow, ebb again.", true},
		{"whole words only", "The cartographer drew a cart.", "cart", "The cartographer drew a _______.", true},
		{"case insensitive", "Serendipity struck.", "serendipity", "_______ struck.", true},
		{"no boundary around symbols", "Use C++ daily.", "C++", "Use _______ daily.", false},
		{"missing word", "Nothing here.", "absent", "", false},
		{"empty sentence", "", "word", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClozeSentence(tt.sentence, tt.word)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStartWithEmptyVocabulary(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.quiz.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoCards)
}

func TestStartFallsBackToRecentWords(t *testing.T) {
	f := newFixture(t, 2)
	f.register(t, "ephemeral", "An ephemeral trend.")
	f.register(t, "laconic", "")
	f.register(t, "quixotic", "A quixotic plan.")

	session, err := f.quiz.Start(context.Background())
	require.NoError(t, err)
	require.Len(t, session.Cards, 2)
	assert.Len(t, session.WordIDs, 2)

	for _, c := range session.Cards {
		if c.Word.Context == "" {
			assert.Equal(t, Recall, c.Type)
			assert.Equal(t, c.Word.Word, c.Prompt)
		} else {
			assert.Equal(t, Cloze, c.Type)
			assert.Contains(t, c.Prompt, blank)
			assert.NotContains(t, c.Prompt, c.Word.Word)
		}
	}

	history, err := f.quiz.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, session.ID, history[0].ID)
	assert.Equal(t, models.Millis(start), history[0].StartedAt)
}

func TestStartPrefersDueWords(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	due := f.register(t, "ubiquitous", "")
	f.register(t, "resilience", "")

	_, err := f.vocab.ApplyReview(ctx, due.ID, spaced_repetition.GradeAgain)
	require.NoError(t, err)
	*f.now = start.Add(48 * time.Hour)

	session, err := f.quiz.Start(ctx)
	require.NoError(t, err)
	require.Len(t, session.Cards, 1)
	assert.Equal(t, due.ID, session.Cards[0].Word.ID)
}

func TestAnswerAndFinish(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	a := f.register(t, "ephemeral", "")
	b := f.register(t, "laconic", "")

	session, err := f.quiz.Start(ctx)
	require.NoError(t, err)
	require.Len(t, session.Cards, 2)

	_, err = f.quiz.Answer(ctx, session.ID, a.ID, spaced_repetition.Grade(9))
	assert.ErrorIs(t, err, spaced_repetition.ErrInvalidGrade)

	_, err = f.quiz.Answer(ctx, session.ID, "unknown::https://read.test/a", spaced_repetition.GradeGood)
	assert.ErrorIs(t, err, ErrCardNotInQuiz)

	_, err = f.quiz.Answer(ctx, "quiz_missing", a.ID, spaced_repetition.GradeGood)
	assert.ErrorIs(t, err, database.ErrNotFound)

	state, err := f.quiz.Answer(ctx, session.ID, a.ID, spaced_repetition.GradeGood)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Repetitions)

	_, err = f.quiz.Answer(ctx, session.ID, a.ID, spaced_repetition.GradeEasy)
	assert.ErrorIs(t, err, ErrAlreadyGraded)

	*f.now = start.Add(5 * time.Minute)
	state, err = f.quiz.Answer(ctx, session.ID, b.ID, spaced_repetition.GradeAgain)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Repetitions)

	history, err := f.quiz.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	done := history[0]
	assert.Equal(t, 1, done.CorrectCount)
	assert.Equal(t, 1, done.IncorrectCount)
	assert.Equal(t, models.Millis(start.Add(5*time.Minute)), done.CompletedAt)

	_, err = f.quiz.Answer(ctx, session.ID, b.ID, spaced_repetition.GradeGood)
	assert.ErrorIs(t, err, ErrSessionClosed)

	finished, err := f.quiz.Finish(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, done, finished)
}

func TestFinishEarly(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	a := f.register(t, "ephemeral", "")
	f.register(t, "laconic", "")

	session, err := f.quiz.Start(ctx)
	require.NoError(t, err)
	_, err = f.quiz.Answer(ctx, session.ID, a.ID, spaced_repetition.GradeEasy)
	require.NoError(t, err)

	*f.now = start.Add(time.Minute)
	finished, err := f.quiz.Finish(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, finished.CorrectCount)
	assert.Zero(t, finished.IncorrectCount)
	assert.Equal(t, models.Millis(*f.now), finished.CompletedAt)

	_, err = f.quiz.Finish(ctx, "quiz_missing")
	assert.ErrorIs(t, err, database.ErrNotFound)
}
