package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/webvoca/pkg/models"
)

// steppingClock advances one second per call
func steppingClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(Options{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleWord(word, url string) models.WordEntry {
	return models.WordEntry{
		ID:             models.WordEntryID(word, url),
		Word:           word,
		NormalizedWord: models.NormalizeWord(word),
		Context:        "a sentence with " + word,
		URL:            url,
		SourceTitle:    "Sample",
		Language:       "en",
		Tags:           models.StringList{"reading"},
		IncludeInQuiz:  true,
	}
}

func TestOpenCreatesFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "webvoca.db")
	db, err := Open(Options{Driver: "sqlite3", DSN: path})
	require.NoError(t, err)
	defer db.Close()

	// schema creation is idempotent
	require.NoError(t, InitializeSchema(db))
	assert.FileExists(t, path)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle"})
	assert.Error(t, err)

	_, err = Open(Options{Driver: "postgres"})
	assert.Error(t, err)
}

func TestMonotonicClock(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	c := NewMonotonicClock(func() time.Time { return fixed })

	a, b, d := c.NowMillis(), c.NowMillis(), c.NowMillis()
	assert.Equal(t, int64(1_700_000_000_000), a)
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+1, d)
}

func TestWordRepositoryUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewWordRepository(openTestDB(t), nil)

	saved, err := repo.Upsert(ctx, sampleWord("Serendipity", "https://a.test/1"))
	require.NoError(t, err)
	assert.NotZero(t, saved.CreatedAt)
	assert.Equal(t, saved.CreatedAt, saved.UpdatedAt)

	got, err := repo.Get(ctx, "serendipity::https://a.test/1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
	assert.Equal(t, models.StringList{"reading"}, got.Tags)
	assert.Equal(t, models.StringList{}, got.Definitions)
	assert.True(t, got.IncludeInQuiz)

	got.Note = "lucky accident"
	updated, err := repo.Upsert(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, saved.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.UpdatedAt, saved.UpdatedAt)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWordRepositoryListAndSearch(t *testing.T) {
	ctx := context.Background()
	repo := NewWordRepository(openTestDB(t), nil)
	for _, w := range []string{"ephemeral", "ubiquitous", "resilience", "synthesis"} {
		_, err := repo.Upsert(ctx, sampleWord(w, "https://a.test"))
		require.NoError(t, err)
	}

	all, err := repo.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "synthesis", all[0].Word)
	assert.Equal(t, "ephemeral", all[3].Word)

	page, err := repo.List(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "resilience", page[0].Word)

	found, err := repo.List(ctx, ListOptions{Query: "QUIT"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ubiquitous", found[0].Word)

	oldest, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", oldest[0].Word)
}

func TestWordRepositoryRecordView(t *testing.T) {
	ctx := context.Background()
	repo := NewWordRepository(openTestDB(t), nil)
	w, err := repo.Upsert(ctx, sampleWord("lucid", "https://a.test"))
	require.NoError(t, err)

	require.NoError(t, repo.RecordView(ctx, w.ID))
	require.NoError(t, repo.RecordView(ctx, w.ID))
	require.NoError(t, repo.RecordView(ctx, "unknown"))

	got, err := repo.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewCount)
	assert.Greater(t, got.LastViewedAt, w.CreatedAt)
	assert.Equal(t, got.LastViewedAt, got.UpdatedAt)
}

func TestReviewStateVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewReviewStateRepository(openTestDB(t))

	_, err := repo.GetReviewState(ctx, "w")
	assert.ErrorIs(t, err, ErrNotFound)

	state := models.ReviewState{ID: "w", WordID: "w", NextReviewAt: 1000, EaseFactor: 2.5}
	saved, err := repo.SaveReviewState(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	// a second creator loses
	_, err = repo.SaveReviewState(ctx, state)
	assert.ErrorIs(t, err, ErrConflict)

	saved.Repetitions = 1
	saved.Interval = 1
	saved.History = models.ReviewHistory{{ReviewedAt: 1000, Grade: 4}}
	next, err := repo.SaveReviewState(ctx, saved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.Version)

	// stale writer
	_, err = repo.SaveReviewState(ctx, saved)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetReviewState(ctx, "w")
	require.NoError(t, err)
	assert.Equal(t, next, got)

	all, err := repo.ListReviewStates(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.DeleteReviewState(ctx, "w"))
	require.NoError(t, repo.DeleteReviewState(ctx, "w"))
	_, err = repo.GetReviewState(ctx, "w")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDueReviewsAndMarkKnown(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	words := NewWordRepository(db, nil)
	states := NewReviewStateRepository(db)

	for i, w := range []string{"alpha", "beta", "gamma"} {
		entry := sampleWord(w, "https://a.test")
		entry.IsFavorite = true
		_, err := words.Upsert(ctx, entry)
		require.NoError(t, err)
		_, err = states.SaveReviewState(ctx, models.ReviewState{
			ID: entry.ID, WordID: entry.ID, EaseFactor: 2.5, NextReviewAt: int64(1000 * (i + 1)),
		})
		require.NoError(t, err)
	}

	due, err := words.Due(ctx, 2000, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "alpha", due[0].Word)
	assert.Equal(t, "beta", due[1].Word)

	limited, err := words.Due(ctx, 5000, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	dueStates, err := states.DueReviewStates(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, dueStates, 1)

	alphaID := models.WordEntryID("alpha", "https://a.test")
	require.NoError(t, words.MarkKnown(ctx, alphaID))
	known, err := words.Get(ctx, alphaID)
	require.NoError(t, err)
	assert.False(t, known.IsFavorite)
	_, err = states.GetReviewState(ctx, alphaID)
	assert.ErrorIs(t, err, ErrNotFound)

	due, err = words.Due(ctx, 2000, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "beta", due[0].Word)

	assert.ErrorIs(t, words.MarkKnown(ctx, "nope"), ErrNotFound)
}

func TestWordRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	words := NewWordRepository(db, nil)
	states := NewReviewStateRepository(db)

	w, err := words.Upsert(ctx, sampleWord("fleeting", "https://a.test"))
	require.NoError(t, err)
	_, err = states.SaveReviewState(ctx, models.ReviewState{ID: w.ID, WordID: w.ID, EaseFactor: 2.5})
	require.NoError(t, err)

	require.NoError(t, words.Delete(ctx, w.ID))
	_, err = words.Get(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = states.GetReviewState(ctx, w.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, words.Delete(ctx, w.ID), ErrNotFound)
}

func TestPendingQueue(t *testing.T) {
	ctx := context.Background()
	repo := NewPendingRepository(openTestDB(t), NewMonotonicClock(steppingClock(time.Unix(0, 0))))

	_, err := repo.PopNext(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := repo.Enqueue(ctx, models.Selection{Word: "first", URL: "https://a.test"})
	require.NoError(t, err)
	assert.Contains(t, first.ID, "pending_")
	assert.Equal(t, models.PendingStatusPending, first.Status)
	_, err = repo.Enqueue(ctx, models.Selection{Word: "second", URL: "https://a.test", Tags: []string{"x"}})
	require.NoError(t, err)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	popped, err := repo.PopNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, popped.ID)
	assert.Equal(t, "first", popped.Payload.Word)

	retry, err := repo.RecordFailure(ctx, popped, 2)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusRetrying, retry.Status)
	assert.Equal(t, 1, retry.AttemptCount)
	assert.NotZero(t, retry.LastAttemptedAt)

	// the retried request keeps its place at the head of the queue
	again, err := repo.PopNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	failed, err := repo.RecordFailure(ctx, again, 2)
	require.NoError(t, err)
	assert.Equal(t, models.PendingStatusFailed, failed.Status)

	second, err := repo.PopNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", second.Payload.Word)
	assert.Equal(t, []string{"x"}, second.Payload.Tags)

	_, err = repo.PopNext(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.PendingStatusFailed, all[0].Status)
}

func TestQuizSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewQuizSessionRepository(openTestDB(t))

	session := models.QuizSession{ID: NewQuizSessionID(), WordIDs: models.StringList{"a", "b"}, StartedAt: 100}
	require.NoError(t, repo.Save(ctx, session))

	session.CorrectCount = 1
	session.IncorrectCount = 1
	session.CompletedAt = 200
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.Get(ctx, "quiz_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSettingsRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t), nil)

	type highlight struct {
		Density string `json:"density"`
		Max     int    `json:"maxHighlights"`
	}
	var dest highlight
	ok, err := repo.Load(ctx, "highlight", &dest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Put(ctx, "highlight", highlight{Density: "high", Max: 40})
	require.NoError(t, err)
	_, err = repo.Put(ctx, "highlight", highlight{Density: "medium", Max: 20})
	require.NoError(t, err)

	ok, err = repo.Load(ctx, "highlight", &dest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, highlight{Density: "medium", Max: 20}, dest)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"density":"medium","maxHighlights":20}`, string(list[0].Value))
}

func TestStatisticsSummary(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	words := NewWordRepository(db, nil)
	states := NewReviewStateRepository(db)
	pending := NewPendingRepository(db, nil)

	for _, w := range []string{"one", "two", "three"} {
		_, err := words.Upsert(ctx, sampleWord(w, "https://a.test"))
		require.NoError(t, err)
	}
	_, err := states.SaveReviewState(ctx, models.ReviewState{ID: "one", WordID: "one", EaseFactor: 2.0, NextReviewAt: 10})
	require.NoError(t, err)
	_, err = states.SaveReviewState(ctx, models.ReviewState{
		ID: "two", WordID: "two", EaseFactor: 3.0, NextReviewAt: 10_000, Repetitions: 6, Interval: 60,
		History: models.ReviewHistory{{ReviewedAt: 1, Grade: 5}},
	})
	require.NoError(t, err)
	_, err = pending.Enqueue(ctx, models.Selection{Word: "queued"})
	require.NoError(t, err)

	stats, err := NewStatisticsRepository(db).Summary(ctx, 100, func(s models.ReviewState) bool { return s.Repetitions >= 5 })
	require.NoError(t, err)
	assert.Equal(t, models.Statistics{
		TotalWords:        3,
		ReviewedWords:     2,
		DueNow:            1,
		Mastered:          1,
		AverageEaseFactor: 2.5,
		PendingRequests:   1,
	}, stats)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := openTestDB(t)
	words := NewWordRepository(src, nil)
	states := NewReviewStateRepository(src)

	w, err := words.Upsert(ctx, sampleWord("liminal", "https://a.test"))
	require.NoError(t, err)
	_, err = states.SaveReviewState(ctx, models.ReviewState{ID: w.ID, WordID: w.ID, EaseFactor: 2.5, NextReviewAt: 5})
	require.NoError(t, err)
	_, err = NewPendingRepository(src, nil).Enqueue(ctx, models.Selection{Word: "later"})
	require.NoError(t, err)
	require.NoError(t, NewQuizSessionRepository(src).Save(ctx, models.QuizSession{ID: "quiz_1", StartedAt: 1}))
	_, err = NewSettingsRepository(src, nil).Put(ctx, "theme", "pink")
	require.NoError(t, err)

	snap, err := NewSnapshotRepository(src).Export(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.WordEntries, 1)
	assert.Len(t, snap.ReviewStates, 1)
	assert.Len(t, snap.PendingRequests, 1)
	assert.Len(t, snap.QuizSessions, 1)
	assert.Len(t, snap.Settings, 1)

	dst := openTestDB(t)
	_, err = NewWordRepository(dst, nil).Upsert(ctx, sampleWord("to-be-replaced", "https://b.test"))
	require.NoError(t, err)

	require.NoError(t, NewSnapshotRepository(dst).Import(ctx, snap))
	restored, err := NewSnapshotRepository(dst).Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, restored)
}
