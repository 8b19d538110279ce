package spaced_repetition

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/webvoca/pkg/models"
)

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func TestApplyFirstAndSecondSuccess(t *testing.T) {
	sm := NewSM2()
	initial := sm.NewReviewState("serendipity::https://example.com", testNow)

	first, err := sm.Apply(initial, GradeGood, testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Repetitions)
	assert.Equal(t, 1, first.Interval)
	assert.InDelta(t, 2.5, first.EaseFactor, 1e-9)
	assert.Equal(t, models.Millis(testNow)+86_400_000, first.NextReviewAt)
	require.Len(t, first.History, 1)
	assert.Equal(t, models.ReviewHistoryItem{ReviewedAt: models.Millis(testNow), Grade: 4}, first.History[0])

	later := testNow.Add(24 * time.Hour)
	second, err := sm.Apply(first, GradeEasy, later)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Repetitions)
	assert.Equal(t, 6, second.Interval)
	assert.InDelta(t, 2.6, second.EaseFactor, 1e-9)
	assert.Equal(t, models.Millis(later)+6*86_400_000, second.NextReviewAt)
	assert.Len(t, second.History, 2)
}

func TestApplyThirdSuccessUsesEaseFactor(t *testing.T) {
	sm := NewSM2()
	state := models.ReviewState{ID: "w", WordID: "w", Interval: 6, EaseFactor: 2.6, Repetitions: 2}

	next, err := sm.Apply(state, GradeGood, testNow)
	require.NoError(t, err)
	assert.Equal(t, 16, next.Interval) // round(6 * 2.6) = round(15.6)
	assert.Equal(t, 3, next.Repetitions)
}

func TestApplyFailureResets(t *testing.T) {
	sm := NewSM2()
	state := models.ReviewState{ID: "w", WordID: "w", Interval: 40, EaseFactor: 2.2, Repetitions: 6}

	for g := GradeBlackout; g < GradeCorrectDifficult; g++ {
		next, err := sm.Apply(state, g, testNow)
		require.NoError(t, err)
		assert.Equal(t, 0, next.Repetitions, "grade %d", g)
		assert.Equal(t, 1, next.Interval, "grade %d", g)
		assert.Equal(t, models.Millis(testNow)+86_400_000, next.NextReviewAt)
	}
}

func TestApplyEaseFactorFloor(t *testing.T) {
	sm := NewSM2()
	state := sm.NewReviewState("w", testNow)
	for i := 0; i < 20; i++ {
		var err error
		state, err = sm.Apply(state, GradeBlackout, testNow)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, state.EaseFactor, 1.3)
	}
	assert.InDelta(t, 1.3, state.EaseFactor, 1e-9)
}

func TestApplyEaseFactorHasNoCeiling(t *testing.T) {
	sm := NewSM2()
	state := sm.NewReviewState("w", testNow)
	for i := 0; i < 10; i++ {
		var err error
		state, err = sm.Apply(state, GradePerfect, testNow)
		require.NoError(t, err)
	}
	assert.InDelta(t, 3.5, state.EaseFactor, 1e-9)
}

func TestApplyIntervalMonotonicOnSuccess(t *testing.T) {
	sm := NewSM2()
	for _, g := range []Grade{GradeCorrectDifficult, GradeCorrectHesitation, GradePerfect} {
		state := sm.NewReviewState("w", testNow)
		prev := state.Interval
		for i := 0; i < 8; i++ {
			next, err := sm.Apply(state, g, testNow)
			require.NoError(t, err)
			if state.Repetitions >= 2 {
				assert.Greater(t, next.Interval, prev, "grade %d step %d", g, i)
			} else {
				assert.GreaterOrEqual(t, next.Interval, prev, "grade %d step %d", g, i)
			}
			assert.Equal(t, state.Repetitions+1, next.Repetitions)
			prev = next.Interval
			state = next
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	sm := NewSM2()
	state := models.ReviewState{
		ID: "w", WordID: "w", Interval: 6, EaseFactor: 2.5, Repetitions: 2,
		History: make(models.ReviewHistory, 1, 4),
	}
	state.History[0] = models.ReviewHistoryItem{ReviewedAt: 1, Grade: 4}

	a, err := sm.Apply(state, GradeGood, testNow)
	require.NoError(t, err)
	b, err := sm.Apply(state, GradeBlackout, testNow)
	require.NoError(t, err)

	assert.Len(t, state.History, 1)
	assert.Equal(t, 4, a.History[1].Grade)
	assert.Equal(t, 0, b.History[1].Grade)
	assert.Equal(t, state.History[0], a.History[0])
}

func TestApplyRejectsInvalidGrade(t *testing.T) {
	sm := NewSM2()
	state := sm.NewReviewState("w", testNow)
	for _, g := range []Grade{-1, 6, 100} {
		_, err := sm.Apply(state, g, testNow)
		assert.ErrorIs(t, err, ErrInvalidGrade)
	}
}

func TestApplyRejectsInvalidState(t *testing.T) {
	sm := NewSM2()
	tests := []struct {
		name  string
		state models.ReviewState
	}{
		{"empty id", models.ReviewState{EaseFactor: 2.5}},
		{"nan ease", models.ReviewState{ID: "w", EaseFactor: math.NaN()}},
		{"infinite ease", models.ReviewState{ID: "w", EaseFactor: math.Inf(1)}},
		{"ease below floor", models.ReviewState{ID: "w", EaseFactor: 1.0}},
		{"negative repetitions", models.ReviewState{ID: "w", EaseFactor: 2.5, Repetitions: -1}},
		{"negative interval", models.ReviewState{ID: "w", EaseFactor: 2.5, Interval: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sm.Apply(tt.state, GradeGood, testNow)
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestPrioritizeDue(t *testing.T) {
	now := models.Millis(testNow)
	states := []models.ReviewState{
		{ID: "future", EaseFactor: 1.3, Repetitions: 2, NextReviewAt: now + 1000},
		{ID: "easy-old", EaseFactor: 2.8, Repetitions: 3, NextReviewAt: now - 5000},
		{ID: "hard", EaseFactor: 1.5, Repetitions: 4, NextReviewAt: now - 10},
		{ID: "new", EaseFactor: 2.5, Repetitions: 0, NextReviewAt: now},
		{ID: "easy-older", EaseFactor: 2.8, Repetitions: 1, NextReviewAt: now - 9000},
	}

	due := PrioritizeDue(states, testNow, 0)
	ids := make([]string, 0, len(due))
	for _, s := range due {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"new", "hard", "easy-older", "easy-old"}, ids)

	limited := PrioritizeDue(states, testNow, 2)
	require.Len(t, limited, 2)
	assert.Equal(t, "new", limited[0].ID)
}

func TestIsMastered(t *testing.T) {
	mastered := models.ReviewState{
		Repetitions: 5, Interval: 45,
		History: models.ReviewHistory{{Grade: 4}},
	}
	assert.True(t, IsMastered(mastered))

	lowGrade := mastered
	lowGrade.History = models.ReviewHistory{{Grade: 3}}
	assert.False(t, IsMastered(lowGrade))

	short := mastered
	short.Interval = 20
	assert.False(t, IsMastered(short))

	assert.False(t, IsMastered(models.ReviewState{Repetitions: 9, Interval: 90}))
}
