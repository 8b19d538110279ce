package spaced_repetition

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/example/webvoca/pkg/models"
)

const dayMillis int64 = 24 * 60 * 60 * 1000

// SM2 implements the SuperMemo-2 algorithm for spaced repetition
type SM2 struct {
	// Grades at or above the threshold count as a successful recall
	PassThreshold int
	// Ease factor of a word that was never reviewed
	InitialEaseFactor float64
	// Lower bound of the ease factor
	MinEaseFactor float64
}

// NewSM2 creates an SM2 with the standard settings
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:     3,
		InitialEaseFactor: 2.5,
		MinEaseFactor:     1.3,
	}
}

// Grade is the quality of a recall in SM-2
type Grade int

const (
	// Complete blackout, unable to recall
	GradeBlackout Grade = 0
	// Incorrect response but remembered upon seeing the correct answer
	GradeIncorrect Grade = 1
	// Incorrect response but the correct answer felt familiar
	GradeIncorrectFamiliar Grade = 2
	// Correct response but required significant effort
	GradeCorrectDifficult Grade = 3
	// Correct response after some hesitation
	GradeCorrectHesitation Grade = 4
	// Perfect response with no hesitation
	GradePerfect Grade = 5
)

// Quiz buttons
const (
	GradeAgain = GradeIncorrectFamiliar
	GradeGood  = GradeCorrectHesitation
	GradeEasy  = GradePerfect
)

// Valid reports whether g is within [0, 5]
func (g Grade) Valid() bool {
	return g >= GradeBlackout && g <= GradePerfect
}

// NewReviewState returns the state of a word that was never graded
func (sm *SM2) NewReviewState(wordID string, now time.Time) models.ReviewState {
	return models.ReviewState{
		ID:           wordID,
		WordID:       wordID,
		NextReviewAt: models.Millis(now),
		Interval:     0,
		EaseFactor:   sm.InitialEaseFactor,
		Repetitions:  0,
		History:      models.ReviewHistory{},
	}
}

// Apply grades a review and returns the updated state. The input is not modified.
func (sm *SM2) Apply(state models.ReviewState, grade Grade, now time.Time) (models.ReviewState, error) {
	if !grade.Valid() {
		return state, fmt.Errorf("%w: got %d", ErrInvalidGrade, grade)
	}
	if err := sm.Validate(state); err != nil {
		return state, err
	}

	next := state
	if int(grade) < sm.PassThreshold {
		// Failed recall starts the word over, reviewed again tomorrow
		next.Repetitions = 0
		next.Interval = 1
	} else {
		switch state.Repetitions {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(state.Interval) * state.EaseFactor))
		}
		next.Repetitions = state.Repetitions + 1
	}

	q := float64(GradePerfect - grade)
	ef := state.EaseFactor + (0.1 - q*(0.08+q*0.02))
	if ef < sm.MinEaseFactor {
		ef = sm.MinEaseFactor
	}
	next.EaseFactor = ef

	nowMs := models.Millis(now)
	next.NextReviewAt = nowMs + int64(next.Interval)*dayMillis

	history := make(models.ReviewHistory, len(state.History), len(state.History)+1)
	copy(history, state.History)
	next.History = append(history, models.ReviewHistoryItem{ReviewedAt: nowMs, Grade: int(grade)})

	return next, nil
}

// Validate reports a state this engine cannot grade, wrapping ErrInvalidState
func (sm *SM2) Validate(s models.ReviewState) error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidState)
	case math.IsNaN(s.EaseFactor) || math.IsInf(s.EaseFactor, 0):
		return fmt.Errorf("%w: ease factor is not finite", ErrInvalidState)
	case s.EaseFactor < sm.MinEaseFactor:
		return fmt.Errorf("%w: ease factor %.2f below %.2f", ErrInvalidState, s.EaseFactor, sm.MinEaseFactor)
	case s.Repetitions < 0:
		return fmt.Errorf("%w: negative repetitions", ErrInvalidState)
	case s.Interval < 0:
		return fmt.Errorf("%w: negative interval", ErrInvalidState)
	}
	return nil
}

// PrioritizeDue returns up to limit states due at now, most urgent first.
// A limit of 0 or less returns every due state.
func PrioritizeDue(states []models.ReviewState, now time.Time, limit int) []models.ReviewState {
	due := make([]models.ReviewState, 0, len(states))
	for _, s := range states {
		if s.Due(now) {
			due = append(due, s)
		}
	}

	// Sort due items by priority:
	// 1. Words that have never been reviewed (repetitions = 0)
	// 2. Words with lowest ease factor (hardest words)
	// 3. Words that are more overdue
	sort.SliceStable(due, func(i, j int) bool {
		newI, newJ := due[i].Repetitions == 0, due[j].Repetitions == 0
		if newI != newJ {
			return newI
		}
		if due[i].EaseFactor != due[j].EaseFactor {
			return due[i].EaseFactor < due[j].EaseFactor
		}
		return due[i].NextReviewAt < due[j].NextReviewAt
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}

// IsMastered determines if a word is considered "mastered"
func IsMastered(state models.ReviewState) bool {
	// A word is considered mastered if:
	// 1. It has been reviewed at least 5 times in a row
	// 2. The latest grade was 4 or 5
	// 3. The interval is at least 30 days
	return state.Repetitions >= 5 &&
		state.LastGrade() >= int(GradeCorrectHesitation) &&
		state.Interval >= 30
}
