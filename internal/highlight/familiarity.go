package highlight

import (
	"fmt"
	"math"
	"time"

	"github.com/example/webvoca/pkg/models"
)

const dayMillis = 24 * 60 * 60 * 1000

// FamiliarityMap maps a word (or review state id) to a familiarity score in [0, 1].
// Missing words are fully unfamiliar.
type FamiliarityMap map[string]float64

// Of returns the familiarity of word, 0 if absent
func (f FamiliarityMap) Of(word string) float64 {
	return f[word]
}

// FamiliarityModel holds the tuning constants of the familiarity heuristic
type FamiliarityModel struct {
	RepetitionSaturation float64 `yaml:"repetition_saturation"` // Repetitions that count as fully familiar
	RepetitionWeight     float64 `yaml:"repetition_weight"`
	EaseWeight           float64 `yaml:"ease_weight"`
	EaseFloor            float64 `yaml:"ease_floor"`   // Ease factor mapped to 0
	EaseCeiling          float64 `yaml:"ease_ceiling"` // Ease factor mapped to 1
	OverdueHorizonDays   float64 `yaml:"overdue_horizon_days"`
	MaxOverduePenalty    float64 `yaml:"max_overdue_penalty"`
}

// DefaultFamiliarityModel returns the tuned default constants
func DefaultFamiliarityModel() FamiliarityModel {
	return FamiliarityModel{
		RepetitionSaturation: 8,
		RepetitionWeight:     0.6,
		EaseWeight:           0.4,
		EaseFloor:            1.3,
		EaseCeiling:          2.5,
		OverdueHorizonDays:   14,
		MaxOverduePenalty:    0.4,
	}
}

// Validate checks that the model keeps scores inside [0, 1]
func (m FamiliarityModel) Validate() error {
	switch {
	case m.RepetitionSaturation <= 0:
		return fmt.Errorf("%w: repetition_saturation must be > 0", ErrInvalidSettings)
	case m.RepetitionWeight < 0 || m.EaseWeight < 0:
		return fmt.Errorf("%w: familiarity weights must be >= 0", ErrInvalidSettings)
	case m.EaseCeiling <= m.EaseFloor:
		return fmt.Errorf("%w: ease_ceiling must be greater than ease_floor", ErrInvalidSettings)
	case m.OverdueHorizonDays <= 0:
		return fmt.Errorf("%w: overdue_horizon_days must be > 0", ErrInvalidSettings)
	case m.MaxOverduePenalty < 0 || m.MaxOverduePenalty > 1:
		return fmt.Errorf("%w: max_overdue_penalty must be within [0, 1]", ErrInvalidSettings)
	}
	return nil
}

// Compute estimates how well the user knows a word. A zero now means the current time.
func (m FamiliarityModel) Compute(state models.ReviewState, now time.Time) float64 {
	if now.IsZero() {
		now = time.Now()
	}
	repPart := math.Min(float64(state.Repetitions)/m.RepetitionSaturation, 1)
	efPart := clamp01((state.EaseFactor - m.EaseFloor) / (m.EaseCeiling - m.EaseFloor))
	base := clamp01(m.RepetitionWeight*repPart + m.EaseWeight*efPart)

	overdueDays := float64(models.Millis(now)-state.NextReviewAt) / dayMillis
	penalty := 0.0
	if overdueDays > 0 {
		penalty = math.Min(overdueDays/m.OverdueHorizonDays, m.MaxOverduePenalty)
	}
	return clamp01(base * (1 - penalty))
}

// BuildMap computes the familiarity of every state, keyed by state id
func (m FamiliarityModel) BuildMap(states []models.ReviewState, now time.Time) FamiliarityMap {
	if now.IsZero() {
		now = time.Now()
	}
	out := make(FamiliarityMap, len(states))
	for _, s := range states {
		out[s.ID] = m.Compute(s, now)
	}
	return out
}

// ComputeFamiliarity applies the default model
func ComputeFamiliarity(state models.ReviewState, now time.Time) float64 {
	return DefaultFamiliarityModel().Compute(state, now)
}

// BuildFamiliarityMap applies the default model to every state
func BuildFamiliarityMap(states []models.ReviewState, now time.Time) FamiliarityMap {
	return DefaultFamiliarityModel().BuildMap(states, now)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
