package highlight

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mlCandidates = []string{"machine", "learning", "programmed", "techniques", "ability", "computers"}

func newTestHighlighter(t *testing.T, mutate func(*Settings)) *Highlighter {
	t.Helper()
	s := DefaultSettings()
	s.Enabled = true
	if mutate != nil {
		mutate(&s)
	}
	h, err := NewHighlighter(s, DefaultRankOptions(), nil)
	require.NoError(t, err)
	return h
}

func TestNewHighlighterRejectsInvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.Theme = "neon"
	_, err := NewHighlighter(s, DefaultRankOptions(), nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestHighlighterPlan(t *testing.T) {
	h := newTestHighlighter(t, func(s *Settings) { s.Density = DensityHigh })
	fam := FamiliarityMap{"machine": 0.2, "learning": 0.3, "computers": 0.8}

	plan := h.Plan(mlText, mlCandidates, fam)

	assert.Equal(t, 15, plan.TotalTerms)
	assert.Equal(t, 10, plan.TopN)
	require.Len(t, plan.Terms, 6)
	assert.Equal(t, "machine", plan.Terms[0].Word)
	assert.Equal(t, 3, plan.Terms[0].Level)
	assert.Equal(t, "computers", plan.Terms[5].Word)
	assert.Equal(t, 1, plan.Terms[5].Level)

	require.Len(t, plan.Marks, 8)
	first := plan.Marks[0]
	assert.Equal(t, "machine", first.Text)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, "Machine", mlText[first.Start:first.End])
	assert.Equal(t, 3, first.Level)
	for _, m := range plan.Marks {
		assert.Equal(t, m.Text, strings.ToLower(mlText[m.Start:m.End]))
	}
}

func TestHighlighterPlanMaxHighlights(t *testing.T) {
	h := newTestHighlighter(t, func(s *Settings) {
		s.Density = DensityHigh
		s.MaxHighlights = 2
	})
	plan := h.Plan(mlText, mlCandidates, nil)

	require.Len(t, plan.Terms, 2)
	for _, m := range plan.Marks {
		assert.Contains(t, []string{plan.Terms[0].Word, plan.Terms[1].Word}, m.Text)
	}
}

func TestHighlighterPlanNoCandidates(t *testing.T) {
	h := newTestHighlighter(t, nil)
	plan := h.Plan(mlText, nil, nil)
	assert.Empty(t, plan.Terms)
	assert.Empty(t, plan.Marks)
}

func TestHighlighterPlanPage(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHighlighter(t, func(s *Settings) { s.Enabled = false })
		_, err := h.PlanPage("https://example.com/a", mlText, mlCandidates, nil)
		assert.ErrorIs(t, err, ErrDisabled)
	})

	t.Run("blacklisted domain", func(t *testing.T) {
		h := newTestHighlighter(t, func(s *Settings) { s.Blacklist = []string{"*.example.com"} })
		_, err := h.PlanPage("https://blog.example.com/post", mlText, mlCandidates, nil)
		assert.ErrorIs(t, err, ErrDomainNotAllowed)
	})

	t.Run("missing host", func(t *testing.T) {
		h := newTestHighlighter(t, nil)
		_, err := h.PlanPage("not a url", mlText, mlCandidates, nil)
		assert.ErrorIs(t, err, ErrDomainNotAllowed)
	})

	t.Run("allowed", func(t *testing.T) {
		h := newTestHighlighter(t, func(s *Settings) { s.Whitelist = []string{"*.wikipedia.org"} })
		plan, err := h.PlanPage("https://en.wikipedia.org/wiki/ML", mlText, mlCandidates, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, plan.Terms)
	})
}
