package highlight

import (
	"fmt"
	"log/slog"
)

// PlannedTerm is a ranked term with its highlight intensity
type PlannedTerm struct {
	RankedTerm
	Level int `json:"level"`
}

// Mark is one occurrence of a planned term in the page text
type Mark struct {
	Token
	Level int `json:"level"`
}

// Plan describes what to highlight on a page
type Plan struct {
	Terms      []PlannedTerm `json:"terms"`
	Marks      []Mark        `json:"marks"`
	TotalTerms int           `json:"totalTerms"`
	TopN       int           `json:"topN"`
}

// Highlighter combines the settings with the term ranker
type Highlighter struct {
	settings Settings
	opts     RankOptions
	logger   *slog.Logger
}

// NewHighlighter validates settings and returns a highlighter
func NewHighlighter(settings Settings, opts RankOptions, logger *slog.Logger) (*Highlighter, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Highlighter{settings: settings, opts: opts, logger: logger}, nil
}

// Settings returns the active settings
func (h *Highlighter) Settings() Settings {
	return h.settings
}

// Plan ranks candidates against text and locates every occurrence of the
// selected terms. The number of terms follows the density setting.
func (h *Highlighter) Plan(text string, candidates []string, familiarity FamiliarityMap) Plan {
	page := BuildPageStats(text)
	opts := h.opts
	opts.TopN = h.settings.TopN(page.TotalTerms)

	ranked := RankTerms(page, candidates, familiarity, opts)
	plan := Plan{
		Terms:      make([]PlannedTerm, 0, len(ranked)),
		TotalTerms: page.TotalTerms,
		TopN:       opts.TopN,
	}
	levels := make(map[string]int, len(ranked))
	for _, r := range ranked {
		lvl := Level(r.Score)
		levels[r.Word] = lvl
		plan.Terms = append(plan.Terms, PlannedTerm{RankedTerm: r, Level: lvl})
	}
	if len(levels) == 0 {
		return plan
	}
	for tok := range Tokens(text) {
		if lvl, ok := levels[tok.Text]; ok {
			plan.Marks = append(plan.Marks, Mark{Token: tok, Level: lvl})
		}
	}
	h.logger.Debug("Highlight plan built",
		"total_terms", plan.TotalTerms,
		"terms", len(plan.Terms),
		"marks", len(plan.Marks))
	return plan
}

// PlanPage is Plan guarded by the enabled flag and the domain filter
func (h *Highlighter) PlanPage(pageURL, text string, candidates []string, familiarity FamiliarityMap) (Plan, error) {
	if !h.settings.Enabled {
		return Plan{}, ErrDisabled
	}
	host := HostOf(pageURL)
	if !h.settings.DomainAllowed(host) {
		return Plan{}, fmt.Errorf("%w: %q", ErrDomainNotAllowed, host)
	}
	return h.Plan(text, candidates, familiarity), nil
}
