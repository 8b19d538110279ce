package vocabulary

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/internal/highlight"
)

// Candidates returns the distinct normalized words of the vocabulary
func (s *Service) Candidates(ctx context.Context) ([]string, error) {
	words, err := s.words.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w.NormalizedWord]; ok {
			continue
		}
		seen[w.NormalizedWord] = struct{}{}
		out = append(out, w.NormalizedWord)
	}
	return out, nil
}

// FamiliarityByWord estimates familiarity per normalized word. A word captured
// on several pages keeps its best score; words never reviewed are absent.
func (s *Service) FamiliarityByWord(ctx context.Context) (highlight.FamiliarityMap, error) {
	states, err := s.states.ListReviewStates(ctx)
	if err != nil {
		return nil, err
	}
	words, err := s.words.All(ctx)
	if err != nil {
		return nil, err
	}
	byID := s.familiarity.BuildMap(states, s.clock())

	out := make(highlight.FamiliarityMap, len(byID))
	for _, w := range words {
		f, ok := byID[w.ID]
		if !ok {
			continue
		}
		if cur, seen := out[w.NormalizedWord]; !seen || f > cur {
			out[w.NormalizedWord] = f
		}
	}
	return out, nil
}

func (s *Service) rankingInputs(ctx context.Context) ([]string, highlight.FamiliarityMap, error) {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	fam, err := s.FamiliarityByWord(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load familiarity: %w", err)
	}
	return candidates, fam, nil
}

// Highlight plans highlights for a page, honoring the enabled flag and domain filter
func (s *Service) Highlight(ctx context.Context, pageURL, text string) (highlight.Plan, error) {
	candidates, fam, err := s.rankingInputs(ctx)
	if err != nil {
		return highlight.Plan{}, err
	}
	plan, err := s.currentHighlighter().PlanPage(pageURL, text, candidates, fam)
	if err != nil {
		return highlight.Plan{}, err
	}
	s.metrics.ObserveHighlightTerms(len(plan.Terms))
	return plan, nil
}

// HighlightText plans highlights for text without page checks
func (s *Service) HighlightText(ctx context.Context, text string) (highlight.Plan, error) {
	candidates, fam, err := s.rankingInputs(ctx)
	if err != nil {
		return highlight.Plan{}, err
	}
	plan := s.currentHighlighter().Plan(text, candidates, fam)
	s.metrics.ObserveHighlightTerms(len(plan.Terms))
	return plan, nil
}

// HighlightHTML extracts the readable text of an HTML page and plans its highlights
func (s *Service) HighlightHTML(ctx context.Context, r io.Reader, pageURL string) (highlight.Page, highlight.Plan, error) {
	page, err := highlight.ExtractPage(r, pageURL)
	if err != nil {
		return highlight.Page{}, highlight.Plan{}, err
	}
	plan, err := s.Highlight(ctx, pageURL, page.Text)
	if err != nil {
		return page, highlight.Plan{}, err
	}
	return page, plan, nil
}

// HighlightSettings returns the active highlighter settings
func (s *Service) HighlightSettings() highlight.Settings {
	return s.currentHighlighter().Settings()
}

// UpdateHighlightSettings validates, persists and activates new settings
func (s *Service) UpdateHighlightSettings(ctx context.Context, settings highlight.Settings) error {
	h, err := highlight.NewHighlighter(settings, s.rank, s.logger)
	if err != nil {
		return err
	}
	if _, err := s.settings.Put(ctx, highlightSettingsKey, settings); err != nil {
		return err
	}
	s.setHighlighter(h)
	return nil
}

// LoadStoredSettings activates highlight settings saved by UpdateHighlightSettings.
// It reports whether stored settings were found.
func (s *Service) LoadStoredSettings(ctx context.Context) (bool, error) {
	var settings highlight.Settings
	ok, err := s.settings.Load(ctx, highlightSettingsKey, &settings)
	if err != nil || !ok {
		return false, err
	}
	h, err := highlight.NewHighlighter(settings, s.rank, s.logger)
	if err != nil {
		return false, fmt.Errorf("stored highlight settings: %w", err)
	}
	s.setHighlighter(h)
	return true, nil
}

func (s *Service) currentHighlighter() *highlight.Highlighter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highlighter
}

func (s *Service) setHighlighter(h *highlight.Highlighter) {
	s.mu.Lock()
	s.highlighter = h
	s.mu.Unlock()
}

// FamiliarityOf is the familiarity of a single stored word, 0 when never reviewed
func (s *Service) FamiliarityOf(ctx context.Context, id string) (float64, error) {
	state, err := s.states.GetReviewState(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.familiarity.Compute(state, s.clock()), nil
}
