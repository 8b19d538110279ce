package highlight

import (
	"sort"
	"strings"
)

// RankOptions weights the components of a term score
type RankOptions struct {
	Alpha float64 `yaml:"alpha"` // Page importance weight
	Beta  float64 `yaml:"beta"`  // Unfamiliarity weight
	Gamma float64 `yaml:"gamma"` // Tag boost weight, reserved
	TopN  int     `yaml:"-"`     // Maximum results, 0 for all
}

// DefaultRankOptions returns alpha=0.6, beta=0.4, gamma=0
func DefaultRankOptions() RankOptions {
	return RankOptions{Alpha: 0.6, Beta: 0.4, Gamma: 0}
}

// RankedTerm is a candidate word scored against a page
type RankedTerm struct {
	Word           string  `json:"word"`
	PageImportance float64 `json:"pageImportance"` // Frequency normalized by the page maximum
	Unfamiliarity  float64 `json:"unfamiliarity"`
	TagsBoost      float64 `json:"tagsBoost"`
	Score          float64 `json:"score"`
}

// RankTerms scores the candidates that occur on the page, highest score first.
// Candidates absent from the page are dropped. Equal scores keep candidate order.
func RankTerms(page PageStats, candidates []string, familiarity FamiliarityMap, opts RankOptions) []RankedTerm {
	maxFreq := page.MaxFreq()
	seen := make(map[string]struct{}, len(candidates))
	results := make([]RankedTerm, 0, len(candidates))

	for _, c := range candidates {
		word := strings.ToLower(c)
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}

		tf := page.TermFreq[word]
		if tf == 0 {
			continue
		}
		pageImportance := normalize(tf, maxFreq)
		unfamiliarity := 1 - clamp01(familiarity.Of(word))
		tagsBoost := 0.0
		results = append(results, RankedTerm{
			Word:           word,
			PageImportance: pageImportance,
			Unfamiliarity:  unfamiliarity,
			TagsBoost:      tagsBoost,
			Score:          opts.Alpha*pageImportance + opts.Beta*unfamiliarity + opts.Gamma*tagsBoost,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if opts.TopN > 0 && len(results) > opts.TopN {
		results = results[:opts.TopN]
	}
	return results
}

func normalize(value, maxFreq int) float64 {
	if maxFreq <= 0 {
		return 0
	}
	return clamp01(float64(value) / float64(maxFreq))
}
