package highlight

import (
	"fmt"
	"strings"
)

// Density controls how many terms a page gets highlighted
type Density string

const (
	DensityLow    Density = "low"
	DensityMedium Density = "medium"
	DensityHigh   Density = "high"
)

// IsValid reports whether d is a known density
func (d Density) IsValid() bool {
	switch d {
	case DensityLow, DensityMedium, DensityHigh:
		return true
	}
	return false
}

// Theme selects the highlight color
type Theme string

const (
	ThemeYellow Theme = "yellow"
	ThemeGreen  Theme = "green"
	ThemeBlue   Theme = "blue"
	ThemePink   Theme = "pink"
)

// IsValid reports whether t is a known theme
func (t Theme) IsValid() bool {
	switch t {
	case ThemeYellow, ThemeGreen, ThemeBlue, ThemePink:
		return true
	}
	return false
}

// Settings are the user-facing highlighter options
type Settings struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	Density          Density  `yaml:"density" json:"density"`
	MaxHighlights    int      `yaml:"max_highlights" json:"maxHighlights"` // Hard cap on highlighted terms, 0 for the density limit only
	Theme            Theme    `yaml:"theme" json:"theme"`
	ObserveMutations bool     `yaml:"observe_mutations" json:"observeMutations"` // Re-run on dynamic page updates
	Whitelist        []string `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
	Blacklist        []string `yaml:"blacklist,omitempty" json:"blacklist,omitempty"`
}

// DefaultSettings returns highlighting disabled, low density, yellow theme
func DefaultSettings() Settings {
	return Settings{
		Enabled:          false,
		Density:          DensityLow,
		MaxHighlights:    0,
		Theme:            ThemeYellow,
		ObserveMutations: false,
	}
}

// Validate rejects unknown enum values and negative limits
func (s Settings) Validate() error {
	if !s.Density.IsValid() {
		return fmt.Errorf("%w: unknown density %q", ErrInvalidSettings, s.Density)
	}
	if !s.Theme.IsValid() {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidSettings, s.Theme)
	}
	if s.MaxHighlights < 0 {
		return fmt.Errorf("%w: max_highlights must be >= 0", ErrInvalidSettings)
	}
	return nil
}

// TopN returns how many terms to highlight on a page with totalTerms tokens
func (s Settings) TopN(totalTerms int) int {
	var n int
	switch s.Density {
	case DensityHigh:
		n = min(120, max(10, totalTerms*6/100))
	case DensityMedium:
		n = min(80, max(8, totalTerms*3/100))
	default:
		n = min(50, max(5, totalTerms*15/1000))
	}
	if s.MaxHighlights > 0 && n > s.MaxHighlights {
		n = s.MaxHighlights
	}
	return n
}

// DomainAllowed applies the blacklist, then the whitelist if it is not empty.
// A "*.example.com" pattern matches example.com and all of its subdomains.
func (s Settings) DomainAllowed(hostname string) bool {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if host == "" {
		return false
	}
	for _, p := range s.Blacklist {
		if matchDomain(host, p) {
			return false
		}
	}
	if len(s.Whitelist) == 0 {
		return true
	}
	for _, p := range s.Whitelist {
		if matchDomain(host, p) {
			return true
		}
	}
	return false
}

// Level buckets a score into highlight intensity 1..3
func Level(score float64) int {
	switch {
	case score > 0.75:
		return 3
	case score > 0.5:
		return 2
	default:
		return 1
	}
}

func matchDomain(host, pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return false
	}
	if bare, ok := strings.CutPrefix(p, "*."); ok {
		return host == bare || strings.HasSuffix(host, "."+bare)
	}
	return host == p
}
