package highlight

// PageStats holds term frequencies of one page
type PageStats struct {
	TermFreq   map[string]int // lowercase word -> occurrences
	TotalTerms int            // tokens after stop-word filtering, duplicates included
}

// BuildPageStats tokenizes text once and counts every token
func BuildPageStats(text string) PageStats {
	stats := PageStats{TermFreq: make(map[string]int)}
	for tok := range Tokens(text) {
		stats.TermFreq[tok.Text]++
		stats.TotalTerms++
	}
	return stats
}

// MaxFreq returns the highest term frequency on the page, or 0 for an empty page
func (p PageStats) MaxFreq() int {
	highest := 0
	for _, n := range p.TermFreq {
		if n > highest {
			highest = n
		}
	}
	return highest
}
