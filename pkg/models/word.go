package models

import "strings"

// WordEntry is a word captured while reading, keyed by normalized word and source URL
type WordEntry struct {
	ID             string     `json:"id" db:"id"`
	Word           string     `json:"word" db:"word"`
	NormalizedWord string     `json:"normalizedWord" db:"normalized_word"`
	Context        string     `json:"context" db:"context"`
	URL            string     `json:"url" db:"url"`
	SourceTitle    string     `json:"sourceTitle" db:"source_title"`
	Language       string     `json:"language" db:"language"`
	Tags           StringList `json:"tags" db:"tags"`
	IsFavorite     bool       `json:"isFavorite" db:"is_favorite"`
	ManuallyEdited bool       `json:"manuallyEdited" db:"manually_edited"`
	IncludeInQuiz  bool       `json:"includeInQuiz" db:"include_in_quiz"`
	Note           string     `json:"note,omitempty" db:"note"`
	Definitions    StringList `json:"definitions" db:"definitions"`       // Supplied by the external dictionary lookup
	Phonetic       string     `json:"phonetic,omitempty" db:"phonetic"`
	AudioURL       string     `json:"audioUrl,omitempty" db:"audio_url"`
	ViewCount      int        `json:"viewCount" db:"view_count"`
	LastViewedAt   int64      `json:"lastViewedAt,omitempty" db:"last_viewed_at"` // ms epoch, 0 if never viewed
	CreatedAt      int64      `json:"createdAt" db:"created_at"`
	UpdatedAt      int64      `json:"updatedAt" db:"updated_at"`
}

// Selection is the capture payload produced when the user selects a word on a page.
// Nil optional fields keep the stored value when an existing entry is merged.
type Selection struct {
	Word        string   `json:"word"`
	Context     string   `json:"context"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags,omitempty"`
	IsFavorite  *bool    `json:"isFavorite,omitempty"`
	Note        *string  `json:"note,omitempty"`
	Definitions []string `json:"definitions,omitempty"`
	Phonetic    *string  `json:"phonetic,omitempty"`
	AudioURL    *string  `json:"audioUrl,omitempty"`
}

// NormalizeWord collapses whitespace, trims and lowercases a word
func NormalizeWord(word string) string {
	return strings.ToLower(strings.Join(strings.Fields(word), " "))
}

// WordEntryID returns the storage key of a word captured on the given page
func WordEntryID(word, url string) string {
	return NormalizeWord(word) + "::" + url
}
