package models

import "time"

// ReviewState tracks the SM-2 schedule of a single word
type ReviewState struct {
	ID           string        `json:"id" db:"id"`
	WordID       string        `json:"wordId" db:"word_id"`
	NextReviewAt int64         `json:"nextReviewAt" db:"next_review_at"` // ms epoch
	Interval     int           `json:"interval" db:"interval_days"`      // Days until the next review
	EaseFactor   float64       `json:"easeFactor" db:"ease_factor"`
	Repetitions  int           `json:"repetitions" db:"repetitions"` // Consecutive successful recalls
	History      ReviewHistory `json:"history" db:"history"`
	Version      int64         `json:"version,omitempty" db:"version"` // Optimistic concurrency token
}

// ReviewHistoryItem is a single grading event
type ReviewHistoryItem struct {
	ReviewedAt int64 `json:"reviewedAt"`
	Grade      int   `json:"grade"`
}

// Due reports whether the state is due at the given time
func (s ReviewState) Due(now time.Time) bool {
	return s.NextReviewAt <= Millis(now)
}

// LastGrade returns the most recent grade, or -1 if the word was never graded
func (s ReviewState) LastGrade() int {
	if len(s.History) == 0 {
		return -1
	}
	return s.History[len(s.History)-1].Grade
}

// Millis converts a time to milliseconds since the Unix epoch
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts milliseconds since the Unix epoch to a UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
