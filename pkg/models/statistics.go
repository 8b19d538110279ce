package models

// Statistics summarizes the vocabulary and its review progress
type Statistics struct {
	TotalWords        int     `json:"total_words" db:"total_words"`
	ReviewedWords     int     `json:"reviewed_words" db:"reviewed_words"`
	DueNow            int     `json:"due_now" db:"due_now"`
	Mastered          int     `json:"mastered" db:"mastered"`
	AverageEaseFactor float64 `json:"avg_ease_factor" db:"avg_ease_factor"`
	PendingRequests   int     `json:"pending_requests" db:"pending_requests"`
}
