package models

// QuizSession records one pass through a set of review cards
type QuizSession struct {
	ID             string     `json:"id" db:"id"`
	WordIDs        StringList `json:"wordIds" db:"word_ids"`
	StartedAt      int64      `json:"startedAt" db:"started_at"`
	CompletedAt    int64      `json:"completedAt,omitempty" db:"completed_at"` // 0 while in progress
	CorrectCount   int        `json:"correctCount" db:"correct_count"`
	IncorrectCount int        `json:"incorrectCount" db:"incorrect_count"`
}
