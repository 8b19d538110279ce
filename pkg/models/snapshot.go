package models

// Snapshot is a full export of the local store
type Snapshot struct {
	WordEntries     []WordEntry      `json:"wordEntries"`
	ReviewStates    []ReviewState    `json:"reviewStates"`
	PendingRequests []PendingRequest `json:"pendingRequests"`
	QuizSessions    []QuizSession    `json:"quizSessions"`
	Settings        []SettingsRecord `json:"settings"`
}
