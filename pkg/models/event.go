package models

// EventType names a change notification published to other processes
type EventType string

const (
	EventWordCreated    EventType = "word:created"
	EventWordUpdated    EventType = "word:updated"
	EventWordDeleted    EventType = "word:deleted"
	EventReviewApplied  EventType = "review:applied"
	EventPendingQueued  EventType = "pending:queued"
	EventPendingDrained EventType = "pending:drained"
)

// Event is a cache invalidation notice. ID is empty for queue events.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"id,omitempty"`
}
