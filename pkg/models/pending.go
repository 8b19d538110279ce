package models

import (
	"database/sql/driver"
	"encoding/json"
)

// PendingStatus is the delivery state of a queued selection
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusRetrying PendingStatus = "retrying"
	PendingStatusFailed   PendingStatus = "failed"
)

// PendingRequest is a selection that could not be registered and waits for a retry
type PendingRequest struct {
	ID              string           `json:"id" db:"id"`
	Payload         SelectionPayload `json:"payload" db:"payload"`
	Status          PendingStatus    `json:"status" db:"status"`
	AttemptCount    int              `json:"attemptCount" db:"attempt_count"`
	LastAttemptedAt int64            `json:"lastAttemptedAt,omitempty" db:"last_attempted_at"`
	CreatedAt       int64            `json:"createdAt" db:"created_at"`
}

// SelectionPayload stores a Selection as a JSON column
type SelectionPayload Selection

// Value implements driver.Valuer
func (p SelectionPayload) Value() (driver.Value, error) {
	data, err := json.Marshal(Selection(p))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (p *SelectionPayload) Scan(src interface{}) error {
	return scanJSON(src, (*Selection)(p))
}
