package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// PendingRepository stores selections waiting to be registered again
type PendingRepository struct {
	db    *sqlx.DB
	clock *MonotonicClock
}

// NewPendingRepository creates a new repository instance
func NewPendingRepository(db *sqlx.DB, clock *MonotonicClock) *PendingRepository {
	if clock == nil {
		clock = NewMonotonicClock(nil)
	}
	return &PendingRepository{db: db, clock: clock}
}

// NewPendingID returns a fresh pending request id
func NewPendingID() string {
	return "pending_" + uuid.NewString()
}

// Enqueue stores a selection for a later retry
func (r *PendingRepository) Enqueue(ctx context.Context, sel models.Selection) (models.PendingRequest, error) {
	req := models.PendingRequest{
		ID:        NewPendingID(),
		Payload:   models.SelectionPayload(sel),
		Status:    models.PendingStatusPending,
		CreatedAt: r.clock.NowMillis(),
	}
	if err := savePending(ctx, r.db, req); err != nil {
		return models.PendingRequest{}, err
	}
	return req, nil
}

func savePending(ctx context.Context, ext sqlx.ExtContext, req models.PendingRequest) error {
	query := `
		INSERT INTO pending_requests (` + pendingColumns + `)
		VALUES (:id, :payload, :status, :attempt_count, :last_attempted_at, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			payload = excluded.payload,
			status = excluded.status,
			attempt_count = excluded.attempt_count,
			last_attempted_at = excluded.last_attempted_at
	`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, req); err != nil {
		return fmt.Errorf("failed to save pending request: %w", err)
	}
	return nil
}

// PopNext removes and returns the oldest request that has not failed for good.
// It returns ErrNotFound when the queue is empty.
func (r *PendingRepository) PopNext(ctx context.Context) (models.PendingRequest, error) {
	var req models.PendingRequest
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := tx.Rebind("SELECT " + pendingColumns + ` FROM pending_requests
			WHERE status <> ? ORDER BY created_at, id LIMIT 1`)
		if err := tx.GetContext(ctx, &req, query, models.PendingStatusFailed); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("pending queue is empty: %w", ErrNotFound)
			}
			return fmt.Errorf("failed to get pending request: %w", err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM pending_requests WHERE id = ?"), req.ID); err != nil {
			return fmt.Errorf("failed to delete pending request: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PendingRequest{}, err
	}
	return req, nil
}

// RecordFailure puts a popped request back with one more attempt.
// After maxAttempts it is kept as failed and no longer popped.
func (r *PendingRepository) RecordFailure(ctx context.Context, req models.PendingRequest, maxAttempts int) (models.PendingRequest, error) {
	req.AttemptCount++
	req.LastAttemptedAt = r.clock.NowMillis()
	req.Status = models.PendingStatusRetrying
	if maxAttempts > 0 && req.AttemptCount >= maxAttempts {
		req.Status = models.PendingStatusFailed
	}
	if err := savePending(ctx, r.db, req); err != nil {
		return models.PendingRequest{}, err
	}
	return req, nil
}

// List returns every pending request, oldest first
func (r *PendingRepository) List(ctx context.Context) ([]models.PendingRequest, error) {
	reqs := []models.PendingRequest{}
	query := "SELECT " + pendingColumns + " FROM pending_requests ORDER BY created_at, id"
	if err := r.db.SelectContext(ctx, &reqs, query); err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return reqs, nil
}

// Count returns the number of requests still waiting for a retry
func (r *PendingRepository) Count(ctx context.Context) (int, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM pending_requests WHERE status <> ?")
	if err := r.db.GetContext(ctx, &n, query, models.PendingStatusFailed); err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return n, nil
}
