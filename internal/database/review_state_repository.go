package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// ReviewStateRepository handles database operations for review schedules
type ReviewStateRepository struct {
	db *sqlx.DB
}

// NewReviewStateRepository creates a new repository instance
func NewReviewStateRepository(db *sqlx.DB) *ReviewStateRepository {
	return &ReviewStateRepository{db: db}
}

// GetReviewState returns the state of a word, or ErrNotFound if it was never graded
func (r *ReviewStateRepository) GetReviewState(ctx context.Context, id string) (models.ReviewState, error) {
	var state models.ReviewState
	query := r.db.Rebind("SELECT " + reviewStateColumns + " FROM review_states WHERE id = ?")
	if err := r.db.GetContext(ctx, &state, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ReviewState{}, fmt.Errorf("review state %q: %w", id, ErrNotFound)
		}
		return models.ReviewState{}, fmt.Errorf("failed to get review state: %w", err)
	}
	return state, nil
}

// SaveReviewState writes state if it is still at state.Version and returns it with the
// new version. Version 0 means the state must not exist yet. Any mismatch is ErrConflict.
func (r *ReviewStateRepository) SaveReviewState(ctx context.Context, state models.ReviewState) (models.ReviewState, error) {
	if state.History == nil {
		state.History = models.ReviewHistory{}
	}

	var (
		res sql.Result
		err error
	)
	if state.Version == 0 {
		res, err = r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO review_states (`+reviewStateColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT (id) DO NOTHING`),
			state.ID, state.WordID, state.NextReviewAt, state.Interval,
			state.EaseFactor, state.Repetitions, state.History)
	} else {
		res, err = r.db.ExecContext(ctx, r.db.Rebind(`
			UPDATE review_states SET
				word_id = ?,
				next_review_at = ?,
				interval_days = ?,
				ease_factor = ?,
				repetitions = ?,
				history = ?,
				version = version + 1
			WHERE id = ? AND version = ?`),
			state.WordID, state.NextReviewAt, state.Interval, state.EaseFactor,
			state.Repetitions, state.History, state.ID, state.Version)
	}
	if err != nil {
		return models.ReviewState{}, fmt.Errorf("failed to save review state: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return models.ReviewState{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.ReviewState{}, fmt.Errorf("review state %q at version %d: %w", state.ID, state.Version, ErrConflict)
	}

	state.Version++
	return state, nil
}

// ListReviewStates returns every review state
func (r *ReviewStateRepository) ListReviewStates(ctx context.Context) ([]models.ReviewState, error) {
	states := []models.ReviewState{}
	query := "SELECT " + reviewStateColumns + " FROM review_states ORDER BY next_review_at, id"
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("failed to list review states: %w", err)
	}
	return states, nil
}

// DueReviewStates returns states due at reference (ms epoch)
func (r *ReviewStateRepository) DueReviewStates(ctx context.Context, reference int64) ([]models.ReviewState, error) {
	states := []models.ReviewState{}
	query := r.db.Rebind("SELECT " + reviewStateColumns +
		" FROM review_states WHERE next_review_at <= ? ORDER BY next_review_at, id")
	if err := r.db.SelectContext(ctx, &states, query, reference); err != nil {
		return nil, fmt.Errorf("failed to get due review states: %w", err)
	}
	return states, nil
}

// DeleteReviewState removes a state. Missing states are not an error.
func (r *ReviewStateRepository) DeleteReviewState(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM review_states WHERE id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete review state: %w", err)
	}
	return nil
}
