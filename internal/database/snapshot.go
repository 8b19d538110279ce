package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// SnapshotRepository exports and restores the whole store
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new repository instance
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Export reads every table
func (r *SnapshotRepository) Export(ctx context.Context) (models.Snapshot, error) {
	snap := models.Snapshot{
		WordEntries:     []models.WordEntry{},
		ReviewStates:    []models.ReviewState{},
		PendingRequests: []models.PendingRequest{},
		QuizSessions:    []models.QuizSession{},
		Settings:        []models.SettingsRecord{},
	}
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		tables := []struct {
			dest  interface{}
			query string
		}{
			{&snap.WordEntries, "SELECT " + wordColumns + " FROM word_entries ORDER BY created_at, id"},
			{&snap.ReviewStates, "SELECT " + reviewStateColumns + " FROM review_states ORDER BY id"},
			{&snap.PendingRequests, "SELECT " + pendingColumns + " FROM pending_requests ORDER BY created_at, id"},
			{&snap.QuizSessions, "SELECT " + quizSessionColumns + " FROM quiz_sessions ORDER BY started_at, id"},
			{&snap.Settings, "SELECT " + settingsColumns + " FROM settings ORDER BY setting_key"},
		}
		for _, t := range tables {
			if err := tx.SelectContext(ctx, t.dest, t.query); err != nil {
				return fmt.Errorf("failed to export snapshot: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// Import replaces the content of every table with snap in a single transaction
func (r *SnapshotRepository) Import(ctx context.Context, snap models.Snapshot) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, table := range []string{"word_entries", "review_states", "pending_requests", "quiz_sessions", "settings"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, w := range snap.WordEntries {
			if err := upsertWord(ctx, tx, w); err != nil {
				return err
			}
		}
		for _, s := range snap.ReviewStates {
			if s.History == nil {
				s.History = models.ReviewHistory{}
			}
			// version 0 is reserved for states that do not exist yet
			s.Version = max(s.Version, 1)
			query := `INSERT INTO review_states (` + reviewStateColumns + `)
				VALUES (:id, :word_id, :next_review_at, :interval_days, :ease_factor, :repetitions, :history, :version)`
			if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
				return fmt.Errorf("failed to import review state: %w", err)
			}
		}
		for _, p := range snap.PendingRequests {
			if err := savePending(ctx, tx, p); err != nil {
				return err
			}
		}
		for _, q := range snap.QuizSessions {
			if err := saveQuizSession(ctx, tx, q); err != nil {
				return err
			}
		}
		for _, s := range snap.Settings {
			if err := saveSetting(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}
