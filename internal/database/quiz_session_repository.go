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

// QuizSessionRepository handles database operations for quiz sessions
type QuizSessionRepository struct {
	db *sqlx.DB
}

// NewQuizSessionRepository creates a new repository instance
func NewQuizSessionRepository(db *sqlx.DB) *QuizSessionRepository {
	return &QuizSessionRepository{db: db}
}

// NewQuizSessionID returns a fresh session id
func NewQuizSessionID() string {
	return "quiz_" + uuid.NewString()
}

// Get returns a session by ID
func (r *QuizSessionRepository) Get(ctx context.Context, id string) (models.QuizSession, error) {
	var session models.QuizSession
	query := r.db.Rebind("SELECT " + quizSessionColumns + " FROM quiz_sessions WHERE id = ?")
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.QuizSession{}, fmt.Errorf("quiz session %q: %w", id, ErrNotFound)
		}
		return models.QuizSession{}, fmt.Errorf("failed to get quiz session: %w", err)
	}
	return session, nil
}

// Save inserts or replaces a session
func (r *QuizSessionRepository) Save(ctx context.Context, session models.QuizSession) error {
	return saveQuizSession(ctx, r.db, session)
}

func saveQuizSession(ctx context.Context, ext sqlx.ExtContext, session models.QuizSession) error {
	if session.WordIDs == nil {
		session.WordIDs = models.StringList{}
	}
	query := `
		INSERT INTO quiz_sessions (` + quizSessionColumns + `)
		VALUES (:id, :word_ids, :started_at, :completed_at, :correct_count, :incorrect_count)
		ON CONFLICT (id) DO UPDATE SET
			word_ids = excluded.word_ids,
			completed_at = excluded.completed_at,
			correct_count = excluded.correct_count,
			incorrect_count = excluded.incorrect_count
	`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, session); err != nil {
		return fmt.Errorf("failed to save quiz session: %w", err)
	}
	return nil
}

// List returns the latest sessions first. A zero limit returns all of them.
func (r *QuizSessionRepository) List(ctx context.Context, limit int) ([]models.QuizSession, error) {
	query := "SELECT " + quizSessionColumns + " FROM quiz_sessions ORDER BY started_at DESC, id"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	sessions := []models.QuizSession{}
	if err := r.db.SelectContext(ctx, &sessions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list quiz sessions: %w", err)
	}
	return sessions, nil
}
