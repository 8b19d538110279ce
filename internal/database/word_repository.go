package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// WordRepository handles database operations for captured words
type WordRepository struct {
	db    *sqlx.DB
	clock *MonotonicClock
}

// NewWordRepository creates a new repository instance
func NewWordRepository(db *sqlx.DB, clock *MonotonicClock) *WordRepository {
	if clock == nil {
		clock = NewMonotonicClock(nil)
	}
	return &WordRepository{db: db, clock: clock}
}

// Now returns the repository timestamp used for created_at/updated_at
func (r *WordRepository) Now() int64 {
	return r.clock.NowMillis()
}

// Get returns a word by ID
func (r *WordRepository) Get(ctx context.Context, id string) (models.WordEntry, error) {
	var entry models.WordEntry
	query := r.db.Rebind("SELECT " + wordColumns + " FROM word_entries WHERE id = ?")
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.WordEntry{}, fmt.Errorf("word %q: %w", id, ErrNotFound)
		}
		return models.WordEntry{}, fmt.Errorf("failed to get word: %w", err)
	}
	return entry, nil
}

// Upsert inserts or replaces a word. Zero timestamps are filled in.
func (r *WordRepository) Upsert(ctx context.Context, entry models.WordEntry) (models.WordEntry, error) {
	now := r.clock.NowMillis()
	if entry.CreatedAt == 0 {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.Tags == nil {
		entry.Tags = models.StringList{}
	}
	if entry.Definitions == nil {
		entry.Definitions = models.StringList{}
	}

	if err := upsertWord(ctx, r.db, entry); err != nil {
		return models.WordEntry{}, err
	}
	return entry, nil
}

func upsertWord(ctx context.Context, ext sqlx.ExtContext, entry models.WordEntry) error {
	query := `
		INSERT INTO word_entries (` + wordColumns + `)
		VALUES (:id, :word, :normalized_word, :context, :url, :source_title, :language, :tags,
			:is_favorite, :manually_edited, :include_in_quiz, :note, :definitions, :phonetic, :audio_url,
			:view_count, :last_viewed_at, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			word = excluded.word,
			normalized_word = excluded.normalized_word,
			context = excluded.context,
			url = excluded.url,
			source_title = excluded.source_title,
			language = excluded.language,
			tags = excluded.tags,
			is_favorite = excluded.is_favorite,
			manually_edited = excluded.manually_edited,
			include_in_quiz = excluded.include_in_quiz,
			note = excluded.note,
			definitions = excluded.definitions,
			phonetic = excluded.phonetic,
			audio_url = excluded.audio_url,
			view_count = excluded.view_count,
			last_viewed_at = excluded.last_viewed_at,
			updated_at = excluded.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, entry); err != nil {
		return fmt.Errorf("failed to save word: %w", err)
	}
	return nil
}

// ListOptions pages through words, newest first
type ListOptions struct {
	Limit  int
	Offset int
	Query  string // Substring of the normalized word
}

// List returns words ordered by creation time, newest first. A zero limit means 100.
func (r *WordRepository) List(ctx context.Context, opts ListOptions) ([]models.WordEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	var (
		where string
		args  []interface{}
	)
	if q := models.NormalizeWord(opts.Query); q != "" {
		where = " WHERE normalized_word LIKE ?"
		args = append(args, "%"+stripLikeWildcards(q)+"%")
	}
	args = append(args, limit, offset)

	query := r.db.Rebind("SELECT " + wordColumns + " FROM word_entries" + where +
		" ORDER BY created_at DESC, id LIMIT ? OFFSET ?")
	words := []models.WordEntry{}
	if err := r.db.SelectContext(ctx, &words, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list words: %w", err)
	}
	return words, nil
}

// All returns every stored word, oldest first
func (r *WordRepository) All(ctx context.Context) ([]models.WordEntry, error) {
	words := []models.WordEntry{}
	query := "SELECT " + wordColumns + " FROM word_entries ORDER BY created_at, id"
	if err := r.db.SelectContext(ctx, &words, query); err != nil {
		return nil, fmt.Errorf("failed to get words: %w", err)
	}
	return words, nil
}

// Recent returns the most recently captured words
func (r *WordRepository) Recent(ctx context.Context, limit int) ([]models.WordEntry, error) {
	return r.List(ctx, ListOptions{Limit: limit})
}

// Due returns words whose review state is due at reference (ms epoch), oldest due first
func (r *WordRepository) Due(ctx context.Context, reference int64, limit int) ([]models.WordEntry, error) {
	query := `
		SELECT ` + prefixColumns("w", wordColumns) + `
		FROM word_entries w
		JOIN review_states r ON r.word_id = w.id
		WHERE r.next_review_at <= ?
		ORDER BY r.next_review_at, w.id`
	args := []interface{}{reference}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	words := []models.WordEntry{}
	if err := r.db.SelectContext(ctx, &words, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get due words: %w", err)
	}
	return words, nil
}

// Delete removes a word together with its review state
func (r *WordRepository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM word_entries WHERE id = ?"), id)
		if err != nil {
			return fmt.Errorf("failed to delete word: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("word %q: %w", id, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM review_states WHERE word_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete review state: %w", err)
		}
		return nil
	})
}

// MarkKnown clears the favorite flag and drops the word from the review schedule
func (r *WordRepository) MarkKnown(ctx context.Context, id string) error {
	now := r.clock.NowMillis()
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind("UPDATE word_entries SET is_favorite = ?, updated_at = ? WHERE id = ?"),
			false, now, id)
		if err != nil {
			return fmt.Errorf("failed to mark word known: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("word %q: %w", id, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM review_states WHERE word_id = ?"), id); err != nil {
			return fmt.Errorf("failed to delete review state: %w", err)
		}
		return nil
	})
}

// RecordView increments the view counter. Unknown ids are ignored.
func (r *WordRepository) RecordView(ctx context.Context, id string) error {
	now := r.clock.NowMillis()
	query := r.db.Rebind(`
		UPDATE word_entries
		SET view_count = view_count + 1, last_viewed_at = ?, updated_at = ?
		WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, now, now, id); err != nil {
		return fmt.Errorf("failed to record word view: %w", err)
	}
	return nil
}

// Count returns the number of stored words
func (r *WordRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM word_entries"); err != nil {
		return 0, fmt.Errorf("failed to count words: %w", err)
	}
	return n, nil
}

func (r *WordRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return withTx(ctx, r.db, fn)
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func stripLikeWildcards(s string) string {
	return strings.NewReplacer("%", "", "_", "").Replace(s)
}
