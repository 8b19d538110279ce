package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// StatisticsRepository computes summary statistics over the store
type StatisticsRepository struct {
	db *sqlx.DB
}

// NewStatisticsRepository creates a new repository instance
func NewStatisticsRepository(db *sqlx.DB) *StatisticsRepository {
	return &StatisticsRepository{db: db}
}

// Summary counts words, reviews and queued requests at reference (ms epoch).
// States matching mastered are counted as mastered; a nil mastered counts none.
func (r *StatisticsRepository) Summary(ctx context.Context, reference int64, mastered func(models.ReviewState) bool) (models.Statistics, error) {
	var stats models.Statistics

	if err := r.db.GetContext(ctx, &stats.TotalWords, "SELECT COUNT(*) FROM word_entries"); err != nil {
		return stats, fmt.Errorf("failed to count words: %w", err)
	}

	var states []models.ReviewState
	if err := r.db.SelectContext(ctx, &states, "SELECT "+reviewStateColumns+" FROM review_states"); err != nil {
		return stats, fmt.Errorf("failed to get review states: %w", err)
	}
	var easeSum float64
	for _, s := range states {
		easeSum += s.EaseFactor
		if s.NextReviewAt <= reference {
			stats.DueNow++
		}
		if mastered != nil && mastered(s) {
			stats.Mastered++
		}
	}
	stats.ReviewedWords = len(states)
	if len(states) > 0 {
		stats.AverageEaseFactor = easeSum / float64(len(states))
	}

	query := r.db.Rebind("SELECT COUNT(*) FROM pending_requests WHERE status <> ?")
	if err := r.db.GetContext(ctx, &stats.PendingRequests, query, models.PendingStatusFailed); err != nil {
		return stats, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return stats, nil
}
