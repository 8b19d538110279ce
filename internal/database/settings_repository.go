package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/webvoca/pkg/models"
)

// SettingsRepository stores JSON settings by key
type SettingsRepository struct {
	db    *sqlx.DB
	clock *MonotonicClock
}

// NewSettingsRepository creates a new repository instance
func NewSettingsRepository(db *sqlx.DB, clock *MonotonicClock) *SettingsRepository {
	if clock == nil {
		clock = NewMonotonicClock(nil)
	}
	return &SettingsRepository{db: db, clock: clock}
}

// Get returns the record stored under key
func (r *SettingsRepository) Get(ctx context.Context, key string) (models.SettingsRecord, error) {
	var rec models.SettingsRecord
	query := r.db.Rebind("SELECT " + settingsColumns + " FROM settings WHERE setting_key = ?")
	if err := r.db.GetContext(ctx, &rec, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SettingsRecord{}, fmt.Errorf("setting %q: %w", key, ErrNotFound)
		}
		return models.SettingsRecord{}, fmt.Errorf("failed to get setting: %w", err)
	}
	return rec, nil
}

// Load decodes the value stored under key into dest.
// It returns false without touching dest when the key is absent.
func (r *SettingsRepository) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	rec, err := r.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(rec.Value, dest); err != nil {
		return false, fmt.Errorf("failed to decode setting %q: %w", key, err)
	}
	return true, nil
}

// Put encodes value as JSON and stores it under key
func (r *SettingsRepository) Put(ctx context.Context, key string, value interface{}) (models.SettingsRecord, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return models.SettingsRecord{}, fmt.Errorf("failed to encode setting %q: %w", key, err)
	}
	rec := models.SettingsRecord{
		ID:        key,
		Key:       key,
		Value:     models.JSONValue(data),
		UpdatedAt: r.clock.NowMillis(),
	}
	if err := saveSetting(ctx, r.db, rec); err != nil {
		return models.SettingsRecord{}, err
	}
	return rec, nil
}

func saveSetting(ctx context.Context, ext sqlx.ExtContext, rec models.SettingsRecord) error {
	query := `
		INSERT INTO settings (` + settingsColumns + `)
		VALUES (:id, :setting_key, :value, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			setting_key = excluded.setting_key,
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, rec); err != nil {
		return fmt.Errorf("failed to save setting: %w", err)
	}
	return nil
}

// List returns all settings ordered by key
func (r *SettingsRepository) List(ctx context.Context) ([]models.SettingsRecord, error) {
	recs := []models.SettingsRecord{}
	if err := r.db.SelectContext(ctx, &recs, "SELECT "+settingsColumns+" FROM settings ORDER BY setting_key"); err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return recs, nil
}
