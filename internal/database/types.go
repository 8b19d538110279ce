package database

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options selects and tunes the database connection
type Options struct {
	Driver       string // sqlite3 or postgres
	DSN          string // file path or ":memory:" for sqlite, connection URL for postgres
	MaxOpenConns int
}

// wordColumns lists the word_entries columns in insert order
const wordColumns = `id, word, normalized_word, context, url, source_title, language, tags,
	is_favorite, manually_edited, include_in_quiz, note, definitions, phonetic, audio_url,
	view_count, last_viewed_at, created_at, updated_at`

const reviewStateColumns = `id, word_id, next_review_at, interval_days, ease_factor, repetitions, history, version`

const pendingColumns = `id, payload, status, attempt_count, last_attempted_at, created_at`

const quizSessionColumns = `id, word_ids, started_at, completed_at, correct_count, incorrect_count`

const settingsColumns = `id, setting_key, value, updated_at`
