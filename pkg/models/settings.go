package models

// SettingsRecord is a persisted key/value setting
type SettingsRecord struct {
	ID        string    `json:"id" db:"id"`
	Key       string    `json:"key" db:"setting_key"`
	Value     JSONValue `json:"value" db:"value"`
	UpdatedAt int64     `json:"updatedAt" db:"updated_at"`
}
