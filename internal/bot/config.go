package bot

import (
	"slices"

	"github.com/example/webvoca/internal/config"
)

// Config represents the configuration for the bot
type Config struct {
	Token string
	// Chats allowed to use the bot and receiving reminders
	ChatIDs []int64
	// Long polling timeout in seconds
	PollTimeout int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() Config {
	return Config{PollTimeout: 60}
}

// ConfigFrom maps the bot section of the application config
func ConfigFrom(c config.BotConfig) Config {
	cfg := DefaultConfig()
	cfg.Token = c.Token
	cfg.ChatIDs = slices.Clone(c.ChatIDs)
	return cfg
}

func (c Config) allowed(chatID int64) bool {
	return slices.Contains(c.ChatIDs, chatID)
}
