package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/webvoca/internal/highlight"
	"github.com/example/webvoca/internal/quiz"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/pkg/models"
)

// ErrNoToken is returned when the bot is started without a Telegram token
var ErrNoToken = errors.New("bot: telegram token is not set")

// Vocabulary is the part of the vocabulary store the bot talks to
type Vocabulary interface {
	RegisterOrQueue(ctx context.Context, sel models.Selection) (models.WordEntry, bool, error)
	Due(ctx context.Context, reference time.Time, limit int) ([]models.WordEntry, error)
	HighlightText(ctx context.Context, text string) (highlight.Plan, error)
	Stats(ctx context.Context) (models.Statistics, error)
}

// Quiz runs review sessions
type Quiz interface {
	Start(ctx context.Context) (quiz.Session, error)
	Answer(ctx context.Context, sessionID, wordID string, grade spaced_repetition.Grade) (models.ReviewState, error)
	Finish(ctx context.Context, sessionID string) (models.QuizSession, error)
}

// sender is the subset of tgbotapi.BotAPI used to talk to Telegram
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		keyboardRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// chatSession is the quiz in progress for one chat
type chatSession struct {
	session quiz.Session
	next    int
}

// Bot represents the Telegram front end of the review system
type Bot struct {
	api    sender
	botAPI *tgbotapi.BotAPI
	cfg    Config
	vocab  Vocabulary
	quiz   Quiz
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	sessions map[int64]*chatSession
}

// New authorizes against Telegram and creates a bot
func New(cfg Config, vocab Vocabulary, q Quiz, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	b := newBot(botAPI, cfg, vocab, q, logger)
	b.botAPI = botAPI
	b.logger.Info("Authorized on account", "username", botAPI.Self.UserName)
	if len(cfg.ChatIDs) == 0 {
		b.logger.Warn("No chat ids configured, only /start will be answered")
	}
	return b, nil
}

func newBot(api sender, cfg Config, vocab Vocabulary, q Quiz, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:      api,
		cfg:      cfg,
		vocab:    vocab,
		quiz:     q,
		logger:   logger,
		clock:    time.Now,
		sessions: make(map[int64]*chatSession),
	}
}

// Run polls Telegram for updates until ctx is done. Updates are handled in order.
func (b *Bot) Run(ctx context.Context) error {
	if b.botAPI == nil {
		return errors.New("bot: not connected")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	updates := b.botAPI.GetUpdatesChan(u)
	defer b.botAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(ctx context.Context, count int) error {
	if len(b.cfg.ChatIDs) == 0 {
		b.logger.Warn("Reminder skipped, no chat ids configured", "due", count)
		return nil
	}
	var errs []error
	for _, chatID := range b.cfg.ChatIDs {
		msg := tgbotapi.NewMessage(chatID, reminderText(count))
		msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Start review", CallbackData: callbackQuiz}}})
		if _, err := b.api.Send(msg); err != nil {
			b.logger.Error("Failed to send reminder", "chat_id", chatID, "error", err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		b.logger.Info("Reminder sent", "chat_id", chatID, "due", count)
	}
	return errors.Join(errs...)
}

func (b *Bot) send(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendMessage(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", "chat_id", msg.ChatID, "error", err)
	}
}
