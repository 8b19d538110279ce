package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/webvoca/internal/highlight"
	"github.com/example/webvoca/internal/quiz"
	"github.com/example/webvoca/internal/spaced_repetition"
	"github.com/example/webvoca/pkg/models"
)

// Constants for callback data
const (
	callbackQuiz    = "quiz"
	callbackStats   = "stats"
	callbackDue     = "due"
	callbackFinish  = "finish"
	callbackGrade   = "grade:"
	maxDueListed    = 10
	maxHighlighted  = 15
	telegramURLBase = "telegram://chat/"
)

// quizGrades are the answers offered on a card
var quizGrades = []struct {
	label string
	grade spaced_repetition.Grade
}{
	{"🔁 Again", spaced_repetition.GradeAgain},
	{"👍 Good", spaced_repetition.GradeGood},
	{"🚀 Easy", spaced_repetition.GradeEasy},
}

const helpText = `📖 Commands

/quiz - review due words
/due - list words due for review
/add word | sentence - save a word, optionally with the sentence it came from
/highlight text - rank your saved words against a piece of text
/stats - show progress`

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		msg := update.Message
		if msg.IsCommand() && msg.Command() == "start" {
			b.handleStart(msg)
			return
		}
		if !b.cfg.allowed(msg.Chat.ID) {
			b.logger.Warn("Message from unknown chat ignored", "chat_id", msg.Chat.ID)
			b.send(msg.Chat.ID, "This chat is not allowed to use the bot.")
			return
		}
		if !msg.IsCommand() {
			b.send(msg.Chat.ID, "I don't understand. Use /help to see the commands.")
			return
		}
		b.handleCommand(ctx, msg)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "help":
		b.send(chatID, helpText)
	case "quiz":
		b.startQuiz(ctx, chatID)
	case "due":
		b.handleDue(ctx, chatID)
	case "add":
		b.handleAdd(ctx, chatID, msg.CommandArguments())
	case "highlight":
		b.handleHighlight(ctx, chatID, msg.CommandArguments())
	case "stats":
		b.handleStats(ctx, chatID)
	default:
		b.send(chatID, "Unknown command. Use /help to see the commands.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.cfg.allowed(chatID) {
		b.send(chatID, fmt.Sprintf("👋 Hi! Add chat id %d to bot.chat_ids to start using webvoca here.", chatID))
		return
	}
	reply := tgbotapi.NewMessage(chatID, "👋 Welcome back to webvoca!\n\n"+helpText)
	reply.ReplyMarkup = createKeyboard(mainMenuButtons())
	b.sendMessage(reply)
}

func mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{
			{Text: "🎯 Start review", CallbackData: callbackQuiz},
			{Text: "📅 Due words", CallbackData: callbackDue},
		},
		{
			{Text: "📊 Statistics", CallbackData: callbackStats},
		},
	}
}

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	b.answerCallback(callback.ID)
	if !b.cfg.allowed(chatID) {
		return
	}

	switch callback.Data {
	case callbackQuiz:
		b.startQuiz(ctx, chatID)
	case callbackDue:
		b.handleDue(ctx, chatID)
	case callbackStats:
		b.handleStats(ctx, chatID)
	case callbackFinish:
		b.finishQuiz(ctx, chatID)
	default:
		if strings.HasPrefix(callback.Data, callbackGrade) {
			idx, grade, err := parseGradeCallback(callback.Data)
			if err != nil {
				b.logger.Warn("Bad grade callback", "data", callback.Data, "error", err)
				return
			}
			b.gradeCard(ctx, chatID, idx, grade)
		}
	}
}

func (b *Bot) answerCallback(id string) {
	if id == "" {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.logger.Debug("Failed to answer callback", "error", err)
	}
}

func (b *Bot) startQuiz(ctx context.Context, chatID int64) {
	session, err := b.quiz.Start(ctx)
	if errors.Is(err, quiz.ErrNoCards) {
		b.send(chatID, "🎉 Nothing to review. Save some words with /add first.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to start quiz", "chat_id", chatID, "error", err)
		b.send(chatID, "Sorry, the quiz could not be started.")
		return
	}

	b.mu.Lock()
	b.sessions[chatID] = &chatSession{session: session}
	b.mu.Unlock()
	b.sendCard(chatID, session, 0)
}

func (b *Bot) sendCard(chatID int64, session quiz.Session, idx int) {
	msg := tgbotapi.NewMessage(chatID, formatCard(session.Cards[idx], idx, len(session.Cards)))
	msg.ReplyMarkup = createKeyboard(gradeButtons(idx))
	b.sendMessage(msg)
}

func gradeButtons(idx int) [][]MenuButton {
	row := make([]MenuButton, 0, len(quizGrades))
	for _, g := range quizGrades {
		row = append(row, MenuButton{Text: g.label, CallbackData: gradeCallback(idx, g.grade)})
	}
	return [][]MenuButton{row, {{Text: "⏹ Finish", CallbackData: callbackFinish}}}
}

func (b *Bot) gradeCard(ctx context.Context, chatID int64, idx int, grade spaced_repetition.Grade) {
	b.mu.Lock()
	cs, ok := b.sessions[chatID]
	if !ok || idx != cs.next || idx >= len(cs.session.Cards) {
		b.mu.Unlock()
		b.logger.Debug("Stale grade callback ignored", "chat_id", chatID, "card", idx)
		return
	}
	cs.next++
	session, next := cs.session, cs.next
	b.mu.Unlock()

	card := session.Cards[idx]
	state, err := b.quiz.Answer(ctx, session.ID, card.Word.ID, grade)
	if err != nil {
		b.mu.Lock()
		if cur, ok := b.sessions[chatID]; ok && cur == cs && cs.next == next {
			cs.next = idx
		}
		b.mu.Unlock()
		b.logger.Error("Failed to grade card", "chat_id", chatID, "word_id", card.Word.ID, "error", err)
		b.send(chatID, "Sorry, the answer could not be saved.")
		return
	}
	b.send(chatID, formatAnswer(card.Word, state))

	if next < len(session.Cards) {
		b.sendCard(chatID, session, next)
		return
	}
	b.finishQuiz(ctx, chatID)
}

func (b *Bot) finishQuiz(ctx context.Context, chatID int64) {
	b.mu.Lock()
	cs, ok := b.sessions[chatID]
	delete(b.sessions, chatID)
	b.mu.Unlock()
	if !ok {
		return
	}

	done, err := b.quiz.Finish(ctx, cs.session.ID)
	if err != nil {
		b.logger.Error("Failed to finish quiz", "chat_id", chatID, "error", err)
		return
	}
	b.send(chatID, fmt.Sprintf("🏁 Session finished: %d correct, %d to repeat.", done.CorrectCount, done.IncorrectCount))
}

func (b *Bot) handleDue(ctx context.Context, chatID int64) {
	due, err := b.vocab.Due(ctx, b.clock(), 0)
	if err != nil {
		b.logger.Error("Failed to get due words", "error", err)
		b.send(chatID, "Sorry, due words could not be loaded.")
		return
	}
	if len(due) == 0 {
		b.send(chatID, "🎉 Nothing is due right now.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatDue(due))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Start review", CallbackData: callbackQuiz}}})
	b.sendMessage(msg)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	word, sentence := parseAddArgs(args)
	if word == "" {
		b.send(chatID, "Usage: /add word | sentence where you met it")
		return
	}
	entry, queued, err := b.vocab.RegisterOrQueue(ctx, models.Selection{
		Word:    word,
		Context: sentence,
		URL:     telegramURLBase + strconv.FormatInt(chatID, 10),
		Title:   "Telegram",
	})
	switch {
	case err != nil:
		b.logger.Error("Failed to add word", "word", word, "error", err)
		b.send(chatID, "Sorry, the word could not be saved.")
	case queued:
		b.send(chatID, fmt.Sprintf("⏳ %q will be saved shortly.", word))
	default:
		b.send(chatID, fmt.Sprintf("✅ Saved %q.", entry.Word))
	}
}

func (b *Bot) handleHighlight(ctx context.Context, chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		b.send(chatID, "Usage: /highlight text to check against your words")
		return
	}
	plan, err := b.vocab.HighlightText(ctx, text)
	if err != nil {
		b.logger.Error("Failed to rank text", "error", err)
		b.send(chatID, "Sorry, the text could not be ranked.")
		return
	}
	b.send(chatID, formatPlan(plan))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.vocab.Stats(ctx)
	if err != nil {
		b.logger.Error("Failed to get statistics", "error", err)
		b.send(chatID, "Sorry, statistics could not be loaded.")
		return
	}
	b.send(chatID, formatStats(stats))
}

func gradeCallback(idx int, grade spaced_repetition.Grade) string {
	return fmt.Sprintf("%s%d:%d", callbackGrade, idx, grade)
}

// parseGradeCallback decodes "grade:<card>:<grade>"
func parseGradeCallback(data string) (int, spaced_repetition.Grade, error) {
	parts := strings.Split(strings.TrimPrefix(data, callbackGrade), ":")
	if !strings.HasPrefix(data, callbackGrade) || len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed grade callback %q", data)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 {
		return 0, 0, fmt.Errorf("malformed card index %q", parts[0])
	}
	g, err := strconv.Atoi(parts[1])
	if err != nil || !spaced_repetition.Grade(g).Valid() {
		return 0, 0, fmt.Errorf("%w: %q", spaced_repetition.ErrInvalidGrade, parts[1])
	}
	return idx, spaced_repetition.Grade(g), nil
}

// parseAddArgs splits "word | sentence"
func parseAddArgs(args string) (word, sentence string) {
	word, sentence, _ = strings.Cut(args, "|")
	return strings.Join(strings.Fields(word), " "), strings.TrimSpace(sentence)
}

func reminderText(count int) string {
	noun := "words"
	if count == 1 {
		noun = "word"
	}
	return fmt.Sprintf("⏰ You have %d %s to review!", count, noun)
}

func formatCard(card quiz.Card, idx, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Card %d/%d\n\n", idx+1, total)
	switch card.Type {
	case quiz.Cloze:
		sb.WriteString("Fill the gap:\n")
		sb.WriteString(card.Prompt)
	default:
		fmt.Fprintf(&sb, "Do you remember %q?", card.Prompt)
	}
	if card.Word.SourceTitle != "" {
		fmt.Fprintf(&sb, "\n\n📄 %s", card.Word.SourceTitle)
	}
	return sb.String()
}

func formatAnswer(word models.WordEntry, state models.ReviewState) string {
	var sb strings.Builder
	sb.WriteString(word.Word)
	if word.Phonetic != "" {
		fmt.Fprintf(&sb, " %s", word.Phonetic)
	}
	for _, d := range word.Definitions {
		fmt.Fprintf(&sb, "\n• %s", d)
	}
	days := "days"
	if state.Interval == 1 {
		days = "day"
	}
	fmt.Fprintf(&sb, "\nNext review in %d %s.", state.Interval, days)
	return sb.String()
}

func formatDue(due []models.WordEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %d due for review:", len(due))
	for i, w := range due {
		if i == maxDueListed {
			fmt.Fprintf(&sb, "\n…and %d more", len(due)-maxDueListed)
			break
		}
		fmt.Fprintf(&sb, "\n• %s", w.Word)
	}
	return sb.String()
}

func formatPlan(plan highlight.Plan) string {
	if len(plan.Terms) == 0 {
		return "None of your saved words appear in this text."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 %d of your words found:", len(plan.Terms))
	for i, t := range plan.Terms {
		if i == maxHighlighted {
			break
		}
		fmt.Fprintf(&sb, "\n%s %s (%.2f)", strings.Repeat("★", t.Level), t.Word, t.Score)
	}
	return sb.String()
}

func formatStats(s models.Statistics) string {
	return fmt.Sprintf("📊 Statistics\n\n"+
		"Words saved: %d\n"+
		"Reviewed: %d\n"+
		"Due now: %d\n"+
		"Mastered: %d\n"+
		"Average ease: %.2f\n"+
		"Waiting to be saved: %d",
		s.TotalWords, s.ReviewedWords, s.DueNow, s.Mastered, s.AverageEaseFactor, s.PendingRequests)
}
