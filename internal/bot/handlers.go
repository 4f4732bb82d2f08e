package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/orbit/internal/importer"
	"github.com/example/orbit/pkg/models"
)

const helpText = `Orbit keeps your cards in spaced repetition.

/review - practice the cards that are due
/due - count the cards that are due
/add - add cards written as
  Q. question
  A. answer

You can also send an .xlsx or .csv file (questions in column A, answers
in column B) or a markdown file with Q./A. cards.`

// telegramProvenance marks cards added from chat
var telegramProvenance = &models.Provenance{Identifier: "telegram", Title: "Telegram"}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.Message != nil:
		if !b.authorize(update.Message.Chat.ID) {
			b.log.Warn("ignoring message from unauthorized chat", "chat", update.Message.Chat.ID)
			return
		}
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		if !b.authorize(update.CallbackQuery.Message.Chat.ID) {
			b.log.Warn("ignoring callback from unauthorized chat", "chat", update.CallbackQuery.Message.Chat.ID)
			return
		}
		err = b.handleCallback(ctx, update.CallbackQuery)
	default:
		return
	}
	if err != nil {
		b.log.Error("failed to handle update", "update", update.UpdateID, "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	if message.Document != nil {
		return b.handleDocument(ctx, message)
	}
	if !message.IsCommand() {
		return b.send(tgbotapi.NewMessage(chatID, "I don't understand. Use /help to see the commands."))
	}

	switch message.Command() {
	case "start", "help":
		return b.send(tgbotapi.NewMessage(chatID, helpText))
	case "review":
		return b.handleReview(ctx, chatID)
	case "due":
		return b.handleDue(ctx, chatID)
	case "add":
		return b.handleAdd(ctx, chatID, message.CommandArguments())
	default:
		return b.send(tgbotapi.NewMessage(chatID, "Unknown command. Use /help to see the commands."))
	}
}

func (b *Bot) handleReview(ctx context.Context, chatID int64) error {
	queue, err := b.service.FetchReviewQueue(ctx, b.nowMillis())
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not load your cards. Please try again later."))
		return err
	}
	if len(queue) == 0 {
		return b.send(tgbotapi.NewMessage(chatID, "🎉 Nothing is due right now."))
	}

	s := &reviewSession{items: queue}
	b.mu.Lock()
	b.sessions[chatID] = s
	b.mu.Unlock()

	if err := b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("Starting a review of %s.", pluralCards(len(queue))))); err != nil {
		return err
	}
	return b.sendCurrentCard(chatID, s)
}

func (b *Bot) sendCurrentCard(chatID int64, s *reviewSession) error {
	item, ok := s.current()
	if !ok {
		return b.send(tgbotapi.NewMessage(chatID, "✅ Review complete. See you next time!"))
	}
	msg := tgbotapi.NewMessage(chatID, renderCard(item, false))
	msg.ReplyMarkup = questionKeyboard(s.position)
	return b.send(msg)
}

func (b *Bot) handleDue(ctx context.Context, chatID int64) error {
	count, err := b.service.DueCount(ctx, b.nowMillis())
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not count your cards. Please try again later."))
		return err
	}
	return b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("📚 %s due.", pluralCards(count))))
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, text string) error {
	cards := importer.ParseQAMarkdown(text)
	if len(cards) == 0 {
		return b.send(tgbotapi.NewMessage(chatID, "Send cards after /add, for example:\n/add Q. Capital of France?\nA. Paris"))
	}
	if _, err := b.service.IngestCards(ctx, cards, telegramProvenance, b.nowMillis()); err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not save your cards. Please try again later."))
		return err
	}
	return b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Added %s.", pluralCards(len(cards)))))
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	// Always answer the callback query to remove the loading state
	if _, err := b.sender.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", "error", err)
	}

	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data, err := parseCallbackData(callback.Data)
	if err != nil {
		return b.send(tgbotapi.NewMessage(chatID, "⚠️ Unknown action"))
	}

	b.mu.Lock()
	s := b.sessions[chatID]
	b.mu.Unlock()
	item, ok := s.current()
	if !ok || data.Position != s.position {
		return b.send(tgbotapi.NewMessage(chatID, "This card is no longer part of your review. Send /review to start again."))
	}

	switch data.Action {
	case actionShow:
		s.revealed = true
		return b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, renderCard(item, true), gradeKeyboard(s.position)))
	case actionGrade:
		if _, err := b.service.RecordRepetition(ctx, item.Task.ID, item.ComponentID, data.Outcome, b.nowMillis()); err != nil {
			b.send(tgbotapi.NewMessage(chatID, "❌ Could not save your answer. Please try again."))
			return err
		}
		b.send(tgbotapi.NewEditMessageText(chatID, messageID, renderCard(item, true)+"\n\n"+outcomeLabel(data.Outcome)))
		b.advance(s)
		return b.sendCurrentCard(chatID, s)
	case actionDelete:
		if err := b.service.DeleteTask(ctx, item.Task.ID, b.nowMillis()); err != nil {
			b.send(tgbotapi.NewMessage(chatID, "❌ Could not delete the card. Please try again."))
			return err
		}
		b.send(tgbotapi.NewEditMessageText(chatID, messageID, renderCard(item, true)+"\n\n🗑 Deleted"))
		b.advance(s)
		return b.sendCurrentCard(chatID, s)
	}
	return nil
}

// advance moves the session past its current card
func (b *Bot) advance(s *reviewSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s.position++
	s.revealed = false
}

func outcomeLabel(o models.Outcome) string {
	switch o {
	case models.OutcomeRemembered:
		return "✅ Remembered"
	case models.OutcomeForgotten:
		return "❌ Forgotten"
	default:
		return "⏭ Skipped"
	}
}
