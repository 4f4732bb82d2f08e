// Package bot runs review sessions over Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/orbit/internal/config"
	"github.com/example/orbit/internal/logger"
	"github.com/example/orbit/internal/review"
	"github.com/example/orbit/internal/session"
	"github.com/example/orbit/pkg/models"
)

// ReviewService is what the bot needs from the session layer
type ReviewService interface {
	FetchReviewQueue(ctx context.Context, nowMillis int64) ([]review.ReviewItem, error)
	DueCount(ctx context.Context, nowMillis int64) (int, error)
	RecordRepetition(ctx context.Context, taskID models.TaskID, componentID string, outcome models.Outcome, timestampMillis int64) (models.ComponentState, error)
	IngestCards(ctx context.Context, cards []session.Card, provenance *models.Provenance, timestampMillis int64) ([]models.TaskID, error)
	DeleteTask(ctx context.Context, taskID models.TaskID, timestampMillis int64) error
}

// sender is the part of the Telegram API the handlers use
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// reviewSession is a chat's walk through one review queue
type reviewSession struct {
	items    []review.ReviewItem
	position int
	revealed bool
}

func (s *reviewSession) current() (review.ReviewItem, bool) {
	if s == nil || s.position >= len(s.items) {
		return review.ReviewItem{}, false
	}
	return s.items[s.position], true
}

// Bot represents the Telegram bot application
type Bot struct {
	api     *tgbotapi.BotAPI
	sender  sender
	service ReviewService
	log     *logger.Logger
	now     func() time.Time
	client  *http.Client

	mu       sync.Mutex
	chatID   int64
	sessions map[int64]*reviewSession
}

// New connects to Telegram with the configured token
func New(cfg config.TelegramConfig, service ReviewService, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	log.Info("authorized on account", "username", api.Self.UserName)

	b := newBot(api, service, cfg.ChatID, log)
	b.api = api
	return b, nil
}

func newBot(s sender, service ReviewService, chatID int64, log *logger.Logger) *Bot {
	return &Bot{
		sender:   s,
		service:  service,
		log:      log,
		now:      time.Now,
		client:   &http.Client{Timeout: 30 * time.Second},
		chatID:   chatID,
		sessions: make(map[int64]*reviewSession),
	}
}

// Start handles updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// SendReminder tells the registered chat how many cards are due
func (b *Bot) SendReminder(_ context.Context, dueCount int) error {
	b.mu.Lock()
	chatID := b.chatID
	b.mu.Unlock()
	if chatID == 0 {
		b.log.Debug("no chat registered, skipping reminder")
		return nil
	}
	return b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("⏰ You have %s due. Send /review to start.", pluralCards(dueCount))))
}

// authorize reports whether chatID may use the bot. Without a configured
// chat, the first chat to write claims the bot.
func (b *Bot) authorize(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chatID == 0 {
		b.chatID = chatID
		b.log.Info("registered chat", "chat", chatID)
		return true
	}
	return b.chatID == chatID
}

func (b *Bot) nowMillis() int64 {
	return b.now().UnixMilli()
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.sender.Send(c); err != nil {
		b.log.Error("failed to send message", "error", err)
		return err
	}
	return nil
}

func pluralCards(n int) string {
	if n == 1 {
		return "1 card"
	}
	return fmt.Sprintf("%d cards", n)
}
