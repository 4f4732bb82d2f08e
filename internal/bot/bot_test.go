package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/orbit/internal/database"
	"github.com/example/orbit/internal/logger"
	"github.com/example/orbit/internal/review"
	"github.com/example/orbit/internal/session"
	"github.com/example/orbit/internal/spaced_repetition"
	"github.com/example/orbit/pkg/models"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
}

func (f *fakeSender) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() tgbotapi.Chattable {
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) texts() []string {
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func setupBot(t *testing.T, chatID int64) (*Bot, *fakeSender, *session.Manager) {
	t.Helper()
	db, err := database.Connect(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	store := database.NewStore(db)
	t.Cleanup(func() { store.Close() })

	manager := session.NewManager(store, spaced_repetition.NewDefault(), 0, logger.NewNop())
	s := &fakeSender{}
	b := newBot(s, manager, chatID, logger.NewNop())
	b.now = func() time.Time { return testNow }
	return b, s, manager
}

func command(chatID int64, text, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
	}}
}

func press(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestBot_AddAndReview(t *testing.T) {
	b, s, manager := setupBot(t, 42)
	ctx := context.Background()

	b.handleUpdate(ctx, command(42, "/add Q. Capital of France?\nA. Paris", "add"))
	assert.Equal(t, "✅ Added 1 card.", s.texts()[0])

	b.handleUpdate(ctx, command(42, "/review", "review"))
	card, ok := s.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "❓ Capital of France?\n\n📖 Telegram", card.Text)
	assert.Equal(t, questionKeyboard(0), card.ReplyMarkup)

	b.handleUpdate(ctx, press(42, 3, "show|0"))
	edit, ok := s.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 3, edit.MessageID)
	assert.Contains(t, edit.Text, "💡 Paris")
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, gradeKeyboard(0), *edit.ReplyMarkup)

	b.handleUpdate(ctx, press(42, 3, "grade|remembered|0"))
	texts := s.texts()
	assert.Contains(t, texts[len(texts)-2], "✅ Remembered")
	assert.Equal(t, "✅ Review complete. See you next time!", texts[len(texts)-1])
	assert.Len(t, s.requests, 2)

	// Second learning step: due again in ten minutes, still inside the fuzzy window.
	queue, err := manager.FetchReviewQueue(ctx, testNow.UnixMilli())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, models.Learning{Step: 1}, queue[0].Task.ComponentStates[models.MainComponentID].Schedule)
}

func TestBot_StaleButton(t *testing.T) {
	b, s, _ := setupBot(t, 42)
	ctx := context.Background()

	b.handleUpdate(ctx, command(42, "/add Q. a?\nA. b", "add"))
	b.handleUpdate(ctx, command(42, "/review", "review"))
	b.handleUpdate(ctx, press(42, 3, "grade|forgotten|5"))
	assert.Contains(t, s.texts()[len(s.texts())-1], "no longer part of your review")

	b.handleUpdate(ctx, press(42, 3, "nonsense"))
	assert.Equal(t, "⚠️ Unknown action", s.texts()[len(s.texts())-1])
}

func TestBot_EmptyReviewAndDue(t *testing.T) {
	b, s, _ := setupBot(t, 42)
	ctx := context.Background()

	b.handleUpdate(ctx, command(42, "/review", "review"))
	b.handleUpdate(ctx, command(42, "/due", "due"))
	b.handleUpdate(ctx, command(42, "/add", "add"))
	texts := s.texts()
	assert.Equal(t, "🎉 Nothing is due right now.", texts[0])
	assert.Equal(t, "📚 0 cards due.", texts[1])
	assert.Contains(t, texts[2], "Send cards after /add")
}

func TestBot_Authorization(t *testing.T) {
	b, s, _ := setupBot(t, 0)
	ctx := context.Background()

	b.handleUpdate(ctx, command(7, "/start", "start"))
	b.handleUpdate(ctx, command(8, "/start", "start"))
	require.Len(t, s.sent, 1)
	assert.Equal(t, int64(7), s.sent[0].(tgbotapi.MessageConfig).ChatID)

	require.NoError(t, b.SendReminder(ctx, 3))
	reminder := s.last().(tgbotapi.MessageConfig)
	assert.Equal(t, int64(7), reminder.ChatID)
	assert.Contains(t, reminder.Text, "3 cards due")
}

func TestBot_SendReminderWithoutChat(t *testing.T) {
	b, s, _ := setupBot(t, 0)
	require.NoError(t, b.SendReminder(context.Background(), 2))
	assert.Empty(t, s.sent)
}

func TestCallbackData(t *testing.T) {
	tests := []struct {
		data string
		want callbackData
	}{
		{"show|0", callbackData{Action: actionShow, Position: 0}},
		{"grade|remembered|4", callbackData{Action: actionGrade, Outcome: models.OutcomeRemembered, Position: 4}},
		{"grade|skipped|12", callbackData{Action: actionGrade, Outcome: models.OutcomeSkipped, Position: 12}},
		{"delete|3", callbackData{Action: actionDelete, Position: 3}},
	}
	for _, tt := range tests {
		got, err := parseCallbackData(tt.data)
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.data, got.String())
	}

	for _, bad := range []string{"", "show", "show|x", "show|-1", "grade|meh|1", "grade|remembered", "main_menu"} {
		_, err := parseCallbackData(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderCard(t *testing.T) {
	qa := review.ReviewItem{
		ComponentID: models.MainComponentID,
		Task: models.Task{Spec: models.TaskSpec{Content: models.TaskContent{
			Type:   models.TaskContentTypeQA,
			Body:   models.TaskContentField{Text: "Q"},
			Answer: &models.TaskContentField{Text: "A"},
		}}},
	}
	assert.Equal(t, "❓ Q", renderCard(qa, false))
	assert.Equal(t, "❓ Q\n\n💡 A", renderCard(qa, true))

	cloze := review.ReviewItem{
		ComponentID: "c1",
		Task: models.Task{Spec: models.TaskSpec{Content: models.TaskContent{
			Type: models.TaskContentTypeCloze,
			Body: models.TaskContentField{Text: "Größe of the Moon is small"},
			Components: map[string]models.ClozeComponent{
				"c1": {Order: 0, Ranges: []models.ClozeRange{{StartIndex: 18, Length: 8, Hint: "size"}, {StartIndex: 0, Length: 5}}},
			},
		}}},
	}
	assert.Equal(t, "[...] of the Moon [size]", renderCard(cloze, false))
	assert.Equal(t, "Größe of the Moon is small", renderCard(cloze, true))
}

func TestBot_DeleteButton(t *testing.T) {
	b, s, manager := setupBot(t, 42)
	ctx := context.Background()

	b.handleUpdate(ctx, command(42, "/add Q. keep?\nA. yes\n\nQ. drop?\nA. no", "add"))
	b.handleUpdate(ctx, command(42, "/review", "review"))
	first := b.sessions[42].items[0].Task.ID

	b.handleUpdate(ctx, press(42, 3, "show|0"))
	b.handleUpdate(ctx, press(42, 3, "delete|0"))
	texts := s.texts()
	assert.Contains(t, texts[len(texts)-2], "🗑 Deleted")
	assert.Equal(t, 1, b.sessions[42].position)

	queue, err := manager.FetchReviewQueue(ctx, testNow.UnixMilli())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.NotEqual(t, first, queue[0].Task.ID)
}

func TestBot_DocumentUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file-1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("question,answer\nCapital of Peru?,Lima\nMissing answer,\n"))
	}))
	defer server.Close()

	b, s, manager := setupBot(t, 42)
	s.fileURL = server.URL
	ctx := context.Background()

	upload := func(fileID, name string) tgbotapi.Update {
		return tgbotapi.Update{Message: &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: 42},
			Document: &tgbotapi.Document{FileID: fileID, FileName: name},
		}}
	}

	b.handleUpdate(ctx, upload("file-1", "capitals.csv"))
	text := s.texts()[0]
	assert.Contains(t, text, "✅ Added 1 card from capitals.csv.")
	assert.Contains(t, text, "Skipped 1 rows")

	queue, err := manager.FetchReviewQueue(ctx, testNow.UnixMilli())
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, "Capital of Peru?", queue[0].Task.Spec.Content.Body.Text)
	assert.Equal(t, "capitals", queue[0].Task.ProvenanceIdentifier())

	b.handleUpdate(ctx, upload("file-1", "photo.png"))
	assert.Contains(t, s.texts()[1], "Please send an .xlsx, .csv or .md file")

	b.handleUpdate(ctx, upload("file-2", "gone.csv"))
	assert.Contains(t, s.texts()[2], "Could not download your file")
}
