package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/orbit/pkg/models"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// Callback actions
const (
	actionShow   = "show"
	actionGrade  = "grade"
	actionDelete = "delete"
)

// callbackData is what a card button carries. Position ties the button to
// one card of the chat's session so stale buttons can be rejected.
type callbackData struct {
	Action   string
	Outcome  models.Outcome
	Position int
}

func (c callbackData) String() string {
	if c.Action == actionGrade {
		return fmt.Sprintf("%s|%s|%d", c.Action, c.Outcome, c.Position)
	}
	return fmt.Sprintf("%s|%d", c.Action, c.Position)
}

func parseCallbackData(data string) (callbackData, error) {
	parts := strings.Split(data, "|")
	var c callbackData
	switch {
	case len(parts) == 2 && (parts[0] == actionShow || parts[0] == actionDelete):
		c.Action = parts[0]
	case len(parts) == 3 && parts[0] == actionGrade:
		outcome, err := models.ParseOutcome(parts[1])
		if err != nil {
			return c, err
		}
		c.Action = actionGrade
		c.Outcome = outcome
	default:
		return c, fmt.Errorf("unknown callback data %q", data)
	}
	position, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil || position < 0 {
		return callbackData{}, fmt.Errorf("invalid card position in callback data %q", data)
	}
	c.Position = position
	return c, nil
}

func questionKeyboard(position int) tgbotapi.InlineKeyboardMarkup {
	return createKeyboard([][]MenuButton{
		{{Text: "👀 Show answer", CallbackData: callbackData{Action: actionShow, Position: position}.String()}},
	})
}

func gradeKeyboard(position int) tgbotapi.InlineKeyboardMarkup {
	grade := func(o models.Outcome) string {
		return callbackData{Action: actionGrade, Outcome: o, Position: position}.String()
	}
	return createKeyboard([][]MenuButton{
		{
			{Text: "✅ Remembered", CallbackData: grade(models.OutcomeRemembered)},
			{Text: "❌ Forgotten", CallbackData: grade(models.OutcomeForgotten)},
		},
		{
			{Text: "⏭ Skip", CallbackData: grade(models.OutcomeSkipped)},
			{Text: "🗑 Delete", CallbackData: callbackData{Action: actionDelete, Position: position}.String()},
		},
	})
}
