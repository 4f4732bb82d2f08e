package bot

import (
	"sort"
	"strings"

	"github.com/example/orbit/internal/review"
	"github.com/example/orbit/pkg/models"
)

const clozeBlank = "[...]"

// renderCard formats the prompt for a queued component, with the answer when revealed
func renderCard(item review.ReviewItem, revealed bool) string {
	content := item.Task.Spec.Content
	var b strings.Builder

	switch content.Type {
	case models.TaskContentTypeCloze:
		if revealed {
			b.WriteString(content.Body.Text)
		} else {
			b.WriteString(blankOut(content.Body.Text, content.Components[item.ComponentID].Ranges))
		}
	default:
		b.WriteString("❓ ")
		b.WriteString(content.Body.Text)
		if revealed && content.Answer != nil {
			b.WriteString("\n\n💡 ")
			b.WriteString(content.Answer.Text)
		}
	}

	if item.Task.Provenance != nil && item.Task.Provenance.Title != "" {
		b.WriteString("\n\n📖 ")
		b.WriteString(item.Task.Provenance.Title)
	}
	return b.String()
}

// blankOut replaces each range (in characters) with its hint or a blank
func blankOut(text string, ranges []models.ClozeRange) string {
	runes := []rune(text)
	sorted := append([]models.ClozeRange(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartIndex < sorted[j].StartIndex })

	var b strings.Builder
	cursor := 0
	for _, r := range sorted {
		start := min(max(r.StartIndex, cursor), len(runes))
		end := min(start+r.Length, len(runes))
		b.WriteString(string(runes[cursor:start]))
		if r.Hint != "" {
			b.WriteString("[" + r.Hint + "]")
		} else {
			b.WriteString(clozeBlank)
		}
		cursor = end
	}
	b.WriteString(string(runes[cursor:]))
	return b.String()
}
