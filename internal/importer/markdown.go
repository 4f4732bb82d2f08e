package importer

import (
	"regexp"
	"strings"

	"github.com/example/orbit/internal/session"
)

var (
	questionPrefix = regexp.MustCompile(`^Q\.\s+(.*)`)
	answerPrefix   = regexp.MustCompile(`^A\.\s+(.*)`)
)

// ParseQAMarkdown extracts cards from text in the form
//
//	Q. What is X?
//	A. Y
//
// A question runs until its answer or a blank line, and an answer runs until a
// blank line or the next question. Questions without an answer are dropped.
func ParseQAMarkdown(markdown string) []session.Card {
	var cards []session.Card
	lines := strings.Split(markdown, "\n")

	i := 0
	for i < len(lines) {
		m := questionPrefix.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			i++
			continue
		}

		question := []string{m[1]}
		i++
		for i < len(lines) {
			next := strings.TrimSpace(lines[i])
			if next == "" || answerPrefix.MatchString(next) {
				break
			}
			question = append(question, next)
			i++
		}

		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}
		m = answerPrefix.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}

		answer := []string{m[1]}
		i++
		for i < len(lines) {
			next := strings.TrimSpace(lines[i])
			if next == "" || questionPrefix.MatchString(next) {
				break
			}
			answer = append(answer, next)
			i++
		}

		cards = append(cards, session.Card{
			Question: strings.Join(question, "\n"),
			Answer:   strings.Join(answer, "\n"),
		})
	}
	return cards
}
