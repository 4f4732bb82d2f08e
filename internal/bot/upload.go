package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/orbit/internal/importer"
	"github.com/example/orbit/pkg/models"
)

// maxUploadBytes caps the size of an imported document
const maxUploadBytes = 5 << 20

var importableExtensions = map[string]bool{
	".xlsx":     true,
	".csv":      true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// handleDocument imports cards from an uploaded spreadsheet, CSV or markdown file
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	doc := message.Document
	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if !importableExtensions[ext] {
		return b.send(tgbotapi.NewMessage(chatID, "Please send an .xlsx, .csv or .md file with questions and answers."))
	}
	if doc.FileSize > maxUploadBytes {
		return b.send(tgbotapi.NewMessage(chatID, "That file is too large to import."))
	}

	path, err := b.download(ctx, doc.FileID, ext)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not download your file. Please try again."))
		return err
	}
	defer os.Remove(path)

	config := importer.DefaultImportConfig()
	config.FilePath = path
	result, err := importer.ReadCards(config)
	if err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not read your file. Column A should hold questions and column B answers."))
		return err
	}
	if len(result.Cards) == 0 {
		return b.send(tgbotapi.NewMessage(chatID, "No cards found in that file."))
	}

	name := strings.TrimSuffix(doc.FileName, filepath.Ext(doc.FileName))
	provenance := &models.Provenance{Identifier: name, Title: name}
	if _, err := b.service.IngestCards(ctx, result.Cards, provenance, b.nowMillis()); err != nil {
		b.send(tgbotapi.NewMessage(chatID, "❌ Could not save your cards. Please try again later."))
		return err
	}

	text := fmt.Sprintf("✅ Added %s from %s.", pluralCards(len(result.Cards)), doc.FileName)
	if result.Skipped > 0 {
		text += fmt.Sprintf(" Skipped %d rows:\n%s", result.Skipped, strings.Join(result.Errors, "\n"))
	}
	return b.send(tgbotapi.NewMessage(chatID, text))
}

// download saves a Telegram file to a temporary path with the given extension
func (b *Bot) download(ctx context.Context, fileID, ext string) (string, error) {
	url, err := b.sender.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file URL: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "orbit-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	_, err = io.Copy(f, io.LimitReader(resp.Body, maxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return f.Name(), nil
}
