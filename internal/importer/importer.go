// Package importer reads question and answer cards from spreadsheets, CSV
// files and Q./A. markdown.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/orbit/internal/session"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath       string // Path to the xlsx, csv or markdown file
	QuestionColumn string // Column with the question
	AnswerColumn   string // Column with the answer
	SheetName      string // Sheet to import; empty means the first sheet
	StartRow       int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		QuestionColumn: "A",
		AnswerColumn:   "B",
		StartRow:       2, // skip header
	}
}

// ImportResult holds the cards read from a file
type ImportResult struct {
	Cards          []session.Card
	TotalProcessed int
	Skipped        int
	Errors         []string
}

// ReadCards reads cards from the file named in config, picking the format by extension
func ReadCards(config ImportConfig) (*ImportResult, error) {
	switch strings.ToLower(filepath.Ext(config.FilePath)) {
	case ".csv":
		return readCSV(config)
	case ".md", ".markdown", ".txt":
		return readMarkdown(config)
	default:
		return readExcel(config)
	}
}

func readMarkdown(config ImportConfig) (*ImportResult, error) {
	data, err := os.ReadFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown file: %w", err)
	}
	cards := ParseQAMarkdown(string(data))
	return &ImportResult{Cards: cards, TotalProcessed: len(cards)}, nil
}

func readExcel(config ImportConfig) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	columns, err := resolveColumns(config)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{}
	for i, row := range rows {
		if i < config.StartRow-1 {
			continue
		}
		processRow(row, columns, result, i+1)
	}
	return result, nil
}

func readCSV(config ImportConfig) (*ImportResult, error) {
	file, err := os.Open(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	columns, err := resolveColumns(config)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{}
	rowNum := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		processRow(row, columns, result, rowNum)
	}
	return result, nil
}

type columnIndexes struct {
	question, answer int
}

func resolveColumns(config ImportConfig) (columnIndexes, error) {
	q, err := excelize.ColumnNameToNumber(config.QuestionColumn)
	if err != nil {
		return columnIndexes{}, fmt.Errorf("invalid question column: %w", err)
	}
	a, err := excelize.ColumnNameToNumber(config.AnswerColumn)
	if err != nil {
		return columnIndexes{}, fmt.Errorf("invalid answer column: %w", err)
	}
	return columnIndexes{question: q - 1, answer: a - 1}, nil
}

// processRow appends the row's card to result, or records why it was skipped
func processRow(row []string, columns columnIndexes, result *ImportResult, rowNum int) {
	if isBlank(row) {
		return
	}
	result.TotalProcessed++

	question := cell(row, columns.question)
	answer := cell(row, columns.answer)
	switch {
	case question == "":
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: question cannot be empty", rowNum))
	case answer == "":
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: answer cannot be empty", rowNum))
	default:
		result.Cards = append(result.Cards, session.Card{Question: question, Answer: answer})
	}
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
