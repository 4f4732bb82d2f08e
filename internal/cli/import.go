package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/orbit/internal/importer"
	"github.com/example/orbit/pkg/models"
)

func newImportCommand(open func() (*app, error)) *cobra.Command {
	importConfig := importer.DefaultImportConfig()
	var source string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import cards from an xlsx, csv or Q./A. markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importConfig.FilePath = args[0]
			result, err := importer.ReadCards(importConfig)
			if err != nil {
				return err
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			if source == "" {
				source = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			provenance := &models.Provenance{Identifier: source, Title: source}
			ids, err := a.manager.IngestCards(cmd.Context(), result.Cards, provenance, time.Now().UnixMilli())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d cards (%d skipped)\n", len(ids), result.Skipped)
			for _, e := range result.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&importConfig.QuestionColumn, "question-column", importConfig.QuestionColumn, "Spreadsheet column with the question")
	flags.StringVar(&importConfig.AnswerColumn, "answer-column", importConfig.AnswerColumn, "Spreadsheet column with the answer")
	flags.StringVar(&importConfig.SheetName, "sheet", "", "Sheet to import (default first sheet)")
	flags.IntVar(&importConfig.StartRow, "start-row", importConfig.StartRow, "First row to import (1-based)")
	flags.StringVar(&source, "source", "", "Source identifier for the cards (default file name)")
	return cmd
}
