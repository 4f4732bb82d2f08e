package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/orbit/internal/session"
	"github.com/example/orbit/pkg/models"
)

func newCardsCommand(open func() (*app, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cards",
		Short: "List every card, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			tasks, err := a.manager.ListCards(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No cards yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tTYPE\tNEXT DUE\tSOURCE\tPROMPT")
			for _, task := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.Spec.Content.Type, formatMillis(earliestDue(task)), task.ProvenanceIdentifier(), oneLine(task.Spec.Content.Body.Text))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 1000, "Maximum number of cards to list")
	return cmd
}

func newShowCommand(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Print a card and the schedule of each component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			task, err := a.manager.GetTask(cmd.Context(), models.TaskID(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			content := task.Spec.Content
			fmt.Fprintf(out, "Task:     %s\n", task.ID)
			fmt.Fprintf(out, "Type:     %s\n", content.Type)
			fmt.Fprintf(out, "Prompt:   %s\n", oneLine(content.Body.Text))
			if content.Answer != nil {
				fmt.Fprintf(out, "Answer:   %s\n", oneLine(content.Answer.Text))
			}
			if task.Provenance != nil {
				fmt.Fprintf(out, "Source:   %s\n", task.Provenance.Identifier)
			}

			ids := make([]string, 0, len(task.ComponentStates))
			for id := range task.ComponentStates {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(out, "Component %s: %s\n", id, describeState(task.ComponentStates[id]))
			}
			return nil
		},
	}
}

func newDeleteCommand(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task>",
		Short: "Delete a card so it is never reviewed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.DeleteTask(cmd.Context(), models.TaskID(args[0]), time.Now().UnixMilli()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newEditCommand(open func() (*app, error)) *cobra.Command {
	var question, answer, source, title, url string
	var clearSource bool

	cmd := &cobra.Command{
		Use:   "edit <task>",
		Short: "Change a card's question, answer or source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			editCard := flags.Changed("question") || flags.Changed("answer")
			editSource := clearSource || flags.Changed("source") || flags.Changed("title") || flags.Changed("url")
			if !editCard && !editSource {
				return fmt.Errorf("nothing to change: pass --question, --answer, --source, --title, --url or --clear-source")
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			taskID := models.TaskID(args[0])
			now := time.Now().UnixMilli()
			out := cmd.OutOrStdout()

			if editCard {
				if _, err := a.manager.UpdateCard(ctx, taskID, session.Card{Question: question, Answer: answer}, now); err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated card %s\n", taskID)
			}
			if editSource {
				var provenance *models.Provenance
				if !clearSource {
					provenance = &models.Provenance{Identifier: source, Title: title, URL: url}
					if provenance.Identifier == "" {
						return fmt.Errorf("--source is required unless --clear-source is set")
					}
				}
				if err := a.manager.UpdateProvenance(ctx, taskID, provenance, now); err != nil {
					return err
				}
				fmt.Fprintf(out, "Updated source of %s\n", taskID)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&question, "question", "", "New question text")
	flags.StringVar(&answer, "answer", "", "New answer text")
	flags.StringVar(&source, "source", "", "Source identifier")
	flags.StringVar(&title, "title", "", "Source title")
	flags.StringVar(&url, "url", "", "Source URL")
	flags.BoolVar(&clearSource, "clear-source", false, "Remove the card's source")
	return cmd
}

func earliestDue(task models.Task) int64 {
	first := true
	var due int64
	for _, state := range task.ComponentStates {
		if first || state.DueTimestampMillis < due {
			due = state.DueTimestampMillis
			first = false
		}
	}
	return due
}

func describeState(state models.ComponentState) string {
	due := formatMillis(state.DueTimestampMillis)
	if state.IsNew() {
		return "new, due " + due
	}
	if step, ok := state.LearningStep(); ok {
		return fmt.Sprintf("learning step %d, due %s", step, due)
	}
	ease, _ := state.EaseFactor()
	interval := time.Duration(state.IntervalMillis()) * time.Millisecond
	return fmt.Sprintf("interval %s, ease %.2f, due %s", interval.Round(time.Minute), ease, due)
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.DateTime)
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}
