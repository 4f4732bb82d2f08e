package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/orbit/pkg/models"
)

func newReviewCommand(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "review <task> <component> <outcome>",
		Short: "Record one repetition (outcome: remembered, forgotten or skipped)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := models.ParseOutcome(args[2])
			if err != nil {
				return err
			}

			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			state, err := a.manager.RecordRepetition(cmd.Context(), models.TaskID(args[0]), args[1], outcome, time.Now().UnixMilli())
			if err != nil {
				return err
			}

			due := time.UnixMilli(state.DueTimestampMillis).Format(time.DateTime)
			if step, ok := state.LearningStep(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s. Learning step %d, next review %s\n", outcome, step, due)
				return nil
			}
			interval := time.Duration(state.IntervalMillis()) * time.Millisecond
			ease, _ := state.EaseFactor()
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s. Interval %s, ease %.2f, next review %s\n", outcome, interval.Round(time.Minute), ease, due)
			return nil
		},
	}
}
