package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newQueueCommand(open func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Print the current review queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			defer a.Close()

			queue, err := a.manager.FetchReviewQueue(cmd.Context(), time.Now().UnixMilli())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(queue) == 0 {
				fmt.Fprintln(out, "Nothing is due.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tTASK\tCOMPONENT\tDUE\tSOURCE\tPROMPT")
			for i, item := range queue {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, item.Task.ID, item.ComponentID,
					formatMillis(item.DueTimestampMillis()), item.Task.ProvenanceIdentifier(), oneLine(item.Task.Spec.Content.Body.Text))
			}
			return w.Flush()
		},
	}
}
