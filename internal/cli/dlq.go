package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDLQCmd создаёт группу команд для разбора dead letter queue.
func NewDLQCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and drain the dead letter queue",
	}

	cmd.AddCommand(
		newDLQListCmd(clientFn, outputFn),
		newDLQStatsCmd(clientFn, outputFn),
		newDLQRetryCmd(clientFn, outputFn),
		newDLQDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newDLQListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var queue string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letter entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			entries, err := client.ListDeadLetters(queue, limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "QUEUE", "KIND", "TENANT", "ATTEMPTS", "ERROR", "MOVED"}
			rows := make([][]string, len(entries))
			for i, e := range entries {
				rows[i] = []string{
					e.ID, e.Queue, e.JobKind, e.TenantID,
					strconv.Itoa(e.Attempts), truncateCell(e.Error, 48), e.MovedAt,
				}
			}

			out.Print(headers, rows, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&queue, "queue", "", "Filter by queue (e.g. jobs.payments)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum entries to list")

	return cmd
}

func newDLQStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dead letter counts per queue and job kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.DeadLetterStats()
			if err != nil {
				return err
			}

			headers := []string{"QUEUE", "KIND", "COUNT"}
			rows := make([][]string, len(stats))
			for i, s := range stats {
				rows[i] = []string{s.Queue, s.JobKind, strconv.Itoa(s.Count)}
			}

			out.Print(headers, rows, stats)
			return nil
		},
	}
}

func newDLQRetryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "retry ID [ID...]",
		Short: "Republish dead letter entries to their work queues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if len(args) == 1 {
				if err := client.RetryDeadLetter(args[0]); err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Entry %s republished", args[0]))
				return nil
			}

			result, err := client.BulkRetry(args)
			if err != nil {
				return err
			}
			printBulkResult(out, result)
			return nil
		},
	}
}

func newDLQDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete ID [ID...]",
		Short: "Delete dead letter entries without republishing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if !yes {
				return fmt.Errorf("deletion is permanent, pass --yes to confirm")
			}

			result, err := client.BulkDelete(args)
			if err != nil {
				return err
			}
			printBulkResult(out, result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm permanent deletion")

	return cmd
}

func printBulkResult(out *Output, result *BulkResultResponse) {
	out.Success(fmt.Sprintf("%d succeeded, %d failed", len(result.Succeeded), len(result.Failed)))

	if len(result.Failed) == 0 {
		return
	}
	headers := []string{"ID", "REASON"}
	rows := make([][]string, 0, len(result.Failed))
	for id, reason := range result.Failed {
		rows = append(rows, []string{id, reason})
	}
	out.Print(headers, rows, result)
}

func truncateCell(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
