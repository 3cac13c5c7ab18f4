package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewLimiterCmd создаёт группу команд для управления rate limiters.
func NewLimiterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limiter",
		Short: "Manage distributed rate limiters",
	}

	cmd.AddCommand(
		newLimiterListCmd(clientFn, outputFn),
		newLimiterCheckCmd(clientFn, outputFn),
		newLimiterResetCmd(clientFn, outputFn),
		newLimiterStopCmd(clientFn, outputFn),
	)

	return cmd
}

func bucketRow(b LimiterBucketResponse) []string {
	suspended := ""
	if b.Suspended {
		suspended = "SUSPENDED"
	}
	return []string{
		b.Service, b.TenantID,
		fmt.Sprintf("%.1f/%.1f", b.Tokens, b.BucketSize),
		fmt.Sprintf("%.1f/s", b.RefillRate),
		fmt.Sprintf("%d/%d", b.Concurrent, b.MaxConcurrent),
		suspended,
	}
}

func newLimiterListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all limiter buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			buckets, err := client.ListLimiters()
			if err != nil {
				return err
			}

			headers := []string{"SERVICE", "TENANT", "TOKENS", "REFILL", "CONCURRENT", "STATUS"}
			rows := make([][]string, len(buckets))
			for i, b := range buckets {
				rows[i] = bucketRow(b)
			}

			out.Print(headers, rows, buckets)
			return nil
		},
	}
}

func newLimiterCheckCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "check SERVICE TENANT",
		Short: "Check a bucket without consuming a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			state, err := client.CheckLimiter(args[0], args[1])
			if err != nil {
				return err
			}

			headers := []string{"SERVICE", "TENANT", "TOKENS", "REFILL", "CONCURRENT", "STATUS", "ADMITS", "WAIT"}
			row := append(bucketRow(state.Bucket),
				strconv.FormatBool(state.Admits),
				time.Duration(state.WaitTime).String(),
			)

			out.Print(headers, [][]string{row}, state)
			return nil
		},
	}
}

func newLimiterResetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset SERVICE TENANT",
		Short: "Restore a bucket to its configured limits",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ResetLimiter(args[0], args[1]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Limiter %s/%s reset", args[0], args[1]))
			return nil
		},
	}
}

func newLimiterStopCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "stop SERVICE TENANT",
		Short: "Emergency stop: freeze a bucket until reset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if !yes {
				return fmt.Errorf("emergency stop freezes all %s jobs for the tenant, pass --yes to confirm", args[0])
			}

			if err := client.EmergencyStopLimiter(args[0], args[1]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Limiter %s/%s suspended", args[0], args[1]))
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm emergency stop")

	return cmd
}
