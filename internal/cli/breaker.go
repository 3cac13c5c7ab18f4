package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewBreakerCmd создаёт группу команд для управления circuit breakers.
func NewBreakerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "breaker",
		Short: "Inspect and reset circuit breakers",
	}

	cmd.AddCommand(
		newBreakerListCmd(clientFn, outputFn),
		newBreakerResetCmd(clientFn, outputFn),
	)

	return cmd
}

func newBreakerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List circuit breakers of the API process",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			breakers, err := client.ListBreakers()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STATE", "FAILURES", "SUCCESSES", "OPENED", "CHANGED"}
			rows := make([][]string, len(breakers))
			for i, b := range breakers {
				rows[i] = []string{
					b.Name, b.State,
					strconv.Itoa(b.Failures), strconv.Itoa(b.Successes),
					b.OpenedAt, b.LastChangedAt,
				}
			}

			out.Print(headers, rows, breakers)
			return nil
		},
	}
}

func newBreakerResetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reset NAME",
		Short: "Force a breaker back to closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ResetBreaker(args[0]); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Breaker %s closed", args[0]))
			return nil
		},
	}
}
