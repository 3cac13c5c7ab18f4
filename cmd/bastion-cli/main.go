// Bastion CLI — инструмент командной строки для операторских действий:
// разбор DLQ, управление rate limiters и circuit breakers через HTTP API.
//
// Использование:
//
//	bastion [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	dlq      Разбор dead letter queue
//	limiter  Управление rate limiters
//	breaker  Управление circuit breakers
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Bastion/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "bastion",
		Short:         "Bastion CLI — job resilience operations tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewDLQCmd(clientFn, outputFn),
		cli.NewLimiterCmd(clientFn, outputFn),
		cli.NewBreakerCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
