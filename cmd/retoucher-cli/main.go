// Retoucher CLI — инструмент командной строки для постановки и
// просмотра задач редактирования изображений.
//
// Использование:
//
//	retoucher [--amqp-url URL] [--json] task <subcommand> [flags]
//
// Команды:
//
//	task  Управление задачами редактирования
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Retoucher/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var amqpURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "retoucher",
		Short:         "Retoucher CLI — image edit orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default from RABBITMQ_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	// CLI пишет напрямую в БД; логи подавляем, чтобы не мешали выводу
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	storeFn := func() (*cli.Store, error) {
		return cli.OpenStore(context.Background(), amqpURL, quiet)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(storeFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
