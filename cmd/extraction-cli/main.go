// Extraction CLI — инструмент командной строки для extraction API.
//
// Использование:
//
//	extraction [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	exec      Выполнить одно сообщение (через API или --local)
//	validate  Проверить сообщение или конфигурацию схемой
//	schema    Показать встроенную JSON Schema
//	task      Поставить сообщение в очередь (в том числе exit)
//	result    Архив результатов
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/attestate/extraction-worker/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "extraction",
		Short:         "Extraction worker CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("EXTRACTION_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewExecCmd(clientFn, outputFn),
		cli.NewValidateCmd(clientFn, outputFn),
		cli.NewSchemaCmd(clientFn, outputFn),
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewResultCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
