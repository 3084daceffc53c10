package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewExecCmd создаёт команду одноразового выполнения сообщения.
func NewExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var concurrency int
	var local bool
	var configPath string

	cmd := &cobra.Command{
		Use:   "exec [FILE|-]",
		Short: "Execute a single message and print the result",
		Long: `Execute sends one message to the API, waits for it to be routed
and prints the resulting message. Routing and validation failures are
returned inside the message "error" field, not as a command failure.

With --local the message is executed in-process and no API is needed;
--config supplies the endpoint table for options.endpoint lookups.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			msg, err := readDocument(cmd.InOrStdin(), args, data)
			if err != nil {
				return err
			}

			var result json.RawMessage
			if local {
				result, err = executeLocal(cmd.Context(), msg, configPath, concurrency)
			} else {
				result, err = clientFn().Execute(cmd.Context(), msg, concurrency)
			}
			if err != nil {
				return err
			}

			out.Message(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Message as inline JSON")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Dispatcher concurrency (API default if not specified)")
	cmd.Flags().BoolVar(&local, "local", false, "Execute in-process instead of calling the API")
	cmd.Flags().StringVar(&configPath, "config", "", "Worker config with endpoints (only with --local)")

	return cmd
}
