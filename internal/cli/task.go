package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// exitMessage — сообщение, по которому воркер завершается.
const exitMessage = `{"version":"0.0.1","type":"exit"}`

// NewTaskCmd создаёт группу команд для очереди заданий.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage queued extraction tasks",
	}

	cmd.AddCommand(
		newTaskPublishCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var replyTo string
	var exit bool

	cmd := &cobra.Command{
		Use:   "publish [FILE|-]",
		Short: "Publish a message to the task queue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var msg json.RawMessage
			if exit {
				msg = json.RawMessage(exitMessage)
			} else {
				var err error
				msg, err = readDocument(cmd.InOrStdin(), args, data)
				if err != nil {
					return err
				}
			}

			resp, err := client.PublishTask(cmd.Context(), msg, replyTo)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task published: %s", resp.CorrelationID))
			out.Print(
				[]string{"CORRELATION_ID", "REPLY_TO"},
				[][]string{{resp.CorrelationID, resp.ReplyTo}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Message as inline JSON")
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "Queue for the result (results queue if not specified)")
	cmd.Flags().BoolVar(&exit, "exit", false, "Publish an exit message that stops a worker")

	return cmd
}
