package cli

import (
	"github.com/spf13/cobra"
)

// NewResultCmd создаёт группу команд для архива результатов.
func NewResultCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Browse archived results",
	}

	cmd.AddCommand(
		newResultListCmd(clientFn, outputFn),
		newResultShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newResultListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			results, err := client.ListResults(cmd.Context(), limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "TYPE", "METHOD", "ERROR", "CREATED"}
			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{r.ID, r.Type, r.Method, r.Error, r.CreatedAt}
			}

			out.Print(headers, rows, results)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newResultShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an archived result with its message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			res, err := client.GetResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.JSON(res)
			return nil
		},
	}
}
