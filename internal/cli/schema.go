package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCmd создаёт команду проверки документа схемой.
func NewValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var data string
	var schemaName string

	cmd := &cobra.Command{
		Use:   "validate [FILE|-]",
		Short: "Validate a message or worker config against its schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			doc, err := readDocument(cmd.InOrStdin(), args, data)
			if err != nil {
				return err
			}

			vr, err := client.Validate(cmd.Context(), schemaName, doc)
			if err != nil {
				return err
			}

			if vr.Valid {
				out.Success(fmt.Sprintf("Valid against %s", vr.Schema))
				if out.jsonMode {
					out.JSON(vr)
				}
				return nil
			}

			rows := make([][]string, len(vr.Violations))
			for i, v := range vr.Violations {
				location := v.Location
				if location == "" {
					location = "/"
				}
				rows[i] = []string{location, v.Message}
			}
			out.Print([]string{"LOCATION", "MESSAGE"}, rows, vr)

			return fmt.Errorf("document is invalid against %s", vr.Schema)
		},
	}

	cmd.Flags().StringVar(&data, "data", "", "Document as inline JSON")
	cmd.Flags().StringVar(&schemaName, "schema", "message", "Schema to validate against (message, config)")

	return cmd
}

// NewSchemaCmd создаёт команду вывода встроенной схемы.
func NewSchemaCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "schema NAME",
		Short: "Print a built-in JSON Schema (message, config, json-rpc, https, graphql, exit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			doc, err := client.GetSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.JSON(doc)
			return nil
		},
	}
}
