package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoInput — не указан ни файл, ни --data.
var ErrNoInput = errors.New("no input: pass a file, '-' for stdin or --data")

// readDocument читает JSON-документ из --data, файла или stdin ("-").
func readDocument(stdin io.Reader, args []string, data string) (json.RawMessage, error) {
	var raw []byte

	switch {
	case data != "":
		raw = []byte(data)
	case len(args) == 0:
		return nil, ErrNoInput
	case args[0] == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	default:
		b, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", args[0], err)
		}
		raw = b
	}

	if !json.Valid(raw) {
		return nil, errors.New("input is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
