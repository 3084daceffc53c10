package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки валидации.
var (
	// ErrInvalid — документ не соответствует схеме.
	ErrInvalid = errors.New("document does not conform to schema")

	// ErrUnknownSchema — схема с таким именем не встроена.
	ErrUnknownSchema = errors.New("unknown schema")
)

// Violation — одно нарушение схемы.
type Violation struct {
	// Location — JSON Pointer на значение в документе.
	Location string `json:"location"`

	// Message — человекочитаемое описание.
	Message string `json:"message"`
}

// ValidationError несёт все нарушения схемы, а не только первое.
type ValidationError struct {
	// Subject — что проверялось: message или config.
	Subject string `json:"subject"`

	// SchemaURL — идентификатор нарушенной схемы.
	SchemaURL string `json:"schema"`

	// Violations — список нарушений.
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("at '%s': %s", v.Location, v.Message))
	}
	return fmt.Sprintf("ValidationError: %s does not conform to schema %s: %s",
		e.Subject, e.SchemaURL, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}
