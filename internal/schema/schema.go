package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/attestate/extraction-worker/internal/domain"
)

//go:embed schemas/*.json
var files embed.FS

const urnPrefix = "urn:extraction-worker:schema:"

// Имена схем.
const (
	NameMessage = "message"
	NameOptions = "options"
	NameConfig  = "config"
)

// Validator проверяет сообщения и конфигурацию по JSON Schema.
//
// Сообщение проверяется в два шага: базовая схема (version, type)
// и схема варианта по type. Нарушения обоих шагов собираются вместе.
type Validator struct {
	message *jsonschema.Schema
	kinds   map[domain.Kind]*jsonschema.Schema
	config  *jsonschema.Schema
	printer *message.Printer
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default возвращает общий Validator со встроенными схемами.
// Встроенные схемы компилируются один раз; ошибка компиляции — паника.
func Default() *Validator {
	defaultOnce.Do(func() {
		v, err := New()
		if err != nil {
			panic(err)
		}
		defaultValidator = v
	})
	return defaultValidator
}

// New компилирует встроенные схемы.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()

	names := []string{NameMessage, NameOptions, NameConfig}
	for _, k := range domain.Kinds() {
		names = append(names, string(k))
	}

	for _, name := range names {
		raw, err := Raw(name)
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", name, err)
		}
		if err := c.AddResource(URL(name), doc); err != nil {
			return nil, fmt.Errorf("schema: add %s: %w", name, err)
		}
	}

	v := &Validator{
		kinds:   make(map[domain.Kind]*jsonschema.Schema),
		printer: message.NewPrinter(language.English),
	}

	var err error
	if v.message, err = c.Compile(URL(NameMessage)); err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", NameMessage, err)
	}
	if v.config, err = c.Compile(URL(NameConfig)); err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", NameConfig, err)
	}
	for _, k := range domain.Kinds() {
		s, err := c.Compile(URL(string(k)))
		if err != nil {
			return nil, fmt.Errorf("schema: compile %s: %w", k, err)
		}
		v.kinds[k] = s
	}

	return v, nil
}

// URL возвращает идентификатор схемы по имени.
func URL(name string) string {
	return urnPrefix + name
}

// Raw возвращает исходный JSON схемы по имени.
func Raw(name string) ([]byte, error) {
	raw, err := files.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	return raw, nil
}

// ValidateMessage проверяет сообщение по базовой схеме и схеме его варианта.
func (v *Validator) ValidateMessage(msg *domain.Message) error {
	if msg == nil {
		return &ValidationError{
			Subject:    NameMessage,
			SchemaURL:  URL(NameMessage),
			Violations: []Violation{{Location: "/", Message: "message is empty"}},
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("schema: marshal message: %w", err)
	}
	return v.ValidateMessageJSON(data)
}

// ValidateMessageJSON проверяет сообщение в сыром виде.
func (v *Validator) ValidateMessageJSON(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{
			Subject:    NameMessage,
			SchemaURL:  URL(NameMessage),
			Violations: []Violation{{Location: "/", Message: err.Error()}},
		}
	}

	schemaURL := URL(NameMessage)
	violations := v.collect(v.message.Validate(inst))

	if obj, ok := inst.(map[string]any); ok {
		if t, ok := obj["type"].(string); ok {
			if ks, ok := v.kinds[domain.Kind(t)]; ok {
				schemaURL = URL(t)
				violations = append(violations, v.collect(ks.Validate(inst))...)
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Subject: NameMessage, SchemaURL: schemaURL, Violations: violations}
}

// ValidateConfig проверяет конфигурацию воркера в сыром виде.
func (v *Validator) ValidateConfig(data []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{
			Subject:    NameConfig,
			SchemaURL:  URL(NameConfig),
			Violations: []Violation{{Location: "/", Message: err.Error()}},
		}
	}

	violations := v.collect(v.config.Validate(inst))
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Subject: NameConfig, SchemaURL: URL(NameConfig), Violations: violations}
}

// collect разворачивает дерево ошибок валидатора в плоский список.
func (v *Validator) collect(err error) []Violation {
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []Violation{{Location: "/", Message: err.Error()}}
	}

	var out []Violation
	v.walk(verr, &out)
	return out
}

func (v *Validator) walk(verr *jsonschema.ValidationError, out *[]Violation) {
	if len(verr.Causes) == 0 {
		*out = append(*out, Violation{
			Location: "/" + strings.Join(verr.InstanceLocation, "/"),
			Message:  verr.ErrorKind.LocalizedString(v.printer),
		})
		return
	}
	for _, cause := range verr.Causes {
		v.walk(cause, out)
	}
}
