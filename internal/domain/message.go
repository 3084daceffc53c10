package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Version — текущая версия схемы сообщений.
const Version = "0.0.1"

// Message — единица работы и единица результата.
//
// Message создаётся вызывающей стороной, проверяется схемой при получении
// и дополняется на месте: Router'ом (Results) или Panic Handler'ом (Error).
// После обработки ровно одно из Results / Error заполнено.
//
// Поля, которые не распознаны или имеют неверный тип, сохраняются в Extra
// без изменений, чтобы отклонённое сообщение вернулось вызывающей стороне
// в исходном виде, дополненное полем error.
type Message struct {
	// Version — версия схемы ("0.0.1").
	Version string `json:"version,omitempty"`

	// Type — дискриминатор варианта: json-rpc, https, graphql, exit.
	Type Kind `json:"type,omitempty"`

	// Commissioner — ключ маршрутизации к стратегии-источнику.
	Commissioner string `json:"commissioner,omitempty"`

	// Method и Params — полезная нагрузка json-rpc вызова.
	// Параметры хранятся в сыром виде: большие числа не теряют точность.
	Method string            `json:"method,omitempty"`
	Params []json.RawMessage `json:"params,omitempty"`

	// Options — параметры транспорта (url, headers, timeout ...).
	Options *Options `json:"options,omitempty"`

	// Results — результат вызова. Заполняется при успехе.
	// Хранится в сыром виде: JSON null — тоже результат.
	Results json.RawMessage `json:"results,omitempty"`

	// Error — описание ошибки. Заполняется при неудаче.
	Error string `json:"error,omitempty"`

	// Extra — прочие поля сообщения в исходном виде.
	Extra map[string]json.RawMessage `json:"-"`
}

// Options — параметры транспорта для Router'а.
type Options struct {
	// URL — адрес удалённой стороны.
	URL string `json:"url,omitempty"`

	// Endpoint — имя записи в Endpoint Store (альтернатива URL).
	Endpoint string `json:"endpoint,omitempty"`

	// Method — HTTP-метод (для https). Default: GET.
	Method string `json:"method,omitempty"`

	// Headers — HTTP-заголовки запроса.
	Headers map[string]string `json:"headers,omitempty"`

	// Body — тело запроса (для https и graphql).
	Body string `json:"body,omitempty"`

	// Timeout — таймаут запроса в миллисекундах.
	Timeout int `json:"timeout,omitempty"`

	// Extra — прочие ключи options в исходном виде.
	Extra map[string]json.RawMessage `json:"-"`
}

// optionFields сообщает, заполнено ли типизированное поле.
// Пустое значение при сериализации опускается, поэтому его исходный
// вид остаётся в Extra.
var optionFields = map[string]func(o *Options) bool{
	"url":      func(o *Options) bool { return o.URL != "" },
	"endpoint": func(o *Options) bool { return o.Endpoint != "" },
	"method":   func(o *Options) bool { return o.Method != "" },
	"headers":  func(o *Options) bool { return len(o.Headers) > 0 },
	"body":     func(o *Options) bool { return o.Body != "" },
	"timeout":  func(o *Options) bool { return o.Timeout != 0 },
}

// UnmarshalJSON разбирает options, сохраняя незнакомые ключи в Extra.
func (o *Options) UnmarshalJSON(data []byte) error {
	type plain Options
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*o = Options(typed)
	for key, set := range optionFields {
		if set(o) {
			delete(fields, key)
		}
	}
	if len(fields) > 0 {
		o.Extra = fields
	}
	return nil
}

// MarshalJSON объединяет типизированные поля и Extra.
func (o Options) MarshalJSON() ([]byte, error) {
	type plain Options
	if len(o.Extra) == 0 {
		return json.Marshal(plain(o))
	}

	out := make(map[string]any, len(o.Extra)+len(optionFields))
	for key, raw := range o.Extra {
		out[key] = raw
	}

	typed, err := json.Marshal(plain(o))
	if err != nil {
		return nil, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(typed, &known); err != nil {
		return nil, err
	}
	for key, raw := range known {
		out[key] = raw
	}
	return json.Marshal(out)
}

// HasResults возвращает true, если сообщение несёт результат.
func (m *Message) HasResults() bool {
	return len(m.Results) > 0
}

// Failed возвращает true, если сообщение несёт ошибку.
func (m *Message) Failed() bool {
	return m.Error != ""
}

// IsTermination возвращает true для сигнала завершения.
func (m *Message) IsTermination() bool {
	return m.Type == KindExit
}

// SetResults записывает результат и снимает ошибку.
func (m *Message) SetResults(raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	m.Results = raw
	m.Error = ""
	delete(m.Extra, "results")
	delete(m.Extra, "error")
}

// SetError записывает ошибку и снимает результат.
func (m *Message) SetError(text string) {
	m.Error = text
	m.Results = nil
	delete(m.Extra, "results")
	delete(m.Extra, "error")
}

// SetCommissioner заменяет ключ маршрутизации. Пустое значение удаляет его.
func (m *Message) SetCommissioner(value string) {
	m.Commissioner = value
	delete(m.Extra, "commissioner")
}

// Clone возвращает независимую копию сообщения.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Params != nil {
		c.Params = make([]json.RawMessage, len(m.Params))
		for i, p := range m.Params {
			c.Params[i] = append(json.RawMessage(nil), p...)
		}
	}
	if m.Options != nil {
		opts := *m.Options
		opts.Headers = maps.Clone(m.Options.Headers)
		opts.Extra = maps.Clone(m.Options.Extra)
		c.Options = &opts
	}
	if m.Results != nil {
		c.Results = append(json.RawMessage(nil), m.Results...)
	}
	c.Extra = maps.Clone(m.Extra)
	return &c
}

// messageFields — поля с типизированным представлением.
var messageFields = map[string]func(m *Message, raw json.RawMessage) error{
	"version": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Version)
	},
	"type": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Type)
	},
	"commissioner": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Commissioner)
	},
	"method": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Method)
	},
	"params": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Params)
	},
	"options": func(m *Message, raw json.RawMessage) error {
		var opts Options
		if err := json.Unmarshal(raw, &opts); err != nil {
			return err
		}
		m.Options = &opts
		return nil
	},
	"results": func(m *Message, raw json.RawMessage) error {
		m.Results = append(json.RawMessage(nil), raw...)
		return nil
	},
	"error": func(m *Message, raw json.RawMessage) error {
		return json.Unmarshal(raw, &m.Error)
	},
}

// UnmarshalJSON разбирает сообщение нестрого: поле, не подходящее
// под типизированное представление, остаётся в Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("message must be a JSON object")
	}

	*m = Message{}
	for key, raw := range fields {
		decode, known := messageFields[key]
		if known && !isNull(raw) {
			single := Message{}
			if err := decode(&single, raw); err == nil {
				decode(m, raw)
				continue
			}
		}
		if m.Extra == nil {
			m.Extra = make(map[string]json.RawMessage)
		}
		m.Extra[key] = raw
	}
	return nil
}

// MarshalJSON объединяет типизированные поля и Extra.
// Типизированное значение имеет приоритет.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+8)
	for key, raw := range m.Extra {
		out[key] = raw
	}

	if m.Version != "" {
		out["version"] = m.Version
	}
	if m.Type != "" {
		out["type"] = m.Type
	}
	if m.Commissioner != "" {
		out["commissioner"] = m.Commissioner
	}
	if m.Method != "" {
		out["method"] = m.Method
	}
	if m.Params != nil {
		out["params"] = m.Params
	}
	if m.Options != nil {
		out["options"] = m.Options
	}
	if len(m.Results) > 0 {
		out["results"] = m.Results
	}
	if m.Error != "" {
		out["error"] = m.Error
	}

	return json.Marshal(out)
}

// ParseMessage разбирает сообщение из JSON.
// Ошибка возвращается только если data — не JSON-объект.
func ParseMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return &m, nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
