package endpoint

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Ошибки Endpoint Store.
var (
	// ErrNotFound — endpoint с таким именем не зарегистрирован.
	ErrNotFound = errors.New("endpoint not found")

	// ErrAlreadyPopulated — Store уже заполнен.
	ErrAlreadyPopulated = errors.New("endpoint store already populated")

	// ErrInvalidEndpoint — некорректное определение endpoint.
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Definition — определение endpoint из конфигурации воркера.
type Definition struct {
	// Name — ключ поиска. По умолчанию — origin из URL.
	Name string `json:"name,omitempty"`

	// URL — адрес удалённой стороны.
	URL string `json:"url"`

	// Timeout — таймаут запроса в миллисекундах.
	Timeout int `json:"timeout,omitempty"`

	// Headers — заголовки, добавляемые к каждому запросу.
	Headers map[string]string `json:"headers,omitempty"`
}

// TimeoutDuration возвращает таймаут как time.Duration (0 — не задан).
func (d Definition) TimeoutDuration() time.Duration {
	return time.Duration(d.Timeout) * time.Millisecond
}

// Store — таблица endpoint'ов.
//
// Заполняется один раз до обработки первого сообщения, дальше только
// читается. Неудачный Populate ничего не меняет: Store остаётся пустым
// и его можно заполнить снова.
type Store struct {
	mu        sync.RWMutex
	populated bool
	byName    map[string]Definition
	byOrigin  map[string]Definition
}

// NewStore создаёт пустой Store.
func NewStore() *Store {
	return &Store{}
}

// Populate заполняет Store. Повторный вызов после успеха возвращает ErrAlreadyPopulated.
func (s *Store) Populate(defs []Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.populated {
		return ErrAlreadyPopulated
	}

	byName, byOrigin, err := index(defs)
	if err != nil {
		return err
	}

	s.byName, s.byOrigin = byName, byOrigin
	s.populated = true
	return nil
}

// index строит таблицы поиска. Store не трогается, пока нет ошибки.
func index(defs []Definition) (map[string]Definition, map[string]Definition, error) {
	byName := make(map[string]Definition, len(defs))
	byOrigin := make(map[string]Definition, len(defs))

	for i, def := range defs {
		origin, err := Origin(def.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: endpoints[%d]: %v", ErrInvalidEndpoint, i, err)
		}

		name := def.Name
		if name == "" {
			name = origin
		}
		if _, exists := byName[name]; exists {
			return nil, nil, fmt.Errorf("%w: endpoints[%d]: duplicate name %q", ErrInvalidEndpoint, i, name)
		}

		byName[name] = def
		byOrigin[origin] = def
	}
	return byName, byOrigin, nil
}

// Populated возвращает true после успешного Populate.
func (s *Store) Populated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.populated
}

// Len возвращает количество endpoint'ов.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// Lookup ищет endpoint по имени.
func (s *Store) Lookup(name string) (Definition, error) {
	s.mu.RLock()
	def, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return def, nil
}

// LookupURL ищет endpoint по origin адреса.
func (s *Store) LookupURL(rawURL string) (Definition, error) {
	origin, err := Origin(rawURL)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	s.mu.RLock()
	def, ok := s.byOrigin[origin]
	s.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, origin)
	}
	return def, nil
}

// Origin возвращает scheme://host[:port] адреса.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
