package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/schema"
)

// Значения по умолчанию.
const (
	DefaultTaskTimeout  = 60 * time.Second
	DefaultDrainTimeout = 30 * time.Second
)

// ErrInvalidConfig — конфигурация не прошла проверку. Воркер не стартует.
var ErrInvalidConfig = errors.New("received invalid config")

// Config — стартовая конфигурация воркера.
//
//	{
//	  "queue": {"options": {"concurrent": 10, "timeout": 60000, "drainTimeout": 30000}},
//	  "endpoints": [{"name": "mainnet", "url": "https://...", "timeout": 3000}]
//	}
type Config struct {
	Queue     QueueConfig           `json:"queue"`
	Endpoints []endpoint.Definition `json:"endpoints,omitempty"`
}

// QueueConfig — настройки Dispatcher'а.
type QueueConfig struct {
	Options QueueOptions `json:"options"`
}

// QueueOptions — параметры очереди.
type QueueOptions struct {
	// Concurrent — максимум одновременно выполняемых tasks (обязательно, > 0).
	Concurrent int `json:"concurrent"`

	// Timeout — таймаут одного вызова Router'а в миллисекундах.
	Timeout int `json:"timeout,omitempty"`

	// DrainTimeout — сколько ждать in-flight tasks после сигнала завершения (мс).
	DrainTimeout int `json:"drainTimeout,omitempty"`
}

// TaskTimeout возвращает таймаут вызова Router'а.
func (c *Config) TaskTimeout() time.Duration {
	if c.Queue.Options.Timeout > 0 {
		return time.Duration(c.Queue.Options.Timeout) * time.Millisecond
	}
	return DefaultTaskTimeout
}

// DrainTimeout возвращает время ожидания in-flight tasks при завершении.
func (c *Config) DrainTimeout() time.Duration {
	if c.Queue.Options.DrainTimeout > 0 {
		return time.Duration(c.Queue.Options.DrainTimeout) * time.Millisecond
	}
	return DefaultDrainTimeout
}

// Parse проверяет документ по схеме конфигурации и декодирует его.
// Схема проверяется до декодирования: concurrent=1.5 или "" — ошибка,
// а не молчаливое приведение к нулю.
func Parse(data []byte) (*Config, error) {
	if err := schema.Default().ValidateConfig(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// Validate проверяет уже собранную конфигурацию той же схемой.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := schema.Default().ValidateConfig(data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Load читает конфигурацию из файла.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// FromEnv собирает конфигурацию из переменных окружения.
//
// Переменные:
//   - WORKER_CONFIG — путь к JSON-файлу конфигурации (имеет приоритет)
//   - WORKER_CONCURRENCY — число одновременных tasks (обязательно без файла)
//   - WORKER_TASK_TIMEOUT_MS — таймаут вызова Router'а
func FromEnv() (*Config, error) {
	if path := os.Getenv("WORKER_CONFIG"); path != "" {
		return Load(path)
	}

	concurrency, err := strconv.Atoi(os.Getenv("WORKER_CONCURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("%w: WORKER_CONCURRENCY must be a positive integer", ErrInvalidConfig)
	}

	cfg := &Config{Queue: QueueConfig{Options: QueueOptions{Concurrent: concurrency}}}

	if v := os.Getenv("WORKER_TASK_TIMEOUT_MS"); v != "" {
		timeout, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: WORKER_TASK_TIMEOUT_MS must be an integer", ErrInvalidConfig)
		}
		cfg.Queue.Options.Timeout = timeout
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
