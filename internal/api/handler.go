package api

import (
	"log/slog"

	"github.com/attestate/extraction-worker/internal/mq"
	"github.com/attestate/extraction-worker/internal/repo"
	"github.com/attestate/extraction-worker/internal/schema"
	"github.com/attestate/extraction-worker/internal/worker"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	router      worker.Router
	validator   *schema.Validator
	resultRepo  *repo.ResultRepo
	publisher   *mq.Publisher
	concurrency int
	metrics     *HTTPMetrics
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Router выполняет one-shot запросы (обязательно).
	Router worker.Router

	// Validator (опционально; если nil — schema.Default()).
	Validator *schema.Validator

	// ResultRepo — архив результатов (опционально; без него /results отвечает 503).
	ResultRepo *repo.ResultRepo

	// Publisher — постановка заданий в RabbitMQ (опционально; без него /tasks отвечает 503).
	Publisher *mq.Publisher

	// Concurrency — лимит параллельности one-shot Dispatcher'а (default: 1).
	Concurrency int

	// Metrics (опционально).
	Metrics *HTTPMetrics

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	validator := cfg.Validator
	if validator == nil {
		validator = schema.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		router:      cfg.Router,
		validator:   validator,
		resultRepo:  cfg.ResultRepo,
		publisher:   cfg.Publisher,
		concurrency: concurrency,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}
