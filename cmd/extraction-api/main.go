// Extraction API — HTTP-доступ к extraction worker.
//
// API:
//   - Выполняет одно сообщение без очереди (POST /api/v1/execute)
//   - Проверяет сообщения и конфигурацию схемой
//   - Ставит задания в очередь RabbitMQ (если доступен)
//   - Отдаёт архив результатов (если задан DB_URL)
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/attestate/extraction-worker/internal/api"
	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/mq"
	"github.com/attestate/extraction-worker/internal/repo"
	"github.com/attestate/extraction-worker/internal/route"
	"github.com/attestate/extraction-worker/internal/telemetry"
)

// features — какие опциональные зависимости подключены (1 — да).
var features = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "extraction_api_feature_enabled",
	Help: "Optional extraction_api dependencies that are wired (1) or disabled (0)",
}, []string{"feature"})

func main() {
	os.Exit(run())
}

func run() int {
	logger := telemetry.SetupLogger("extraction-api")
	logger.Info("starting extraction-api")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, concurrency, err := executeSettings()
	if err != nil {
		logger.Error("invalid execute settings", "error", err)
		return 1
	}

	apiCfg := api.Config{
		Router:      route.NewRegistry(store, &http.Client{}),
		Concurrency: concurrency,
		Metrics:     api.NewHTTPMetrics(prometheus.DefaultRegisterer),
		Logger:      logger,
	}

	// Архив: без DB_URL /results отвечает 503, с ошибкой подключения API не стартует.
	if os.Getenv("DB_URL") != "" {
		pool, err := repo.NewPool(ctx, repo.PoolOptions{AppName: "extraction-api"})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer pool.Close()

		resultRepo := repo.NewResultRepo(pool)
		if err := resultRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare result archive", "error", err)
			return 1
		}
		apiCfg.ResultRepo = resultRepo
	}

	// Очередь: брокер может подняться позже, API работает и без него.
	if conn := connectBroker(ctx, logger); conn != nil {
		defer conn.Close()
		apiCfg.Publisher = mq.NewPublisher(conn, logger)
	}

	report := healthReport{
		started: time.Now(),
		Archive: apiCfg.ResultRepo != nil,
		Queue:   apiCfg.Publisher != nil,
	}
	features.WithLabelValues("archive").Set(boolGauge(report.Archive))
	features.WithLabelValues("queue").Set(boolGauge(report.Queue))

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", &report)
	mux.Handle("GET /metrics", promhttp.Handler())
	api.NewHandler(apiCfg).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              listenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr, "concurrency", concurrency)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// execute-запросы успевают закончиться за 10 секунд
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("extraction-api failed", "error", err)
		return 1
	}

	logger.Info("extraction-api stopped")
	return 0
}

// executeSettings читает endpoints и лимит one-shot выполнения.
// WORKER_CONFIG задаёт endpoints и concurrent, API_EXECUTE_CONCURRENCY переопределяет лимит.
func executeSettings() (*endpoint.Store, int, error) {
	store := endpoint.NewStore()
	concurrency := 1

	if path := os.Getenv("WORKER_CONFIG"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, 0, err
		}
		if err := store.Populate(cfg.Endpoints); err != nil {
			return nil, 0, fmt.Errorf("populate endpoints: %w", err)
		}
		concurrency = cfg.Queue.Options.Concurrent
	}

	if v := os.Getenv("API_EXECUTE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, 0, fmt.Errorf("API_EXECUTE_CONCURRENCY must be a positive integer, got %q", v)
		}
		concurrency = n
	}

	return store, concurrency, nil
}

// connectBroker подключается к RabbitMQ и объявляет топологию.
// Возвращает nil, если брокер недоступен.
func connectBroker(ctx context.Context, logger *slog.Logger) *mq.Connection {
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	conn, err := mq.NewConnection(mqURL, mq.ConnectionOptions{Name: "extraction-api"}, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, task publishing disabled", "error", err)
		return nil
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	return conn
}

func listenAddr() string {
	if v := os.Getenv("API_PORT"); v != "" {
		return ":" + v
	}
	return ":8080"
}

// healthReport — ответ /healthz.
type healthReport struct {
	started time.Time

	Archive bool `json:"archive"`
	Queue   bool `json:"queue"`
}

func (h *healthReport) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
		*healthReport
	}{"ok", time.Since(h.started).Round(time.Second).String(), h})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
