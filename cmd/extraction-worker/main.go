// Extraction Worker — выполняет сообщения извлечения данных.
//
// Worker:
//   - Получает сообщения от хост-процесса (stdin/stdout) или из RabbitMQ
//   - Проверяет их схемой и выполняет через Router (json-rpc, https, graphql)
//   - Ограничивает число одновременных задач лимитом queue.options.concurrent
//   - Возвращает результат или ошибку в том же сообщении
//
// Завершается сообщением типа exit: код 0. Невалидная конфигурация: код 1.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/hostio"
	"github.com/attestate/extraction-worker/internal/mq"
	"github.com/attestate/extraction-worker/internal/repo"
	"github.com/attestate/extraction-worker/internal/route"
	"github.com/attestate/extraction-worker/internal/telemetry"
	"github.com/attestate/extraction-worker/internal/worker"
)

const (
	transportStdio = "stdio"
	transportAMQP  = "amqp"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to worker config JSON (overrides WORKER_CONFIG)")
	flag.Parse()

	transport := os.Getenv("WORKER_TRANSPORT")
	if transport == "" {
		transport = transportStdio
	}

	// stdout в stdio-режиме занят ответами
	var logOut io.Writer = os.Stdout
	if transport == transportStdio {
		logOut = os.Stderr
	}
	logger := telemetry.SetupLoggerTo(logOut, "extraction-worker")
	logger.Info("starting extraction-worker", "transport", transport)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Конфигурация
	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("invalid worker config", "error", err)
		return 1
	}

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	// Router и Endpoint Store: Worker заполняет тот же store, который читает Router
	store := endpoint.NewStore()
	router := route.NewRegistry(store, &http.Client{})

	// Архив результатов (опционально)
	var archive worker.Archive
	if os.Getenv("DB_URL") != "" {
		pool, err := repo.NewPool(ctx, repo.PoolOptions{
			AppName:  "extraction-worker",
			MaxConns: int32(cfg.Queue.Options.Concurrent) + 1,
		})
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
		archive = resultRepo
		logger.Info("result archive enabled")
	}

	w, err := worker.New(worker.Config{
		Worker:  cfg,
		Router:  router,
		Store:   store,
		Archive: archive,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to start worker", "error", err)
		return 1
	}

	// Транспорт
	var t worker.Transport
	switch transport {
	case transportStdio:
		t = hostio.New(os.Stdin, os.Stdout, logger)

	case transportAMQP:
		mqURL := os.Getenv("RABBITMQ_URL")
		if mqURL == "" {
			mqURL = mq.DefaultURL()
		}

		conn, err := mq.NewConnection(mqURL, mq.ConnectionOptions{Name: "extraction-worker"}, logger)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			return 1
		}
		defer conn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			return 1
		}

		t = mq.NewTransport(conn, logger, mq.TransportConfig{
			Prefetch: cfg.Queue.Options.Concurrent,
		})

	default:
		logger.Error("unknown transport", "transport", transport)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	server := newServer(listenAddr(transport), w, registry)

	// Worker завершает группу по exit-сообщению, сигналу или концу входа.
	// Упавший сервер отменяет gctx и тем самым останавливает Worker.
	g.Go(func() error {
		err := w.Run(gctx, t)
		if server != nil {
			shutdownServer(server, logger)
		}
		return err
	})

	if server != nil {
		g.Go(func() error {
			logger.Info("listening", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("extraction-worker failed", "error", err)
		return 1
	}

	logger.Info("extraction-worker stopped")
	return 0
}

// listenAddr возвращает адрес /healthz и /metrics.
// Stdio-воркеры запускаются хостом по несколько штук, поэтому без
// WORKER_PORT HTTP-сервер у них не поднимается.
func listenAddr(transport string) string {
	if v := os.Getenv("WORKER_PORT"); v != "" {
		return ":" + v
	}
	if transport == transportAMQP {
		return ":8082"
	}
	return ""
}

// newServer собирает HTTP mux: /healthz + /metrics. Пустой addr: nil.
func newServer(addr string, w *worker.Worker, registry *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if state := w.State(); state != worker.StateRunning {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte(state.String()))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &http.Server{Addr: addr, Handler: mux}
}

// loadConfig читает конфигурацию из --config или окружения.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func shutdownServer(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
