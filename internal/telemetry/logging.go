package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Ключи атрибутов, общие для всех компонентов.
const (
	KeyService   = "service"
	KeyComponent = "component"
	KeyTaskID    = "task_id"
	KeyType      = "type"
)

// LogLevel читает уровень из LOG_LEVEL.
//
// Принимает всё, что понимает slog.Level: debug, INFO, warn, error,
// а также смещения вида "DEBUG-2" или "WARN+1". Пусто или мусор: INFO.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(os.Getenv("LOG_LEVEL")))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// SetupLogger инициализирует глобальный логгер бинарника с выводом в stdout.
func SetupLogger(service string) *slog.Logger {
	return SetupLoggerTo(os.Stdout, service)
}

// SetupLoggerTo инициализирует глобальный логгер с выводом в w.
// Каждая запись получает атрибут service.
//
// Stdio-транспорт занимает stdout под ответы, поэтому ему нужен stderr.
//
// LOG_FORMAT:
//   - "json" (по умолчанию) — для production
//   - "text" — для разработки
func SetupLoggerTo(w io.Writer, service string) *slog.Logger {
	level := LogLevel()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if service != "" {
		logger = logger.With(KeyService, service)
	}
	slog.SetDefault(logger)

	return logger
}

type loggerKey struct{}

// WithLogger кладёт логгер в контекст.
// Router читает его через FromContext и пишет с task_id задачи.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext извлекает логгер из контекста; без него: slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithTask возвращает логгер задачи: task_id и тип сообщения.
func WithTask(logger *slog.Logger, taskID, kind string) *slog.Logger {
	if kind == "" {
		return logger.With(KeyTaskID, taskID)
	}
	return logger.With(KeyTaskID, taskID, KeyType, kind)
}

// WithComponent возвращает логгер с добавленным component.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(KeyComponent, name)
}
