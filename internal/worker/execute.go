package worker

import (
	"context"
	"log/slog"

	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/telemetry"
)

// placeholderCommissioner подставляется в one-shot сообщение: схема требует
// commissioner, а вызывающей стороне он не нужен.
const placeholderCommissioner = "one-shot"

// Execute выполняет одно сообщение без долгоживущего воркера.
//
// Создаёт отдельный Dispatcher с лимитом concurrency (< 1 — значит 1),
// прогоняет Pipeline один раз и возвращает результат. Исходный msg не меняется.
// commissioner в результате всегда пуст, как при успехе, так и при ошибке.
// Сигнал exit не завершает процесс: после проверки схемой он
// возвращается как ErrExitNotAllowed.
func Execute(ctx context.Context, router Router, msg *domain.Message, concurrency int) *domain.Message {
	if concurrency < 1 {
		concurrency = 1
	}

	logger := telemetry.WithComponent(telemetry.FromContext(ctx), "execute")

	in := msg.Clone()
	if in == nil {
		in = &domain.Message{}
	}
	in.SetCommissioner(placeholderCommissioner)

	result := executeOnce(ctx, router, in, concurrency, logger)
	result.SetCommissioner("")
	return result
}

func executeOnce(ctx context.Context, router Router, msg *domain.Message, concurrency int, logger *slog.Logger) *domain.Message {
	d, err := NewDispatcher(DispatcherConfig{
		Concurrency: concurrency,
		Router:      router,
		TaskTimeout: config.DefaultTaskTimeout,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build dispatcher", "error", err)
		return Contain(err, msg)
	}
	defer d.Close()

	outcome := NewPipeline(d, nil, nil, logger).Process(ctx, msg)
	if outcome.Terminate {
		return Contain(ErrExitNotAllowed, msg)
	}
	return outcome.Message
}
