package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/attestate/extraction-worker/internal/config"
	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/endpoint"
	"github.com/attestate/extraction-worker/internal/route"
	"github.com/attestate/extraction-worker/internal/worker"
)

// executeLocal выполняет сообщение в процессе CLI, без API.
// configPath (опционально) — конфигурация воркера с таблицей endpoints.
func executeLocal(ctx context.Context, raw json.RawMessage, configPath string, concurrency int) (json.RawMessage, error) {
	store := endpoint.NewStore()

	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if concurrency <= 0 {
			concurrency = cfg.Queue.Options.Concurrent
		}
		if err := store.Populate(cfg.Endpoints); err != nil {
			return nil, fmt.Errorf("populate endpoints: %w", err)
		}
	}

	msg, err := domain.ParseMessage(raw)
	if err != nil {
		return nil, err
	}

	result := worker.Execute(ctx, route.NewRegistry(store, nil), msg, concurrency)
	return json.Marshal(result)
}
