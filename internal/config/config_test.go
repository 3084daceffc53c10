package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/attestate/extraction-worker/internal/schema"
)

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(`{
		"queue": {"options": {"concurrent": 10, "timeout": 1500}},
		"endpoints": [{"name": "mainnet", "url": "https://rpc.example.com", "timeout": 3000}]
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Queue.Options.Concurrent != 10 {
		t.Errorf("expected concurrency 10, got %d", cfg.Queue.Options.Concurrent)
	}
	if cfg.TaskTimeout() != 1500*time.Millisecond {
		t.Errorf("unexpected task timeout %v", cfg.TaskTimeout())
	}
	if cfg.DrainTimeout() != DefaultDrainTimeout {
		t.Errorf("expected default drain timeout, got %v", cfg.DrainTimeout())
	}
	if len(cfg.Endpoints) != 1 || cfg.Endpoints[0].Name != "mainnet" {
		t.Errorf("unexpected endpoints %+v", cfg.Endpoints)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"options is a string", `{"queue":{"options":""}}`},
		{"non-integer concurrency", `{"queue":{"options":{"concurrent":2.5}}}`},
		{"zero concurrency", `{"queue":{"options":{"concurrent":0}}}`},
		{"missing queue", `{"endpoints":[]}`},
		{"not json", `queue: 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParse_CarriesViolations(t *testing.T) {
	_, err := Parse([]byte(`{"queue":{"options":{"concurrent":2.5}}}`))

	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *schema.ValidationError in chain, got %v", err)
	}
	if len(verr.Violations) == 0 {
		t.Error("expected violations")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(&Config{Queue: QueueConfig{Options: QueueOptions{Concurrent: 1}}}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Validate(&Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for zero concurrency, got %v", err)
	}
	if err := Validate(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for nil config, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.json")
	if err := os.WriteFile(path, []byte(`{"queue":{"options":{"concurrent":3}}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Queue.Options.Concurrent != 3 {
		t.Errorf("expected 3, got %d", cfg.Queue.Options.Concurrent)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WORKER_CONFIG", "")
	t.Setenv("WORKER_CONCURRENCY", "4")
	t.Setenv("WORKER_TASK_TIMEOUT_MS", "250")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Queue.Options.Concurrent != 4 {
		t.Errorf("expected 4, got %d", cfg.Queue.Options.Concurrent)
	}
	if cfg.TaskTimeout() != 250*time.Millisecond {
		t.Errorf("unexpected timeout %v", cfg.TaskTimeout())
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("WORKER_CONFIG", "")
	t.Setenv("WORKER_TASK_TIMEOUT_MS", "")

	for _, v := range []string{"", "1.5", "abc", "0", "-2"} {
		t.Setenv("WORKER_CONCURRENCY", v)
		if _, err := FromEnv(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("WORKER_CONCURRENCY=%q: expected ErrInvalidConfig, got %v", v, err)
		}
	}
}
