package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/attestate/extraction-worker/internal/domain"
)

// schemaSQL создаёт таблицу архива результатов.
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS extraction_results (
		id           UUID PRIMARY KEY,
		type         TEXT NOT NULL DEFAULT '',
		method       TEXT NOT NULL DEFAULT '',
		commissioner TEXT NOT NULL DEFAULT '',
		message      JSONB NOT NULL,
		results      JSONB,
		error        TEXT,
		created_at   TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS extraction_results_created_at_idx
		ON extraction_results (created_at DESC);
`

// Result — запись архива: отправленное сообщение и его исход.
type Result struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Method       string          `json:"method"`
	Commissioner string          `json:"commissioner"`
	Message      json.RawMessage `json:"message"`
	Results      json.RawMessage `json:"results,omitempty"`
	Error        *string         `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ResultRepo — архив отправленных результатов.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo создаёт новый ResultRepo.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// EnsureSchema создаёт таблицу, если её нет.
func (r *ResultRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save записывает результат. Реализует worker.Archive.
func (r *ResultRepo) Save(ctx context.Context, msg *domain.Message) error {
	rec, err := NewResult(msg)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO extraction_results (id, type, method, commissioner, message, results, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.Type,
		rec.Method,
		rec.Commissioner,
		[]byte(rec.Message),
		nullJSON(rec.Results),
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetByID возвращает запись по ID.
func (r *ResultRepo) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	query := `
		SELECT id, type, method, commissioner, message, results, error, created_at
		FROM extraction_results
		WHERE id = $1
	`
	return scanResult(r.pool.QueryRow(ctx, query, id))
}

// ListRecent возвращает последние записи, новые первыми.
func (r *ResultRepo) ListRecent(ctx context.Context, limit int) ([]Result, error) {
	query := `
		SELECT id, type, method, commissioner, message, results, error, created_at
		FROM extraction_results
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

// NewResult готовит запись архива из сообщения.
func NewResult(msg *domain.Message) (*Result, error) {
	if msg == nil {
		return nil, errors.New("result message is nil")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	rec := &Result{
		ID:           uuid.New(),
		Type:         string(msg.Type),
		Method:       msg.Method,
		Commissioner: msg.Commissioner,
		Message:      body,
		CreatedAt:    time.Now().UTC(),
	}
	if msg.HasResults() {
		rec.Results = msg.Results
	}
	if msg.Failed() {
		text := msg.Error
		rec.Error = &text
	}
	return rec, nil
}

// --- Helpers ---

func scanResult(row pgx.Row) (*Result, error) {
	var rec Result
	var message, results []byte

	err := row.Scan(
		&rec.ID,
		&rec.Type,
		&rec.Method,
		&rec.Commissioner,
		&message,
		&results,
		&rec.Error,
		&rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan result: %w", err)
	}

	rec.Message = message
	if results != nil {
		rec.Results = results
	}
	return &rec, nil
}

// nullJSON превращает пустой JSON в NULL.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
