// Package hostio — Transport поверх потоков ввода-вывода.
//
// Каждая строка входного потока — одно сообщение (JSON lines).
// Ответы пишутся в выходной поток по одному JSON-объекту на строку.
// Используется, когда воркер запущен хост-процессом как дочерний.
package hostio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/telemetry"
	"github.com/attestate/extraction-worker/internal/worker"
)

// maxLineSize — максимальный размер одного сообщения.
const maxLineSize = 8 << 20

// ErrLineTooLong — строка входного потока длиннее лимита.
var ErrLineTooLong = fmt.Errorf("message exceeds %d bytes", maxLineSize)

// Transport читает сообщения из r и пишет ответы в w.
type Transport struct {
	r       io.Reader
	maxLine int
	logger  *slog.Logger

	mu  sync.Mutex
	enc *json.Encoder
}

// New создаёт Transport.
func New(r io.Reader, w io.Writer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		r:       r,
		maxLine: maxLineSize,
		enc:     json.NewEncoder(w),
		logger:  telemetry.WithComponent(logger, "hostio"),
	}
}

// Receive запускает чтение входного потока.
// Канал закрывается на EOF, ошибке чтения или отмене ctx.
//
// Слишком длинная строка пропускается до перевода строки: в ответ уходит
// сообщение с error, чтение продолжается со следующей строки.
func (t *Transport) Receive(ctx context.Context) (<-chan worker.Inbound, error) {
	out := make(chan worker.Inbound)

	go func() {
		defer close(out)

		reader := bufio.NewReaderSize(t.r, 64<<10)
		for {
			line, err := readLine(reader, t.maxLine)
			if errors.Is(err, ErrLineTooLong) {
				t.logger.Warn("discarding oversized message", "limit", t.maxLine)
				if err := t.Send(ctx, worker.Contain(err, &domain.Message{})); err != nil {
					t.logger.Error("failed to reject oversized message", "error", err)
				}
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					t.logger.Error("failed to read input", "error", err)
				}
				return
			}

			if len(line) == 0 {
				continue
			}

			in := worker.Inbound{
				Body:  line,
				Reply: t.Send,
			}

			select {
			case out <- in:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// readLine читает одну строку без завершающих пробелов.
// Строка длиннее limit дочитывается до '\n' и отбрасывается с ErrLineTooLong.
// Последняя строка без '\n' возвращается как обычная, следующий вызов даёт io.EOF.
func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > limit {
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = r.ReadSlice('\n')
			}
			return nil, ErrLineTooLong
		}
		line = append(line, chunk...)

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return bytes.TrimSpace(line), nil
		case err != nil:
			return nil, err
		}
		return bytes.TrimSpace(line), nil
	}
}

// Send пишет сообщение в выходной поток. Безопасен для конкурентного вызова.
func (t *Transport) Send(_ context.Context, msg *domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.enc.Encode(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
