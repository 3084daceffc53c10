package worker

import (
	"context"

	"github.com/attestate/extraction-worker/internal/domain"
)

// Inbound — одно входящее сообщение вместе со способом ответить на него.
type Inbound struct {
	// Body — сырое сообщение.
	Body []byte

	// Reply отправляет результат обратно вызывающей стороне.
	Reply func(ctx context.Context, msg *domain.Message) error

	// Ack подтверждает обработку (опционально).
	Ack func() error

	// Requeue возвращает сообщение в источник без обработки (опционально).
	// Используется, если сообщение пришло, когда Dispatcher уже закрыт.
	Requeue func() error
}

// Transport — граница между воркером и хост-процессом.
//
// Receive отдаёт канал входящих сообщений. Канал закрывается,
// когда источник исчерпан или ctx отменён.
type Transport interface {
	Receive(ctx context.Context) (<-chan Inbound, error)
}
