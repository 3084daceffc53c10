package worker

import (
	"context"

	"github.com/attestate/extraction-worker/internal/domain"
)

// Router выполняет сообщение и возвращает его, дополненное результатом.
//
// Router не должен писать в исходное сообщение: Dispatcher передаёт ему копию.
// Ошибка Router'а не роняет воркер, а превращается в поле error ответа.
type Router interface {
	Route(ctx context.Context, msg *domain.Message) (*domain.Message, error)
}

// RouterFunc позволяет использовать функцию как Router.
type RouterFunc func(ctx context.Context, msg *domain.Message) (*domain.Message, error)

// Route вызывает f(ctx, msg).
func (f RouterFunc) Route(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return f(ctx, msg)
}
