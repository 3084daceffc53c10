package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/attestate/extraction-worker/internal/domain"
	"github.com/attestate/extraction-worker/internal/endpoint"
)

// Executor — интерфейс для выполнения конкретного типа сообщения.
//
// Реализации: JSONRPCExecutor, HTTPSExecutor, GraphQLExecutor.
//
// ctx несёт таймаут task'а, установленный Dispatcher'ом.
type Executor interface {
	Execute(ctx context.Context, msg *domain.Message) (json.RawMessage, error)
}

// Registry — реестр executor'ов по типу сообщения.
//
// Registry реализует контракт Router'а: Route возвращает входное сообщение,
// дополненное results, либо ошибку.
type Registry struct {
	executors map[domain.Kind]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
//
// Регистрирует: json-rpc, https, graphql.
// exit обрабатывается конвейером воркера и до Router'а не доходит.
func NewRegistry(store *endpoint.Store, client *http.Client) *Registry {
	if store == nil {
		store = endpoint.NewStore()
	}
	if client == nil {
		client = &http.Client{}
	}

	t := &transport{store: store, client: client}

	r := &Registry{executors: make(map[domain.Kind]Executor)}
	r.Register(domain.KindJSONRPC, &JSONRPCExecutor{t: t})
	r.Register(domain.KindHTTPS, &HTTPSExecutor{t: t})
	r.Register(domain.KindGraphQL, &GraphQLExecutor{t: t})
	return r
}

// Register добавляет executor для типа сообщения.
func (r *Registry) Register(kind domain.Kind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для типа сообщения.
func (r *Registry) Get(kind domain.Kind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}
	return executor, nil
}

// Route выполняет сообщение и записывает результат в него же.
func (r *Registry) Route(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	executor, err := r.Get(msg.Type)
	if err != nil {
		return nil, err
	}

	results, err := executor.Execute(ctx, msg)
	if err != nil {
		return nil, err
	}

	msg.SetResults(results)
	return msg, nil
}
