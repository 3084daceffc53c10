package route

import "errors"

// Ошибки маршрутизации.
var (
	// ErrUnknownType — нет executor'а для типа сообщения.
	ErrUnknownType = errors.New("unknown message type")

	// ErrMissingURL — у сообщения нет адреса удалённой стороны.
	ErrMissingURL = errors.New("no transport target: options.url or options.endpoint is required")

	// ErrHTTPRequest — HTTP-запрос завершился ошибкой.
	ErrHTTPRequest = errors.New("http request failed")

	// ErrRPC — удалённая сторона вернула JSON-RPC ошибку.
	ErrRPC = errors.New("json-rpc error")

	// ErrGraphQL — удалённая сторона вернула GraphQL ошибки.
	ErrGraphQL = errors.New("graphql error")
)
