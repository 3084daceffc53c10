// Package route — Router по умолчанию: выполняет сообщение удалённым вызовом.
//
// Registry выбирает Executor по типу сообщения:
//   - JSONRPCExecutor — JSON-RPC 2.0 поверх HTTP POST (eth_getLogs, eth_getTransactionReceipt ...)
//   - HTTPSExecutor — произвольный HTTP(S)-запрос
//   - GraphQLExecutor — GraphQL-запрос
//
// Адрес берётся из options.url или из Endpoint Store по options.endpoint.
// Endpoint, совпадающий по origin с options.url, добавляет свои timeout и headers.
//
// # Ошибки
//
// Любая ошибка возвращается вызывающему (Dispatcher'у) как error и
// превращается воркером в сообщение с полем error:
//   - ErrMissingURL — нет адреса
//   - endpoint.ErrNotFound — неизвестный options.endpoint
//   - ErrHTTPRequest — сеть, таймаут, HTTP >= 400
//   - ErrRPC / ErrGraphQL — ошибка протокола в теле ответа
package route
