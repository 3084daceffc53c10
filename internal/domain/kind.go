package domain

// Kind — тип сообщения (дискриминатор варианта).
//
// Каждому Kind соответствует своя схема и свой executor в Router'е.
type Kind string

const (
	// KindJSONRPC — JSON-RPC вызов (eth_getLogs, eth_getTransactionReceipt ...).
	KindJSONRPC Kind = "json-rpc"

	// KindHTTPS — произвольный HTTP(S)-запрос.
	KindHTTPS Kind = "https"

	// KindGraphQL — GraphQL-запрос.
	KindGraphQL Kind = "graphql"

	// KindExit — сигнал завершения воркера. Результата не порождает.
	KindExit Kind = "exit"
)

// Kinds возвращает все известные типы сообщений.
func Kinds() []Kind {
	return []Kind{KindJSONRPC, KindHTTPS, KindGraphQL, KindExit}
}

// IsValid проверяет, известен ли тип.
func (k Kind) IsValid() bool {
	switch k {
	case KindJSONRPC, KindHTTPS, KindGraphQL, KindExit:
		return true
	default:
		return false
	}
}
