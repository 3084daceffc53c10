package route

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/attestate/extraction-worker/internal/domain"
)

// GraphQLExecutor — executor для сообщений типа "graphql".
//
// options.body — готовое тело запроса ({"query": ..., "variables": ...}),
// отправляется POST'ом на options.url. Непустой errors в ответе — ошибка,
// data — результат.
type GraphQLExecutor struct {
	t *transport
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute выполняет GraphQL-запрос.
func (e *GraphQLExecutor) Execute(ctx context.Context, msg *domain.Message) (json.RawMessage, error) {
	tg, err := e.t.resolve(msg)
	if err != nil {
		return nil, err
	}

	body := ""
	if msg.Options != nil {
		body = msg.Options.Body
	}

	status, respBody, err := e.t.do(ctx, tg, http.MethodPost, strings.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, statusError(status, respBody)
	}

	var resp graphqlResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrGraphQL, err)
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, 0, len(resp.Errors))
		for _, gqlErr := range resp.Errors {
			messages = append(messages, gqlErr.Message)
		}
		return nil, fmt.Errorf("%w: %s", ErrGraphQL, strings.Join(messages, "; "))
	}

	if len(resp.Data) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Data, nil
}
