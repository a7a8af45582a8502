package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/agent"
)

type ListModelsInput struct{}

type ListModelsOutput struct {
	Body struct {
		Models []agent.Model `json:"models" doc:"Models available for runs"`
	}
}

type CountTokensInput struct {
	Body struct {
		Text string `json:"text" doc:"Text to count tokens for"`
	}
}

type CountTokensOutput struct {
	Body struct {
		Count int `json:"count" doc:"Token count under the cl100k_base encoding"`
	}
}

func RegisterModelRoutes(api huma.API, catalog ModelCatalog, tokens TokenCounter) {
	huma.Register(api, huma.Operation{
		OperationID: "list-models",
		Method:      http.MethodGet,
		Path:        "/models",
		Summary:     "List models available for runs",
		Tags:        []string{"Models"},
	}, func(_ context.Context, _ *ListModelsInput) (*ListModelsOutput, error) {
		models := catalog.Models()
		if models == nil {
			models = []agent.Model{}
		}

		out := &ListModelsOutput{}
		out.Body.Models = models
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "count-tokens",
		Method:      http.MethodPost,
		Path:        "/tokens/count",
		Summary:     "Count tokens in a piece of text",
		Tags:        []string{"Models"},
	}, func(_ context.Context, input *CountTokensInput) (*CountTokensOutput, error) {
		n, err := tokens.Count(input.Body.Text)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count tokens", err)
		}

		out := &CountTokensOutput{}
		out.Body.Count = n
		return out, nil
	})
}
