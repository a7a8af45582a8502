package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/domain"
)

type ProjectPathInput struct {
	Name string `path:"name" doc:"Project name"`
}

type GetStateOutput struct {
	Body *domain.ExecutionSnapshot
}

type StateHistoryOutput struct {
	Body []*domain.ExecutionSnapshot
}

type BrowserSessionOutput struct {
	Body *domain.BrowserSession
}

type TerminalSessionOutput struct {
	Body *domain.TerminalSession
}

type TokenUsageOutput struct {
	Body struct {
		TokenUsage int `json:"token_usage" doc:"Token usage of the latest snapshot"`
	}
}

// RegisterStateRoutes exposes the execution state log. Reads on unknown
// projects return nulls and zeros, never 404s.
func RegisterStateRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/state",
		Summary:     "Get the latest execution snapshot",
		Tags:        []string{"State"},
	}, func(ctx context.Context, input *ProjectPathInput) (*GetStateOutput, error) {
		snap, err := store.States().GetLatest(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read state", err)
		}

		return &GetStateOutput{Body: snap}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-state-history",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/state/history",
		Summary:     "Get the full execution state log",
		Tags:        []string{"State"},
	}, func(ctx context.Context, input *ProjectPathInput) (*StateHistoryOutput, error) {
		snaps, err := store.States().GetAll(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read state history", err)
		}
		if snaps == nil {
			snaps = []*domain.ExecutionSnapshot{}
		}

		return &StateHistoryOutput{Body: snaps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-browser-session",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/browser-session",
		Summary:     "Get the browser view of the latest snapshot",
		Tags:        []string{"State"},
	}, func(ctx context.Context, input *ProjectPathInput) (*BrowserSessionOutput, error) {
		snap, err := store.States().GetLatest(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read state", err)
		}

		out := &BrowserSessionOutput{}
		if snap != nil {
			out.Body = &snap.Browser
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-terminal-session",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/terminal-session",
		Summary:     "Get the terminal view of the latest snapshot",
		Tags:        []string{"State"},
	}, func(ctx context.Context, input *ProjectPathInput) (*TerminalSessionOutput, error) {
		snap, err := store.States().GetLatest(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read state", err)
		}

		out := &TerminalSessionOutput{}
		if snap != nil {
			out.Body = &snap.Terminal
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-token-usage",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/token-usage",
		Summary:     "Get the token usage of the latest snapshot",
		Tags:        []string{"State"},
	}, func(ctx context.Context, input *ProjectPathInput) (*TokenUsageOutput, error) {
		usage, err := store.States().LatestTokenUsage(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read token usage", err)
		}

		out := &TokenUsageOutput{}
		out.Body.TokenUsage = usage
		return out, nil
	})
}
