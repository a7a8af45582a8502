package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
)

type StartRunInput struct {
	Name string `path:"name" doc:"Project name"`
	Body struct {
		Prompt string `json:"prompt,omitempty" doc:"Optional user prompt recorded before the run starts"`
		Model  string `json:"model" doc:"Model to run"`
	}
}

type StartRunOutput struct {
	Body *agent.RunInfo
}

type ActiveRunInput struct {
	Name string `path:"name" doc:"Project name"`
}

type ActiveRunOutput struct {
	Body struct {
		Running        bool           `json:"running" doc:"Whether a run is registered for the project"`
		Run            *agent.RunInfo `json:"run,omitempty" doc:"The registered run, when present"`
		SnapshotActive bool           `json:"snapshot_active" doc:"Active flag of the latest snapshot"`
	}
}

type ListRunsInput struct{}

type ListRunsOutput struct {
	Body []agent.RunInfo
}

type CancelRunInput struct {
	Name string `path:"name" doc:"Project name"`
}

func RegisterRunRoutes(api huma.API, store DataStore, runs RunCoordinator) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-run",
		Method:        http.MethodPost,
		Path:          "/projects/{name}/runs",
		Summary:       "Start a run",
		Tags:          []string{"Runs"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *StartRunInput) (*StartRunOutput, error) {
		if input.Body.Model == "" {
			return nil, huma.Error400BadRequest("model is required")
		}

		info, err := runs.StartRun(ctx, input.Name, input.Body.Prompt, input.Body.Model)
		if err != nil {
			switch {
			case errors.Is(err, agent.ErrRunActive):
				return nil, huma.Error409Conflict("a run is already active for this project")
			case errors.Is(err, agent.ErrUnknownModel), errors.Is(err, agent.ErrUnknownBackend):
				return nil, huma.Error400BadRequest(err.Error())
			default:
				return nil, huma.Error500InternalServerError("failed to start run", err)
			}
		}

		return &StartRunOutput{Body: info}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-active-run",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/runs/active",
		Summary:     "Report whether a run is live for the project",
		Tags:        []string{"Runs"},
	}, func(ctx context.Context, input *ActiveRunInput) (*ActiveRunOutput, error) {
		out := &ActiveRunOutput{}
		if run, ok := runs.ActiveRun(input.Name); ok {
			out.Body.Running = true
			out.Body.Run = &run
		}

		active, err := store.States().IsActive(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to read state", err)
		}
		out.Body.SnapshotActive = active

		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List live runs across all projects",
		Tags:        []string{"Runs"},
	}, func(_ context.Context, _ *ListRunsInput) (*ListRunsOutput, error) {
		active := runs.ActiveRuns()
		if active == nil {
			active = []agent.RunInfo{}
		}
		return &ListRunsOutput{Body: active}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-run",
		Method:      http.MethodDelete,
		Path:        "/projects/{name}/runs",
		Summary:     "Cancel the project's live run",
		Tags:        []string{"Runs"},
	}, func(_ context.Context, input *CancelRunInput) (*struct{}, error) {
		if err := runs.Cancel(input.Name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no active run for this project")
			}
			return nil, huma.Error500InternalServerError("failed to cancel run", err)
		}

		return nil, nil
	})
}
