package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
)

type ListMessagesInput struct {
	Name string `path:"name" doc:"Project name"`
}

type ListMessagesOutput struct {
	Body []*domain.Message
}

type PostMessageInput struct {
	Name string `path:"name" doc:"Project name"`
	Body struct {
		Message string `json:"message" minLength:"1" doc:"User message text"`
		Model   string `json:"model" minLength:"1" doc:"Model to resume with when the previous run is complete"`
	}
}

type PostMessageOutput struct {
	Body struct {
		Started bool `json:"started" doc:"Whether a resumed run was launched"`
	}
}

func RegisterMessageRoutes(api huma.API, store DataStore, runs RunCoordinator) {
	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/projects/{name}/messages",
		Summary:     "List a project's conversation",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *ListMessagesInput) (*ListMessagesOutput, error) {
		msgs, err := store.Conversations().GetAll(ctx, input.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load messages", err)
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}

		return &ListMessagesOutput{Body: msgs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "post-message",
		Method:        http.MethodPost,
		Path:          "/projects/{name}/messages",
		Summary:       "Record a user message",
		Description:   "The message always lands on the log. A run is launched only when the previous run is complete.",
		Tags:          []string{"Messages"},
		DefaultStatus: http.StatusAccepted,
	}, func(ctx context.Context, input *PostMessageInput) (*PostMessageOutput, error) {
		started, err := runs.ContinueRun(ctx, input.Name, input.Body.Message, input.Body.Model)
		if err != nil {
			if errors.Is(err, agent.ErrUnknownModel) || errors.Is(err, agent.ErrUnknownBackend) {
				return nil, huma.Error400BadRequest(err.Error())
			}
			return nil, huma.Error500InternalServerError("failed to record message", err)
		}

		out := &PostMessageOutput{}
		out.Body.Started = started
		return out, nil
	})
}
