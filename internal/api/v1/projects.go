package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/daksha/internal/domain"
)

type CreateProjectInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Project name"`
	}
}

type CreateProjectOutput struct {
	Body struct {
		Name string `json:"name" doc:"Project name"`
	}
}

type ListProjectsInput struct{}

type ListProjectsOutput struct {
	Body struct {
		Projects []string `json:"projects" doc:"Project names in creation order"`
	}
}

type DeleteProjectInput struct {
	Name string `path:"name" doc:"Project name"`
}

func RegisterProjectRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Create a project",
		Description: "Creating a project that already exists is a no-op.",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *CreateProjectInput) (*CreateProjectOutput, error) {
		if err := domain.ValidateProjectName(input.Body.Name); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if err := store.Conversations().CreateProject(ctx, input.Body.Name); err != nil {
			return nil, huma.Error500InternalServerError("failed to create project", err)
		}

		out := &CreateProjectOutput{}
		out.Body.Name = input.Body.Name
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, _ *ListProjectsInput) (*ListProjectsOutput, error) {
		projects, err := store.Conversations().ListProjects(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list projects", err)
		}
		if projects == nil {
			projects = []string{}
		}

		out := &ListProjectsOutput{}
		out.Body.Projects = projects
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{name}",
		Summary:     "Delete a project and both of its logs",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *DeleteProjectInput) (*struct{}, error) {
		if err := store.Conversations().DeleteProject(ctx, input.Name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete project", err)
		}

		if err := store.States().Delete(ctx, input.Name); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete project state", err)
		}

		return nil, nil
	})
}
