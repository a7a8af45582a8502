package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/daksha/internal/api/v1"
	"github.com/gosuda/daksha/internal/api/ws"
)

func registerAPIRoutes(
	api huma.API,
	store v1.DataStore,
	runs v1.RunCoordinator,
	archiver v1.ProjectArchiver,
	catalog v1.ModelCatalog,
	tokens v1.TokenCounter,
	screenshotsDir, logFile string,
) {
	v1.RegisterProjectRoutes(api, store)
	v1.RegisterMessageRoutes(api, store, runs)
	v1.RegisterRunRoutes(api, store, runs)
	v1.RegisterStateRoutes(api, store)
	v1.RegisterModelRoutes(api, catalog, tokens)
	v1.RegisterDownloadRoutes(api, archiver, screenshotsDir, logFile)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/projects/{name}", hub.ServeProject)
}
