package v1

import (
	"context"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *sqlite.Store and *postgres.Store satisfy this interface.
type DataStore interface {
	Conversations() domain.ConversationRepository
	States() domain.StateRepository
}

// RunCoordinator abstracts run lifecycle operations for handler testing.
// *agent.Coordinator satisfies this interface.
type RunCoordinator interface {
	StartRun(ctx context.Context, project, prompt, model string) (*agent.RunInfo, error)
	ContinueRun(ctx context.Context, project, message, model string) (bool, error)
	Running(project string) bool
	ActiveRun(project string) (agent.RunInfo, bool)
	ActiveRuns() []agent.RunInfo
	Cancel(project string) error
}

// ProjectArchiver abstracts archive rendering for handler testing.
// *archive.Archiver satisfies this interface.
type ProjectArchiver interface {
	ZipProject(project string) (string, error)
	TranscriptPDF(ctx context.Context, project string) (string, error)
}

// ModelCatalog abstracts the model list for handler testing.
// *agent.Catalog satisfies this interface.
type ModelCatalog interface {
	Models() []agent.Model
}

// TokenCounter abstracts token counting for handler testing.
// *tokenizer.Tokenizer satisfies this interface.
type TokenCounter interface {
	Count(text string) (int, error)
}
