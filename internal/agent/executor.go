// Package agent coordinates project runs: it owns the run registry, the
// backend registry, and the model catalog, and drives executors through
// their lifecycle.
package agent

import (
	"context"

	"github.com/gosuda/daksha/internal/browser"
	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/search"
	"github.com/gosuda/daksha/internal/tokenizer"
)

// Executor performs one agent turn against a project. Implementations
// record their progress through the Toolkit repositories and must mark
// their final snapshot completed; the coordinator only steps in when an
// executor returns an error or panics.
type Executor interface {
	// Execute starts work on a fresh prompt.
	Execute(ctx context.Context, project, prompt string) error
	// Resume continues a finished run with a follow-up message.
	Resume(ctx context.Context, project, message string) error
}

// Toolkit bundles the capabilities handed to executors.
type Toolkit struct {
	States   domain.StateRepository
	Messages domain.ConversationRepository
	Browser  *browser.Pool
	Search   search.Client
	Tokens   *tokenizer.Tokenizer
}
