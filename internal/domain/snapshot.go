package domain

import (
	"context"
	"time"
)

// BrowserSession is the browser view carried by a snapshot: the page URL and
// the path of the screenshot captured for it. Zero value means no browser
// activity yet.
type BrowserSession struct {
	URL        string `json:"url"`
	Screenshot string `json:"screenshot"`
}

// TerminalSession is the terminal view carried by a snapshot. Zero value
// means no terminal activity yet.
type TerminalSession struct {
	Command string `json:"command"`
	Output  string `json:"output"`
	Title   string `json:"title"`
}

// ExecutionSnapshot is one entry in a project's execution state log. Each
// snapshot is a full picture of the run at a point in time; the log grows by
// appending and only its latest entry is ever patched in place.
type ExecutionSnapshot struct {
	InternalMonologue string          `json:"internal_monologue"`
	Browser           BrowserSession  `json:"browser_session"`
	Terminal          TerminalSession `json:"terminal_session"`
	Step              string          `json:"step"`
	StatusMessage     string          `json:"status_message"`
	Completed         bool            `json:"completed"`
	Active            bool            `json:"active"`
	TokenUsage        int             `json:"token_usage"`
	Timestamp         time.Time       `json:"timestamp"`
}

// NewSnapshot returns the default snapshot a fresh run starts from: active,
// not completed, zero token usage, stamped now.
func NewSnapshot() *ExecutionSnapshot {
	return &ExecutionSnapshot{
		Active:    true,
		Timestamp: time.Now(),
	}
}

// StateRepository stores the per-project execution state log.
//
// Mutations that target the latest entry (SetActive, SetCompleted,
// AddTokenUsage) seed the log with one default snapshot when the project has
// none, then patch it. UpdateLatest on an empty or missing log behaves as an
// append. GetAll and GetLatest return nil for an unknown project;
// LatestTokenUsage returns 0 and IsActive/IsCompleted return false. No read
// returns an error for a missing project.
//
// Implementations serialize mutations per project so concurrent
// read-modify-write cycles cannot drop each other's writes.
type StateRepository interface {
	Append(ctx context.Context, project string, snap *ExecutionSnapshot) error
	UpdateLatest(ctx context.Context, project string, snap *ExecutionSnapshot) error
	GetAll(ctx context.Context, project string) ([]*ExecutionSnapshot, error)
	GetLatest(ctx context.Context, project string) (*ExecutionSnapshot, error)
	SetActive(ctx context.Context, project string, active bool) error
	SetCompleted(ctx context.Context, project string, completed bool) error
	AddTokenUsage(ctx context.Context, project string, tokens int) error
	LatestTokenUsage(ctx context.Context, project string) (int, error)
	IsActive(ctx context.Context, project string) (bool, error)
	IsCompleted(ctx context.Context, project string) (bool, error)
	Delete(ctx context.Context, project string) error
}
