package domain

import (
	"context"
	"time"
)

// Message is one entry in a project's conversation log. Messages are
// immutable once appended; ordering is the append order.
type Message struct {
	FromAgent bool      `json:"from_agent"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage returns a user-authored message stamped now.
func NewUserMessage(text string) *Message {
	return &Message{FromAgent: false, Text: text, Timestamp: time.Now()}
}

// NewAgentMessage returns an agent-authored message stamped now.
func NewAgentMessage(text string) *Message {
	return &Message{FromAgent: true, Text: text, Timestamp: time.Now()}
}

// ConversationRepository stores the per-project append-only message log.
//
// Append creates the project's log implicitly when it does not exist yet.
// GetAll returns nil for an unknown project and a non-nil empty slice for a
// project that exists with no messages; no read returns an error for a
// missing project.
type ConversationRepository interface {
	CreateProject(ctx context.Context, project string) error
	DeleteProject(ctx context.Context, project string) error
	ListProjects(ctx context.Context) ([]string, error)
	Append(ctx context.Context, project string, msg *Message) error
	GetAll(ctx context.Context, project string) ([]*Message, error)
	LatestFromAgent(ctx context.Context, project string) (*Message, error)
	LatestFromUser(ctx context.Context, project string) (*Message, error)
	LastIsFromUser(ctx context.Context, project string) (bool, error)
}
