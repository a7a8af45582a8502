// Package notify pushes run lifecycle notices to external channels.
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Notifier receives a notice when an agent run finishes.
type Notifier interface {
	RunFinished(ctx context.Context, project, status, detail string) error
}

// Nop discards every notice.
type Nop struct{}

var _ Notifier = Nop{} //nolint:gochecknoglobals // compile-time check

func (Nop) RunFinished(context.Context, string, string, string) error {
	return nil
}

// Multi fans each notice out to every registered notifier. Delivery is
// best-effort: failures are logged and the remaining notifiers still run.
type Multi struct {
	notifiers []Notifier
}

var _ Notifier = (*Multi)(nil) //nolint:gochecknoglobals // compile-time check

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) RunFinished(ctx context.Context, project, status, detail string) error {
	for _, n := range m.notifiers {
		if err := n.RunFinished(ctx, project, status, detail); err != nil {
			log.Warn().Err(err).Str("project", project).Msg("notify: delivery failed")
		}
	}
	return nil
}

// FormatNotice renders the notice text shared by all notifiers.
func FormatNotice(project, status, detail string) string {
	text := fmt.Sprintf("*%s* run %s", project, status)
	if detail != "" {
		text += ": " + detail
	}
	return text
}
