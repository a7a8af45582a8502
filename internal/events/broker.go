// Package events carries project activity (new messages, snapshot changes,
// run lifecycle) from writers to streaming consumers. The broker is either
// the in-process one below or Redis pub/sub, selected by configuration.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Event types published on project channels.
const (
	TypeMessage      = "message"
	TypeSnapshot     = "snapshot"
	TypeRunStarted   = "run_started"
	TypeRunCompleted = "run_completed"
	TypeRunFailed    = "run_failed"
)

// Broker publishes and subscribes raw payloads on named channels. Subscribe
// returns a receive channel and a cleanup func; the channel closes when the
// context ends or cleanup runs.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Event is the JSON payload published on project channels.
type Event struct {
	Type      string          `json:"type"`
	Project   string          `json:"project"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ProjectChannel returns the channel name carrying a project's events.
func ProjectChannel(project string) string {
	return "project:" + project
}

// Publish marshals an Event for the given project and publishes it on the
// project's channel. data may be nil.
func Publish(ctx context.Context, b Broker, typ, project string, data any) error {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return fmt.Errorf("events.Publish: marshal data: %w", err)
		}
	}

	payload, err := json.Marshal(Event{
		Type:      typ,
		Project:   project,
		Data:      raw,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("events.Publish: marshal event: %w", err)
	}

	if err := b.Publish(ctx, ProjectChannel(project), payload); err != nil {
		return fmt.Errorf("events.Publish: %w", err)
	}

	return nil
}
