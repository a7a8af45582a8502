package notify

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"
)

// SlackAPI abstracts the subset of the Slack client used by the Slack
// notifier. This allows testing without real HTTP calls.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// Slack posts run notices to a fixed channel.
type Slack struct {
	api     SlackAPI
	channel string
}

var _ Notifier = (*Slack)(nil) //nolint:gochecknoglobals // compile-time check

func NewSlack(api SlackAPI, channel string) *Slack {
	return &Slack{api: api, channel: channel}
}

func (s *Slack) RunFinished(ctx context.Context, project, status, detail string) error {
	text := FormatNotice(project, status, detail)
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slacklib.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify.Slack.RunFinished: %w", err)
	}
	return nil
}
