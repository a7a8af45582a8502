package notify_test

import (
	"context"
	"errors"
	"testing"

	slacklib "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/daksha/internal/notify"
)

// --- mocks ---

type sentNotice struct {
	project string
	status  string
	detail  string
}

type mockNotifier struct {
	notices []sentNotice
	err     error
}

func (m *mockNotifier) RunFinished(_ context.Context, project, status, detail string) error {
	if m.err != nil {
		return m.err
	}
	m.notices = append(m.notices, sentNotice{project: project, status: status, detail: detail})
	return nil
}

type mockSlackAPI struct {
	channel string
	opts    []slacklib.MsgOption
	err     error
}

func (m *mockSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error) {
	m.channel = channelID
	m.opts = options
	if m.err != nil {
		return "", "", m.err
	}
	return channelID, "1234567890.123456", nil
}

// --- tests ---

func TestFormatNotice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "*Demo* run completed", notify.FormatNotice("Demo", "completed", ""))
	assert.Equal(t, "*Demo* run failed: model unreachable",
		notify.FormatNotice("Demo", "failed", "model unreachable"))
}

func TestSlack_RunFinished(t *testing.T) {
	t.Parallel()

	t.Run("posts to the configured channel", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{}
		s := notify.NewSlack(api, "C123")

		err := s.RunFinished(t.Context(), "Demo", "completed", "")

		require.NoError(t, err)
		assert.Equal(t, "C123", api.channel)
		assert.Len(t, api.opts, 1)
	})

	t.Run("wraps API errors", func(t *testing.T) {
		t.Parallel()

		api := &mockSlackAPI{err: errors.New("channel_not_found")}
		s := notify.NewSlack(api, "C404")

		err := s.RunFinished(t.Context(), "Demo", "failed", "boom")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel_not_found")
	})
}

func TestMulti_RunFinished(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every notifier", func(t *testing.T) {
		t.Parallel()

		first := &mockNotifier{}
		second := &mockNotifier{}
		m := notify.NewMulti(first, second)

		err := m.RunFinished(t.Context(), "Demo", "completed", "")

		require.NoError(t, err)
		require.Len(t, first.notices, 1)
		require.Len(t, second.notices, 1)
		assert.Equal(t, "Demo", first.notices[0].project)
	})

	t.Run("keeps delivering past failures", func(t *testing.T) {
		t.Parallel()

		failing := &mockNotifier{err: errors.New("down")}
		ok := &mockNotifier{}
		m := notify.NewMulti(failing, ok)

		err := m.RunFinished(t.Context(), "Demo", "failed", "timeout")

		require.NoError(t, err)
		require.Len(t, ok.notices, 1)
		assert.Equal(t, "failed", ok.notices[0].status)
	})
}

func TestNop_RunFinished(t *testing.T) {
	t.Parallel()

	require.NoError(t, notify.Nop{}.RunFinished(t.Context(), "Demo", "completed", ""))
}
