package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/events"
	"github.com/gosuda/daksha/internal/metrics"
	"github.com/gosuda/daksha/internal/store/sqlite"
)

// --- executors ---

// scriptedExecutor replies with a fixed message and closes the run out,
// the way a well-behaved backend would.
type scriptedExecutor struct {
	tk    agent.Toolkit
	reply string

	mu      sync.Mutex
	execN   int
	resumeN int
}

func (s *scriptedExecutor) Execute(ctx context.Context, project, _ string) error {
	s.mu.Lock()
	s.execN++
	s.mu.Unlock()
	return s.finish(ctx, project)
}

func (s *scriptedExecutor) Resume(ctx context.Context, project, _ string) error {
	s.mu.Lock()
	s.resumeN++
	s.mu.Unlock()
	return s.finish(ctx, project)
}

func (s *scriptedExecutor) finish(ctx context.Context, project string) error {
	if err := s.tk.Messages.Append(ctx, project, domain.NewAgentMessage(s.reply)); err != nil {
		return err
	}
	snap := domain.NewSnapshot()
	snap.Completed = true
	snap.Active = false
	snap.StatusMessage = "Completed"
	return s.tk.States.Append(ctx, project, snap)
}

func (s *scriptedExecutor) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execN, s.resumeN
}

// blockingExecutor parks until released or cancelled.
type blockingExecutor struct {
	release chan struct{}
}

func (b *blockingExecutor) Execute(ctx context.Context, _, _ string) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *blockingExecutor) Resume(ctx context.Context, project, message string) error {
	return b.Execute(ctx, project, message)
}

type failingExecutor struct {
	err error
}

func (f *failingExecutor) Execute(context.Context, string, string) error { return f.err }
func (f *failingExecutor) Resume(context.Context, string, string) error  { return f.err }

type panickyExecutor struct{}

func (panickyExecutor) Execute(context.Context, string, string) error { panic("executor bug") }
func (panickyExecutor) Resume(context.Context, string, string) error  { panic("executor bug") }

// --- notifier recorder ---

type notice struct {
	project string
	status  string
	detail  string
}

type notifyRecorder struct {
	mu      sync.Mutex
	notices []notice
}

func (n *notifyRecorder) RunFinished(_ context.Context, project, status, detail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{project: project, status: status, detail: detail})
	return nil
}

func (n *notifyRecorder) last(t *testing.T) notice {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.notices)
	return n.notices[len(n.notices)-1]
}

// --- harness ---

type coordinatorHarness struct {
	coord    *agent.Coordinator
	store    *sqlite.Store
	broker   *events.MemoryBroker
	notifier *notifyRecorder
}

func newHarness(t *testing.T, factory agent.Factory, runTimeout time.Duration) *coordinatorHarness {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })

	registry := agent.NewRegistry()
	registry.Register("openai", factory)

	catalog := agent.NewCatalog(
		agent.Model{Name: "gpt-4o", Backend: "openai", ContextWindow: 128000},
		agent.Model{Name: "ghost-model", Backend: "ghost", ContextWindow: 1},
	)

	notifier := &notifyRecorder{}
	tk := agent.Toolkit{States: store.States(), Messages: store.Conversations()}
	coord := agent.NewCoordinator(registry, catalog, tk, broker, metrics.New(), notifier, runTimeout)

	return &coordinatorHarness{coord: coord, store: store, broker: broker, notifier: notifier}
}

func scriptedFactory(exec *scriptedExecutor) agent.Factory {
	return func(_ string, tk agent.Toolkit) (agent.Executor, error) {
		exec.tk = tk
		return exec, nil
	}
}

func staticFactory(exec agent.Executor) agent.Factory {
	return func(string, agent.Toolkit) (agent.Executor, error) {
		return exec, nil
	}
}

func waitIdle(t *testing.T, c *agent.Coordinator, project string) {
	t.Helper()
	require.Eventually(t, func() bool { return !c.Running(project) },
		3*time.Second, 10*time.Millisecond, "run for %s did not finish", project)
}

// --- tests ---

func TestCoordinator_StartRun_EndToEnd(t *testing.T) {
	exec := &scriptedExecutor{reply: "hi there"}
	h := newHarness(t, scriptedFactory(exec), 0)
	ctx := context.Background()

	require.NoError(t, h.store.Conversations().CreateProject(ctx, "Demo"))

	completed, err := h.store.States().IsCompleted(ctx, "Demo")
	require.NoError(t, err)
	assert.False(t, completed, "a project with no state log is not completed")

	info, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "Demo", info.Project)
	assert.Equal(t, "openai", info.Backend)
	assert.Equal(t, "gpt-4o", info.Model)

	waitIdle(t, h.coord, "Demo")

	msgs, err := h.store.Conversations().GetAll(ctx, "Demo")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].FromAgent)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.True(t, msgs[1].FromAgent)
	assert.Equal(t, "hi there", msgs[1].Text)

	completed, err = h.store.States().IsCompleted(ctx, "Demo")
	require.NoError(t, err)
	assert.True(t, completed)

	got := h.notifier.last(t)
	assert.Equal(t, "Demo", got.project)
	assert.Equal(t, "completed", got.status)
}

func TestCoordinator_StartRun_ConflictWhileActive(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "first", "gpt-4o")
	require.NoError(t, err)
	assert.True(t, h.coord.Running("Demo"))

	_, err = h.coord.StartRun(ctx, "Demo", "second", "gpt-4o")
	require.ErrorIs(t, err, agent.ErrRunActive)

	close(blocking.release)
	waitIdle(t, h.coord, "Demo")

	// The losing attempt never put its prompt on the record.
	msgs, err := h.store.Conversations().GetAll(ctx, "Demo")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "first", msgs[0].Text)
}

func TestCoordinator_StartRun_UnknownModel(t *testing.T) {
	h := newHarness(t, staticFactory(&failingExecutor{}), 0)

	_, err := h.coord.StartRun(context.Background(), "Demo", "hello", "made-up")
	require.ErrorIs(t, err, agent.ErrUnknownModel)
}

func TestCoordinator_StartRun_UnregisteredBackend(t *testing.T) {
	h := newHarness(t, staticFactory(&failingExecutor{}), 0)

	_, err := h.coord.StartRun(context.Background(), "Demo", "hello", "ghost-model")
	require.ErrorIs(t, err, agent.ErrUnknownBackend)
}

func TestCoordinator_ContinueRun_FreshProjectOnlyRecords(t *testing.T) {
	exec := &scriptedExecutor{reply: "hi there"}
	h := newHarness(t, scriptedFactory(exec), 0)
	ctx := context.Background()

	launched, err := h.coord.ContinueRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	assert.False(t, launched, "no finished run to resume")

	msgs, err := h.store.Conversations().GetAll(ctx, "Demo")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)

	_, resumes := exec.counts()
	assert.Zero(t, resumes)
}

func TestCoordinator_ContinueRun_ResumesCompletedProject(t *testing.T) {
	exec := &scriptedExecutor{reply: "picking it back up"}
	h := newHarness(t, scriptedFactory(exec), 0)
	ctx := context.Background()

	require.NoError(t, h.store.States().SetCompleted(ctx, "Demo", true))

	launched, err := h.coord.ContinueRun(ctx, "Demo", "one more thing", "gpt-4o")
	require.NoError(t, err)
	assert.True(t, launched)

	waitIdle(t, h.coord, "Demo")

	_, resumes := exec.counts()
	assert.Equal(t, 1, resumes)

	msgs, err := h.store.Conversations().GetAll(ctx, "Demo")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one more thing", msgs[0].Text)
	assert.Equal(t, "picking it back up", msgs[1].Text)
}

func TestCoordinator_ContinueRun_LosesRegistrationRace(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 0)
	ctx := context.Background()

	// Completed on the log, but another run is already registered.
	require.NoError(t, h.store.States().SetCompleted(ctx, "Demo", true))
	_, err := h.coord.StartRun(ctx, "Demo", "", "gpt-4o")
	require.NoError(t, err)

	launched, err := h.coord.ContinueRun(ctx, "Demo", "while busy", "gpt-4o")
	require.NoError(t, err)
	assert.False(t, launched)

	msgs, err := h.store.Conversations().GetAll(ctx, "Demo")
	require.NoError(t, err)
	require.Len(t, msgs, 1, "the message still lands on the record")
	assert.Equal(t, "while busy", msgs[0].Text)

	close(blocking.release)
	waitIdle(t, h.coord, "Demo")
}

func TestCoordinator_RunFailureClosesOutSnapshot(t *testing.T) {
	h := newHarness(t, staticFactory(&failingExecutor{err: errors.New("model unreachable")}), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	waitIdle(t, h.coord, "Demo")

	snap, err := h.store.States().GetLatest(ctx, "Demo")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Completed)
	assert.False(t, snap.Active)
	assert.Contains(t, snap.StatusMessage, "model unreachable")

	got := h.notifier.last(t)
	assert.Equal(t, "failed", got.status)
	assert.Contains(t, got.detail, "model unreachable")
}

func TestCoordinator_PanicIsRecovered(t *testing.T) {
	h := newHarness(t, staticFactory(panickyExecutor{}), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	waitIdle(t, h.coord, "Demo")

	snap, err := h.store.States().GetLatest(ctx, "Demo")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Completed)
	assert.Contains(t, snap.StatusMessage, "panicked")
}

func TestCoordinator_CancelStopsRun(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)

	require.NoError(t, h.coord.Cancel("Demo"))
	waitIdle(t, h.coord, "Demo")

	snap, err := h.store.States().GetLatest(ctx, "Demo")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Completed)
	assert.Contains(t, snap.StatusMessage, "context canceled")
}

func TestCoordinator_CancelUnknownProject(t *testing.T) {
	h := newHarness(t, staticFactory(&failingExecutor{}), 0)

	err := h.coord.Cancel("ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCoordinator_RunTimeout(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 30*time.Millisecond)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	waitIdle(t, h.coord, "Demo")

	snap, err := h.store.States().GetLatest(ctx, "Demo")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Contains(t, snap.StatusMessage, "context deadline exceeded")
}

func TestCoordinator_ActiveRunsSortedByProject(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "zebra", "", "gpt-4o")
	require.NoError(t, err)
	_, err = h.coord.StartRun(ctx, "alpha", "", "gpt-4o")
	require.NoError(t, err)

	runs := h.coord.ActiveRuns()
	require.Len(t, runs, 2)
	assert.Equal(t, "alpha", runs[0].Project)
	assert.Equal(t, "zebra", runs[1].Project)

	info, ok := h.coord.ActiveRun("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", info.Project)
	_, ok = h.coord.ActiveRun("ghost")
	assert.False(t, ok)

	close(blocking.release)
	waitIdle(t, h.coord, "zebra")
	waitIdle(t, h.coord, "alpha")
	assert.Empty(t, h.coord.ActiveRuns())
}

func TestCoordinator_ShutdownCancelsRuns(t *testing.T) {
	blocking := &blockingExecutor{release: make(chan struct{})}
	h := newHarness(t, staticFactory(blocking), 0)
	ctx := context.Background()

	_, err := h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)

	h.coord.Shutdown(2 * time.Second)
	assert.False(t, h.coord.Running("Demo"))
}

func TestCoordinator_PublishesRunEvents(t *testing.T) {
	exec := &scriptedExecutor{reply: "hi there"}
	h := newHarness(t, scriptedFactory(exec), 0)
	ctx := context.Background()

	ch, cleanup, err := h.broker.Subscribe(ctx, events.ProjectChannel("Demo"))
	require.NoError(t, err)
	defer cleanup()

	_, err = h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	waitIdle(t, h.coord, "Demo")

	var types []string
	deadline := time.After(2 * time.Second)
	for len(types) < 2 {
		select {
		case payload := <-ch:
			var ev events.Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for run events; saw %v", types)
		}
	}
	assert.Equal(t, events.TypeRunStarted, types[0])
	assert.Equal(t, events.TypeRunCompleted, types[1])
}

func TestCoordinator_FailedRunPublishesRunFailed(t *testing.T) {
	h := newHarness(t, staticFactory(&failingExecutor{err: errors.New("boom")}), 0)
	ctx := context.Background()

	ch, cleanup, err := h.broker.Subscribe(ctx, events.ProjectChannel("Demo"))
	require.NoError(t, err)
	defer cleanup()

	_, err = h.coord.StartRun(ctx, "Demo", "hello", "gpt-4o")
	require.NoError(t, err)
	waitIdle(t, h.coord, "Demo")

	var types []string
	deadline := time.After(2 * time.Second)
	for len(types) < 2 {
		select {
		case payload := <-ch:
			var ev events.Event
			require.NoError(t, json.Unmarshal(payload, &ev))
			types = append(types, ev.Type)
		case <-deadline:
			t.Fatalf("timed out waiting for run events; saw %v", types)
		}
	}
	assert.Equal(t, events.TypeRunFailed, types[1])
}
