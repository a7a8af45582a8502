package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/events"
	"github.com/gosuda/daksha/internal/metrics"
	"github.com/gosuda/daksha/internal/notify"
)

// ErrRunActive is returned when a project already has a live run.
var ErrRunActive = errors.New("agent: run already active") //nolint:gochecknoglobals // sentinel error

// housekeepingTimeout bounds the repository and broker calls the run
// wrapper makes after the executor's own context has ended.
const housekeepingTimeout = 5 * time.Second

// Run is one live agent execution.
type Run struct {
	ID        uuid.UUID
	Project   string
	Backend   string
	Model     string
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the run's goroutine has fully unwound.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) info() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Project:   r.Project,
		Backend:   r.Backend,
		Model:     r.Model,
		StartedAt: r.StartedAt,
	}
}

// RunInfo is the externally visible description of a live run.
type RunInfo struct {
	ID        uuid.UUID `json:"id"`
	Project   string    `json:"project"`
	Backend   string    `json:"backend"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
}

// Coordinator owns the run registry: at most one live run per project,
// each launched on its own goroutine with cooperative cancellation.
type Coordinator struct {
	registry *Registry
	catalog  *Catalog
	toolkit  Toolkit
	broker   events.Broker
	metrics  *metrics.Metrics
	notifier notify.Notifier
	timeout  time.Duration

	mu   sync.RWMutex
	runs map[string]*Run

	wg sync.WaitGroup
}

// NewCoordinator wires the coordinator. runTimeout bounds each run's
// context; zero means no deadline.
func NewCoordinator(
	registry *Registry,
	catalog *Catalog,
	toolkit Toolkit,
	broker events.Broker,
	m *metrics.Metrics,
	notifier notify.Notifier,
	runTimeout time.Duration,
) *Coordinator {
	if m == nil {
		m = metrics.New()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Coordinator{
		registry: registry,
		catalog:  catalog,
		toolkit:  toolkit,
		broker:   broker,
		metrics:  m,
		notifier: notifier,
		timeout:  runTimeout,
		runs:     make(map[string]*Run),
	}
}

// StartRun records the prompt as a user message and launches a fresh
// execution for project. At most one run per project may be live;
// ErrRunActive reports a conflict.
func (c *Coordinator) StartRun(ctx context.Context, project, prompt, model string) (*RunInfo, error) {
	backendName, err := c.catalog.Resolve(model)
	if err != nil {
		return nil, fmt.Errorf("agent.Coordinator.StartRun: %w", err)
	}

	executor, err := c.registry.Create(backendName, model, c.toolkit)
	if err != nil {
		return nil, fmt.Errorf("agent.Coordinator.StartRun: %w", err)
	}

	run, err := c.register(project, backendName, model)
	if err != nil {
		return nil, fmt.Errorf("agent.Coordinator.StartRun: %w", err)
	}

	if prompt != "" {
		if err := c.toolkit.Messages.Append(ctx, project, domain.NewUserMessage(prompt)); err != nil {
			run.cancel()
			c.deregister(run)
			close(run.done)
			return nil, fmt.Errorf("agent.Coordinator.StartRun: record prompt: %w", err)
		}
	}

	c.launch(run, func(runCtx context.Context) error {
		return executor.Execute(runCtx, project, prompt)
	})

	info := run.info()
	return &info, nil
}

// ContinueRun records the user message and, when the previous run has
// finished, resumes execution with it. It reports whether a run was
// launched; a message sent mid-run is recorded and picked up from the
// conversation log by the live executor.
func (c *Coordinator) ContinueRun(ctx context.Context, project, message, model string) (bool, error) {
	if err := c.toolkit.Messages.Append(ctx, project, domain.NewUserMessage(message)); err != nil {
		return false, fmt.Errorf("agent.Coordinator.ContinueRun: %w", err)
	}

	completed, err := c.toolkit.States.IsCompleted(ctx, project)
	if err != nil {
		return false, fmt.Errorf("agent.Coordinator.ContinueRun: %w", err)
	}
	if !completed {
		return false, nil
	}

	backendName, err := c.catalog.Resolve(model)
	if err != nil {
		return false, fmt.Errorf("agent.Coordinator.ContinueRun: %w", err)
	}
	executor, err := c.registry.Create(backendName, model, c.toolkit)
	if err != nil {
		return false, fmt.Errorf("agent.Coordinator.ContinueRun: %w", err)
	}

	run, err := c.register(project, backendName, model)
	if err != nil {
		// Lost the race against another caller; the message is on the
		// record either way.
		if errors.Is(err, ErrRunActive) {
			return false, nil
		}
		return false, fmt.Errorf("agent.Coordinator.ContinueRun: %w", err)
	}

	c.launch(run, func(runCtx context.Context) error {
		return executor.Resume(runCtx, project, message)
	})

	return true, nil
}

// Running reports whether project has a live run.
func (c *Coordinator) Running(project string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.runs[project]
	return ok
}

// ActiveRun returns the live run for project, if any.
func (c *Coordinator) ActiveRun(project string) (RunInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	run, ok := c.runs[project]
	if !ok {
		return RunInfo{}, false
	}
	return run.info(), true
}

// ActiveRuns returns every live run sorted by project.
func (c *Coordinator) ActiveRuns() []RunInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]RunInfo, 0, len(c.runs))
	for _, run := range c.runs {
		infos = append(infos, run.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Project < infos[j].Project })
	return infos
}

// Cancel stops the live run for project. Cancellation is cooperative:
// the executor sees its context end and unwinds through the run wrapper.
func (c *Coordinator) Cancel(project string) error {
	c.mu.RLock()
	run, ok := c.runs[project]
	c.mu.RUnlock()

	if !ok {
		return fmt.Errorf("agent.Coordinator.Cancel(%q): %w", project, domain.ErrNotFound)
	}
	run.cancel()
	return nil
}

// Shutdown cancels every live run and waits for their goroutines to
// unwind, up to timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) {
	c.mu.RLock()
	for _, run := range c.runs {
		run.cancel()
	}
	c.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Msg("agent: shutdown timed out waiting for runs")
	}
}

func (c *Coordinator) register(project, backend, model string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.runs[project]; exists {
		return nil, ErrRunActive
	}

	runCtx := context.Background()
	var cancel context.CancelFunc
	if c.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, c.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}

	run := &Run{
		ID:        uuid.New(),
		Project:   project,
		Backend:   backend,
		Model:     model,
		StartedAt: time.Now(),
		ctx:       runCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	c.runs[project] = run
	return run, nil
}

func (c *Coordinator) deregister(run *Run) {
	c.mu.Lock()
	if current, ok := c.runs[run.Project]; ok && current.ID == run.ID {
		delete(c.runs, run.Project)
	}
	c.mu.Unlock()
}

func (c *Coordinator) launch(run *Run, fn func(ctx context.Context) error) {
	c.publishRunEvent(events.TypeRunStarted, run)
	c.metrics.RunsActive.Inc()
	c.wg.Add(1)

	log.Info().
		Str("project", run.Project).
		Str("backend", run.Backend).
		Str("model", run.Model).
		Str("run_id", run.ID.String()).
		Msg("agent: run started")

	go func() {
		defer c.wg.Done()

		err := c.invoke(run, fn)

		status := "completed"
		detail := ""
		if err != nil {
			status = "failed"
			detail = err.Error()
			log.Error().Err(err).Str("project", run.Project).Msg("agent: run failed")
			c.closeOutFailed(run.Project, err)
		} else {
			log.Info().Str("project", run.Project).Msg("agent: run completed")
		}

		c.metrics.RunsActive.Dec()
		c.metrics.RecordRun(run.Backend, status, time.Since(run.StartedAt).Seconds())

		evtType := events.TypeRunCompleted
		if err != nil {
			evtType = events.TypeRunFailed
		}
		c.publishRunEvent(evtType, run)

		notifyCtx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
		if nerr := c.notifier.RunFinished(notifyCtx, run.Project, status, detail); nerr != nil {
			log.Warn().Err(nerr).Str("project", run.Project).Msg("agent: notification failed")
		}
		cancel()

		c.deregister(run)
		close(run.done)
	}()
}

// invoke runs fn with panic recovery so a crashing executor cannot take
// the process down or leave the registry entry behind.
func (c *Coordinator) invoke(run *Run, fn func(ctx context.Context) error) (err error) {
	defer run.cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent: run panicked: %v", r)
		}
	}()
	return fn(run.ctx)
}

// closeOutFailed marks the project's latest snapshot finished with the
// run error so a crashed run never leaves the project looking active.
func (c *Coordinator) closeOutFailed(project string, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
	defer cancel()

	snap, err := c.toolkit.States.GetLatest(ctx, project)
	if err != nil {
		log.Error().Err(err).Str("project", project).Msg("agent: load latest snapshot failed")
		return
	}
	if snap == nil {
		snap = domain.NewSnapshot()
	}
	snap.Completed = true
	snap.Active = false
	snap.StatusMessage = "run failed: " + runErr.Error()

	if err := c.toolkit.States.UpdateLatest(ctx, project, snap); err != nil {
		log.Error().Err(err).Str("project", project).Msg("agent: close out failed run")
	}
}

func (c *Coordinator) publishRunEvent(typ string, run *Run) {
	ctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
	defer cancel()

	info := run.info()
	if err := events.Publish(ctx, c.broker, typ, run.Project, info); err != nil {
		log.Warn().Err(err).Str("project", run.Project).Msg("agent: publish run event failed")
	}
}
