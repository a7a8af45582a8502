package v1_test

import (
	"context"

	"github.com/gosuda/daksha/internal/agent"
	"github.com/gosuda/daksha/internal/domain"
)

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	conversations domain.ConversationRepository
	states        domain.StateRepository
}

func (m *mockDataStore) Conversations() domain.ConversationRepository { return m.conversations }
func (m *mockDataStore) States() domain.StateRepository               { return m.states }

// ---------------------------------------------------------------------------
// Mock ConversationRepository
// ---------------------------------------------------------------------------

type mockConversationRepo struct {
	createProjectFunc   func(ctx context.Context, project string) error
	deleteProjectFunc   func(ctx context.Context, project string) error
	listProjectsFunc    func(ctx context.Context) ([]string, error)
	appendFunc          func(ctx context.Context, project string, msg *domain.Message) error
	getAllFunc          func(ctx context.Context, project string) ([]*domain.Message, error)
	latestFromAgentFunc func(ctx context.Context, project string) (*domain.Message, error)
	latestFromUserFunc  func(ctx context.Context, project string) (*domain.Message, error)
	lastIsFromUserFunc  func(ctx context.Context, project string) (bool, error)
}

func (m *mockConversationRepo) CreateProject(ctx context.Context, project string) error {
	return m.createProjectFunc(ctx, project)
}

func (m *mockConversationRepo) DeleteProject(ctx context.Context, project string) error {
	return m.deleteProjectFunc(ctx, project)
}

func (m *mockConversationRepo) ListProjects(ctx context.Context) ([]string, error) {
	return m.listProjectsFunc(ctx)
}

func (m *mockConversationRepo) Append(ctx context.Context, project string, msg *domain.Message) error {
	return m.appendFunc(ctx, project, msg)
}

func (m *mockConversationRepo) GetAll(ctx context.Context, project string) ([]*domain.Message, error) {
	return m.getAllFunc(ctx, project)
}

func (m *mockConversationRepo) LatestFromAgent(ctx context.Context, project string) (*domain.Message, error) {
	return m.latestFromAgentFunc(ctx, project)
}

func (m *mockConversationRepo) LatestFromUser(ctx context.Context, project string) (*domain.Message, error) {
	return m.latestFromUserFunc(ctx, project)
}

func (m *mockConversationRepo) LastIsFromUser(ctx context.Context, project string) (bool, error) {
	return m.lastIsFromUserFunc(ctx, project)
}

// ---------------------------------------------------------------------------
// Mock StateRepository
// ---------------------------------------------------------------------------

type mockStateRepo struct {
	appendFunc           func(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error
	updateLatestFunc     func(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error
	getAllFunc           func(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error)
	getLatestFunc        func(ctx context.Context, project string) (*domain.ExecutionSnapshot, error)
	setActiveFunc        func(ctx context.Context, project string, active bool) error
	setCompletedFunc     func(ctx context.Context, project string, completed bool) error
	addTokenUsageFunc    func(ctx context.Context, project string, tokens int) error
	latestTokenUsageFunc func(ctx context.Context, project string) (int, error)
	isActiveFunc         func(ctx context.Context, project string) (bool, error)
	isCompletedFunc      func(ctx context.Context, project string) (bool, error)
	deleteFunc           func(ctx context.Context, project string) error
}

func (m *mockStateRepo) Append(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	return m.appendFunc(ctx, project, snap)
}

func (m *mockStateRepo) UpdateLatest(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	return m.updateLatestFunc(ctx, project, snap)
}

func (m *mockStateRepo) GetAll(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error) {
	return m.getAllFunc(ctx, project)
}

func (m *mockStateRepo) GetLatest(ctx context.Context, project string) (*domain.ExecutionSnapshot, error) {
	return m.getLatestFunc(ctx, project)
}

func (m *mockStateRepo) SetActive(ctx context.Context, project string, active bool) error {
	return m.setActiveFunc(ctx, project, active)
}

func (m *mockStateRepo) SetCompleted(ctx context.Context, project string, completed bool) error {
	return m.setCompletedFunc(ctx, project, completed)
}

func (m *mockStateRepo) AddTokenUsage(ctx context.Context, project string, tokens int) error {
	return m.addTokenUsageFunc(ctx, project, tokens)
}

func (m *mockStateRepo) LatestTokenUsage(ctx context.Context, project string) (int, error) {
	return m.latestTokenUsageFunc(ctx, project)
}

func (m *mockStateRepo) IsActive(ctx context.Context, project string) (bool, error) {
	return m.isActiveFunc(ctx, project)
}

func (m *mockStateRepo) IsCompleted(ctx context.Context, project string) (bool, error) {
	return m.isCompletedFunc(ctx, project)
}

func (m *mockStateRepo) Delete(ctx context.Context, project string) error {
	return m.deleteFunc(ctx, project)
}

// ---------------------------------------------------------------------------
// Mock RunCoordinator
// ---------------------------------------------------------------------------

type mockRunCoordinator struct {
	startRunFunc    func(ctx context.Context, project, prompt, model string) (*agent.RunInfo, error)
	continueRunFunc func(ctx context.Context, project, message, model string) (bool, error)
	runningFunc     func(project string) bool
	activeRunFunc   func(project string) (agent.RunInfo, bool)
	activeRunsFunc  func() []agent.RunInfo
	cancelFunc      func(project string) error
}

func (m *mockRunCoordinator) StartRun(ctx context.Context, project, prompt, model string) (*agent.RunInfo, error) {
	return m.startRunFunc(ctx, project, prompt, model)
}

func (m *mockRunCoordinator) ContinueRun(ctx context.Context, project, message, model string) (bool, error) {
	return m.continueRunFunc(ctx, project, message, model)
}

func (m *mockRunCoordinator) Running(project string) bool {
	return m.runningFunc(project)
}

func (m *mockRunCoordinator) ActiveRun(project string) (agent.RunInfo, bool) {
	return m.activeRunFunc(project)
}

func (m *mockRunCoordinator) ActiveRuns() []agent.RunInfo {
	return m.activeRunsFunc()
}

func (m *mockRunCoordinator) Cancel(project string) error {
	return m.cancelFunc(project)
}

// ---------------------------------------------------------------------------
// Mock ProjectArchiver
// ---------------------------------------------------------------------------

type mockArchiver struct {
	zipProjectFunc    func(project string) (string, error)
	transcriptPDFFunc func(ctx context.Context, project string) (string, error)
}

func (m *mockArchiver) ZipProject(project string) (string, error) {
	return m.zipProjectFunc(project)
}

func (m *mockArchiver) TranscriptPDF(ctx context.Context, project string) (string, error) {
	return m.transcriptPDFFunc(ctx, project)
}

// ---------------------------------------------------------------------------
// Mock ModelCatalog and TokenCounter
// ---------------------------------------------------------------------------

type mockCatalog struct {
	modelsFunc func() []agent.Model
}

func (m *mockCatalog) Models() []agent.Model { return m.modelsFunc() }

type mockTokenCounter struct {
	countFunc func(text string) (int, error)
}

func (m *mockTokenCounter) Count(text string) (int, error) { return m.countFunc(text) }
