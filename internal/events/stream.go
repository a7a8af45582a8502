package events

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/daksha/internal/domain"
	"github.com/gosuda/daksha/internal/metrics"
)

// StateStream wraps a StateRepository and publishes a snapshot event after
// every successful mutation, so streaming clients see what pollers would.
// Publishing is best-effort; a broker failure never fails the write.
type StateStream struct {
	repo    domain.StateRepository
	broker  Broker
	metrics *metrics.Metrics
}

var _ domain.StateRepository = (*StateStream)(nil)

func NewStateStream(repo domain.StateRepository, broker Broker, m *metrics.Metrics) *StateStream {
	return &StateStream{repo: repo, broker: broker, metrics: m}
}

func (s *StateStream) Append(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	if err := s.repo.Append(ctx, project, snap); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SnapshotsTotal.Inc()
	}
	s.publish(ctx, project, snap)
	return nil
}

func (s *StateStream) UpdateLatest(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	if err := s.repo.UpdateLatest(ctx, project, snap); err != nil {
		return err
	}
	s.publish(ctx, project, snap)
	return nil
}

func (s *StateStream) SetActive(ctx context.Context, project string, active bool) error {
	if err := s.repo.SetActive(ctx, project, active); err != nil {
		return err
	}
	s.publishLatest(ctx, project)
	return nil
}

func (s *StateStream) SetCompleted(ctx context.Context, project string, completed bool) error {
	if err := s.repo.SetCompleted(ctx, project, completed); err != nil {
		return err
	}
	s.publishLatest(ctx, project)
	return nil
}

func (s *StateStream) AddTokenUsage(ctx context.Context, project string, tokens int) error {
	if err := s.repo.AddTokenUsage(ctx, project, tokens); err != nil {
		return err
	}
	s.publishLatest(ctx, project)
	return nil
}

func (s *StateStream) Delete(ctx context.Context, project string) error {
	return s.repo.Delete(ctx, project)
}

func (s *StateStream) GetAll(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error) {
	return s.repo.GetAll(ctx, project)
}

func (s *StateStream) GetLatest(ctx context.Context, project string) (*domain.ExecutionSnapshot, error) {
	return s.repo.GetLatest(ctx, project)
}

func (s *StateStream) LatestTokenUsage(ctx context.Context, project string) (int, error) {
	return s.repo.LatestTokenUsage(ctx, project)
}

func (s *StateStream) IsActive(ctx context.Context, project string) (bool, error) {
	return s.repo.IsActive(ctx, project)
}

func (s *StateStream) IsCompleted(ctx context.Context, project string) (bool, error) {
	return s.repo.IsCompleted(ctx, project)
}

func (s *StateStream) publish(ctx context.Context, project string, snap *domain.ExecutionSnapshot) {
	if err := Publish(ctx, s.broker, TypeSnapshot, project, snap); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("events.StateStream: publish failed")
	}
}

func (s *StateStream) publishLatest(ctx context.Context, project string) {
	snap, err := s.repo.GetLatest(ctx, project)
	if err != nil || snap == nil {
		return
	}
	s.publish(ctx, project, snap)
}

// MessageStream wraps a ConversationRepository and publishes a message event
// after every successful append.
type MessageStream struct {
	repo    domain.ConversationRepository
	broker  Broker
	metrics *metrics.Metrics
}

var _ domain.ConversationRepository = (*MessageStream)(nil)

func NewMessageStream(repo domain.ConversationRepository, broker Broker, m *metrics.Metrics) *MessageStream {
	return &MessageStream{repo: repo, broker: broker, metrics: m}
}

func (s *MessageStream) Append(ctx context.Context, project string, msg *domain.Message) error {
	if err := s.repo.Append(ctx, project, msg); err != nil {
		return err
	}
	if s.metrics != nil {
		role := "user"
		if msg.FromAgent {
			role = "agent"
		}
		s.metrics.RecordMessage(role)
	}
	if err := Publish(ctx, s.broker, TypeMessage, project, msg); err != nil {
		log.Warn().Err(err).Str("project", project).Msg("events.MessageStream: publish failed")
	}
	return nil
}

func (s *MessageStream) CreateProject(ctx context.Context, project string) error {
	return s.repo.CreateProject(ctx, project)
}

func (s *MessageStream) DeleteProject(ctx context.Context, project string) error {
	return s.repo.DeleteProject(ctx, project)
}

func (s *MessageStream) ListProjects(ctx context.Context) ([]string, error) {
	return s.repo.ListProjects(ctx)
}

func (s *MessageStream) GetAll(ctx context.Context, project string) ([]*domain.Message, error) {
	return s.repo.GetAll(ctx, project)
}

func (s *MessageStream) LatestFromAgent(ctx context.Context, project string) (*domain.Message, error) {
	return s.repo.LatestFromAgent(ctx, project)
}

func (s *MessageStream) LatestFromUser(ctx context.Context, project string) (*domain.Message, error) {
	return s.repo.LatestFromUser(ctx, project)
}

func (s *MessageStream) LastIsFromUser(ctx context.Context, project string) (bool, error) {
	return s.repo.LastIsFromUser(ctx, project)
}
