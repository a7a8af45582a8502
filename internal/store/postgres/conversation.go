package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/daksha/internal/domain"
)

// ConversationRepo implements domain.ConversationRepository on a single
// conversations row per project.
type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) CreateProject(ctx context.Context, project string) error {
	if err := domain.ValidateProjectName(project); err != nil {
		return fmt.Errorf("conversationRepo.CreateProject: %w", err)
	}

	// No-op when the project already exists.
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (project) VALUES ($1) ON CONFLICT (project) DO NOTHING`,
		project,
	)
	if err != nil {
		return fmt.Errorf("conversationRepo.CreateProject: %w", err)
	}

	return nil
}

func (r *ConversationRepo) DeleteProject(ctx context.Context, project string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE project = $1`, project)
	if err != nil {
		return fmt.Errorf("conversationRepo.DeleteProject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversationRepo.DeleteProject: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ConversationRepo) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT project FROM conversations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.ListProjects: %w", err)
	}
	defer rows.Close()

	var projects []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("conversationRepo.ListProjects: scan: %w", err)
		}
		projects = append(projects, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("conversationRepo.ListProjects: rows: %w", err)
	}

	return projects, nil
}

func (r *ConversationRepo) Append(ctx context.Context, project string, msg *domain.Message) error {
	err := r.withMessages(ctx, project, func(msgs []*domain.Message) []*domain.Message {
		return append(msgs, msg)
	})
	if err != nil {
		return fmt.Errorf("conversationRepo.Append: %w", err)
	}

	return nil
}

func (r *ConversationRepo) GetAll(ctx context.Context, project string) ([]*domain.Message, error) {
	msgs, ok, err := r.load(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.GetAll: %w", err)
	}
	if !ok {
		return nil, nil
	}

	return msgs, nil
}

func (r *ConversationRepo) LatestFromAgent(ctx context.Context, project string) (*domain.Message, error) {
	msg, err := r.latestFrom(ctx, project, true)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.LatestFromAgent: %w", err)
	}
	return msg, nil
}

func (r *ConversationRepo) LatestFromUser(ctx context.Context, project string) (*domain.Message, error) {
	msg, err := r.latestFrom(ctx, project, false)
	if err != nil {
		return nil, fmt.Errorf("conversationRepo.LatestFromUser: %w", err)
	}
	return msg, nil
}

func (r *ConversationRepo) LastIsFromUser(ctx context.Context, project string) (bool, error) {
	msgs, _, err := r.load(ctx, project)
	if err != nil {
		return false, fmt.Errorf("conversationRepo.LastIsFromUser: %w", err)
	}
	if len(msgs) == 0 {
		return false, nil
	}

	return !msgs[len(msgs)-1].FromAgent, nil
}

func (r *ConversationRepo) latestFrom(ctx context.Context, project string, fromAgent bool) (*domain.Message, error) {
	msgs, _, err := r.load(ctx, project)
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].FromAgent == fromAgent {
			return msgs[i], nil
		}
	}

	return nil, nil
}

func (r *ConversationRepo) load(ctx context.Context, project string) ([]*domain.Message, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT messages FROM conversations WHERE project = $1`, project,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var msgs []*domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, false, err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	return msgs, true, nil
}

// withMessages runs a read-modify-write cycle under a row lock. The row is
// created first so the lock always has a target.
func (r *ConversationRepo) withMessages(ctx context.Context, project string, mutate func([]*domain.Message) []*domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (project) VALUES ($1) ON CONFLICT (project) DO NOTHING`,
		project,
	)
	if err != nil {
		return err
	}

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT messages FROM conversations WHERE project = $1 FOR UPDATE`, project,
	).Scan(&raw)
	if err != nil {
		return err
	}

	var msgs []*domain.Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return err
	}

	msgs = mutate(msgs)

	raw, err = json.Marshal(msgs)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE conversations SET messages = $1, updated_at = now() WHERE project = $2`,
		raw, project,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
