package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosuda/daksha/internal/domain"
)

// ConversationRepo implements domain.ConversationRepository on a single
// conversations row per project.
type ConversationRepo struct {
	db    *sql.DB
	locks *projectLocks
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db, locks: newProjectLocks()}
}

func (r *ConversationRepo) CreateProject(ctx context.Context, project string) error {
	if err := domain.ValidateProjectName(project); err != nil {
		return fmt.Errorf("conversationRepo.CreateProject: %w", err)
	}

	// No-op when the project already exists.
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (project) VALUES (?) ON CONFLICT(project) DO NOTHING`,
		project,
	)
	if err != nil {
		return fmt.Errorf("conversationRepo.CreateProject: %w", err)
	}

	return nil
}

func (r *ConversationRepo) DeleteProject(ctx context.Context, project string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE project = ?`, project)
	if err != nil {
		return fmt.Errorf("conversationRepo.DeleteProject: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversationRepo.DeleteProject: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("conversationRepo.DeleteProject: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ConversationRepo) ListProjects(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT project FROM conversations ORDER BY created_at`)
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
	lock := r.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	msgs, _, err := r.load(ctx, project)
	if err != nil {
		return fmt.Errorf("conversationRepo.Append: %w", err)
	}
	msgs = append(msgs, msg)

	if err := r.save(ctx, project, msgs); err != nil {
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

// latestFrom scans the log backwards for the newest message of the given
// author side.
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
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT messages FROM conversations WHERE project = ?`, project,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var msgs []*domain.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, false, err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	return msgs, true, nil
}

func (r *ConversationRepo) save(ctx context.Context, project string, msgs []*domain.Message) error {
	raw, err := json.Marshal(msgs)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversations (project, messages) VALUES (?, ?)
		 ON CONFLICT(project) DO UPDATE SET messages = excluded.messages, updated_at = CURRENT_TIMESTAMP`,
		project, string(raw),
	)
	return err
}
