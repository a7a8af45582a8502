package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gosuda/daksha/internal/domain"
)

// StateRepo implements domain.StateRepository on a single agent_states row
// per project.
type StateRepo struct {
	db    *sql.DB
	locks *projectLocks
}

func NewStateRepo(db *sql.DB) *StateRepo {
	return &StateRepo{db: db, locks: newProjectLocks()}
}

func (r *StateRepo) Append(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	lock := r.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	stack, err := r.load(ctx, project)
	if err != nil {
		return fmt.Errorf("stateRepo.Append: %w", err)
	}
	stack = append(stack, snap)

	if err := r.save(ctx, project, stack); err != nil {
		return fmt.Errorf("stateRepo.Append: %w", err)
	}

	return nil
}

func (r *StateRepo) UpdateLatest(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	lock := r.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	stack, err := r.load(ctx, project)
	if err != nil {
		return fmt.Errorf("stateRepo.UpdateLatest: %w", err)
	}
	if len(stack) == 0 {
		stack = append(stack, snap)
	} else {
		stack[len(stack)-1] = snap
	}

	if err := r.save(ctx, project, stack); err != nil {
		return fmt.Errorf("stateRepo.UpdateLatest: %w", err)
	}

	return nil
}

func (r *StateRepo) GetAll(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error) {
	stack, err := r.load(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("stateRepo.GetAll: %w", err)
	}

	return stack, nil
}

func (r *StateRepo) GetLatest(ctx context.Context, project string) (*domain.ExecutionSnapshot, error) {
	stack, err := r.load(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("stateRepo.GetLatest: %w", err)
	}
	if len(stack) == 0 {
		return nil, nil
	}

	return stack[len(stack)-1], nil
}

func (r *StateRepo) SetActive(ctx context.Context, project string, active bool) error {
	err := r.patchLatest(ctx, project, func(snap *domain.ExecutionSnapshot) {
		snap.Active = active
	})
	if err != nil {
		return fmt.Errorf("stateRepo.SetActive: %w", err)
	}
	return nil
}

func (r *StateRepo) SetCompleted(ctx context.Context, project string, completed bool) error {
	err := r.patchLatest(ctx, project, func(snap *domain.ExecutionSnapshot) {
		snap.Completed = completed
	})
	if err != nil {
		return fmt.Errorf("stateRepo.SetCompleted: %w", err)
	}
	return nil
}

func (r *StateRepo) AddTokenUsage(ctx context.Context, project string, tokens int) error {
	err := r.patchLatest(ctx, project, func(snap *domain.ExecutionSnapshot) {
		snap.TokenUsage += tokens
	})
	if err != nil {
		return fmt.Errorf("stateRepo.AddTokenUsage: %w", err)
	}
	return nil
}

func (r *StateRepo) LatestTokenUsage(ctx context.Context, project string) (int, error) {
	latest, err := r.GetLatest(ctx, project)
	if err != nil {
		return 0, fmt.Errorf("stateRepo.LatestTokenUsage: %w", err)
	}
	if latest == nil {
		return 0, nil
	}

	return latest.TokenUsage, nil
}

func (r *StateRepo) IsActive(ctx context.Context, project string) (bool, error) {
	latest, err := r.GetLatest(ctx, project)
	if err != nil {
		return false, fmt.Errorf("stateRepo.IsActive: %w", err)
	}
	if latest == nil {
		return false, nil
	}

	return latest.Active, nil
}

func (r *StateRepo) IsCompleted(ctx context.Context, project string) (bool, error) {
	latest, err := r.GetLatest(ctx, project)
	if err != nil {
		return false, fmt.Errorf("stateRepo.IsCompleted: %w", err)
	}
	if latest == nil {
		return false, nil
	}

	return latest.Completed, nil
}

func (r *StateRepo) Delete(ctx context.Context, project string) error {
	lock := r.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	// Absent logs delete to the same end state, so no row is not an error.
	_, err := r.db.ExecContext(ctx, `DELETE FROM agent_states WHERE project = ?`, project)
	if err != nil {
		return fmt.Errorf("stateRepo.Delete: %w", err)
	}

	return nil
}

// patchLatest mutates the latest snapshot in place. A project with no log yet
// gets one default snapshot seeded first, so patches on fresh projects start
// from the default state.
func (r *StateRepo) patchLatest(ctx context.Context, project string, patch func(*domain.ExecutionSnapshot)) error {
	lock := r.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	stack, err := r.load(ctx, project)
	if err != nil {
		return err
	}
	if len(stack) == 0 {
		stack = append(stack, domain.NewSnapshot())
	}
	patch(stack[len(stack)-1])

	return r.save(ctx, project, stack)
}

func (r *StateRepo) load(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT states FROM agent_states WHERE project = ?`, project,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stack []*domain.ExecutionSnapshot
	if err := json.Unmarshal([]byte(raw), &stack); err != nil {
		return nil, err
	}

	return stack, nil
}

func (r *StateRepo) save(ctx context.Context, project string, stack []*domain.ExecutionSnapshot) error {
	raw, err := json.Marshal(stack)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO agent_states (project, states) VALUES (?, ?)
		 ON CONFLICT(project) DO UPDATE SET states = excluded.states, updated_at = CURRENT_TIMESTAMP`,
		project, string(raw),
	)
	return err
}
