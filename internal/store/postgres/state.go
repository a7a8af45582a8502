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

// StateRepo implements domain.StateRepository on a single agent_states row
// per project.
type StateRepo struct {
	pool *pgxpool.Pool
}

func NewStateRepo(pool *pgxpool.Pool) *StateRepo {
	return &StateRepo{pool: pool}
}

func (r *StateRepo) Append(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	err := r.withStack(ctx, project, func(stack []*domain.ExecutionSnapshot) []*domain.ExecutionSnapshot {
		return append(stack, snap)
	})
	if err != nil {
		return fmt.Errorf("stateRepo.Append: %w", err)
	}
	return nil
}

func (r *StateRepo) UpdateLatest(ctx context.Context, project string, snap *domain.ExecutionSnapshot) error {
	err := r.withStack(ctx, project, func(stack []*domain.ExecutionSnapshot) []*domain.ExecutionSnapshot {
		if len(stack) == 0 {
			return append(stack, snap)
		}
		stack[len(stack)-1] = snap
		return stack
	})
	if err != nil {
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
	// Absent logs delete to the same end state, so no row is not an error.
	_, err := r.pool.Exec(ctx, `DELETE FROM agent_states WHERE project = $1`, project)
	if err != nil {
		return fmt.Errorf("stateRepo.Delete: %w", err)
	}
	return nil
}

func (r *StateRepo) patchLatest(ctx context.Context, project string, patch func(*domain.ExecutionSnapshot)) error {
	return r.withStack(ctx, project, func(stack []*domain.ExecutionSnapshot) []*domain.ExecutionSnapshot {
		if len(stack) == 0 {
			stack = append(stack, domain.NewSnapshot())
		}
		patch(stack[len(stack)-1])
		return stack
	})
}

func (r *StateRepo) load(ctx context.Context, project string) ([]*domain.ExecutionSnapshot, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT states FROM agent_states WHERE project = $1`, project,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var stack []*domain.ExecutionSnapshot
	if err := json.Unmarshal(raw, &stack); err != nil {
		return nil, err
	}

	return stack, nil
}

// withStack runs a read-modify-write cycle under a row lock. The row is
// created first so the lock always has a target.
func (r *StateRepo) withStack(ctx context.Context, project string, mutate func([]*domain.ExecutionSnapshot) []*domain.ExecutionSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO agent_states (project) VALUES ($1) ON CONFLICT (project) DO NOTHING`,
		project,
	)
	if err != nil {
		return err
	}

	var raw []byte
	err = tx.QueryRow(ctx,
		`SELECT states FROM agent_states WHERE project = $1 FOR UPDATE`, project,
	).Scan(&raw)
	if err != nil {
		return err
	}

	var stack []*domain.ExecutionSnapshot
	if err := json.Unmarshal(raw, &stack); err != nil {
		return err
	}

	stack = mutate(stack)

	raw, err = json.Marshal(stack)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`UPDATE agent_states SET states = $1, updated_at = now() WHERE project = $2`,
		raw, project,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
