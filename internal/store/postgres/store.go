package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/daksha/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	project    TEXT PRIMARY KEY,
	messages   JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agent_states (
	project    TEXT PRIMARY KEY,
	states     JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store is the PostgreSQL storage driver. Layout matches the sqlite driver:
// one row per project holding the whole log as JSON. Mutations lock the row
// (SELECT ... FOR UPDATE) so concurrent read-modify-write cycles serialize
// per project across server instances.
type Store struct {
	pool          *pgxpool.Pool
	conversations *ConversationRepo
	states        *StateRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	_, err = pool.Exec(ctx, schema)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: migrate: %w", err)
	}

	return &Store{
		pool:          pool,
		conversations: NewConversationRepo(pool),
		states:        NewStateRepo(pool),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Conversations() domain.ConversationRepository { return s.conversations }
func (s *Store) States() domain.StateRepository               { return s.states }
