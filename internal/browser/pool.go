package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrPoolClosed = errors.New("browser: pool closed")

// Pool hands out sessions backed by a bounded set of pages. Pages are
// opened lazily, reused across runs, and closed when the pool shuts
// down.
type Pool struct {
	factory PageFactory
	size    int
	cfg     Config

	mu      sync.Mutex
	created int
	closed  bool

	free chan *Session
}

func NewPool(factory PageFactory, size int, cfg Config) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		factory: factory,
		size:    size,
		cfg:     cfg,
		free:    make(chan *Session, size),
	}
}

// Acquire returns an idle session, opening a new page while the pool is
// under its size limit. At the limit it blocks until a session is
// released or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	select {
	case s := <-p.free:
		return s, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.created < p.size {
		p.created++
		p.mu.Unlock()

		page, err := p.factory(ctx)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, fmt.Errorf("browser.Pool.Acquire: %w", err)
		}
		return NewSession(page, p.cfg), nil
	}
	p.mu.Unlock()

	select {
	case s := <-p.free:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("browser.Pool.Acquire: %w", ctx.Err())
	}
}

// Release puts a session back for reuse. Sessions returned after Close
// are closed instead.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = s.Close()
		return
	}

	select {
	case p.free <- s:
	default:
		_ = s.Close()
	}
}

// Close shuts down every idle session. Sessions still acquired are
// closed when they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case s := <-p.free:
			_ = s.Close()
		default:
			return nil
		}
	}
}
