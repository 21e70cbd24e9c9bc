package fishing

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errShutdown = errors.New("fishing sessions closed")

// Sessions holds one Session per bot identity for the lifetime of the process.
type Sessions struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions(opts Options) *Sessions {
	opts.applyDefaults()
	ctx, cancel := context.WithCancelCause(context.Background())

	return &Sessions{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for a bot identity, creating it on first use.
func (s *Sessions) Get(bot string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[bot]; ok {
		return sess
	}

	sess := &Session{
		bot:    bot,
		opts:   s.opts,
		logger: s.opts.Logger.With("bot", bot),
		base:   s.ctx,
		wg:     &s.wg,
	}
	s.sessions[bot] = sess
	return sess
}

// Active returns the identities with a running loop, sorted.
func (s *Sessions) Active() []string {
	s.mu.Lock()
	all := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.mu.Unlock()

	var active []string
	for _, sess := range all {
		if sess.IsActive() {
			active = append(active, sess.bot)
		}
	}
	sort.Strings(active)
	return active
}

// Close cancels every running loop and waits for them to exit.
func (s *Sessions) Close() {
	s.cancel(errShutdown)
	s.wg.Wait()
}
