// Package store holds the client-side chat state: conversations, message
// threads and typing indicators. Every change goes through Dispatch, which
// runs the pure reducer under a single lock and publishes the topics that
// changed. Readers get immutable snapshots.
package store

import (
	"context"
	"sync"
	"time"

	"marketplace-chat/internal/observer"
	"marketplace-chat/pkg/logger"
)

const (
	DefaultTypingTTL         = 3 * time.Second
	DefaultMaxThreadMessages = 500
)

type Store struct {
	mu     sync.Mutex
	state  State
	broker *observer.Broker
	clock  func() time.Time
	ttl    time.Duration
	logger *logger.Logger
}

type Option func(*Store)

// WithClock replaces time.Now; tests use it to drive typing expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

func WithTypingTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxThreadMessages bounds each thread window. Zero disables eviction.
func WithMaxThreadMessages(n int) Option {
	return func(s *Store) { s.state.MaxThreadMessages = n }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(localUserID string, opts ...Option) *Store {
	s := &Store{
		state:  NewState(localUserID),
		broker: observer.NewBroker(),
		clock:  time.Now,
		ttl:    DefaultTypingTTL,
		logger: logger.NewNop(),
	}
	s.state.MaxThreadMessages = DefaultMaxThreadMessages
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("store")
	return s
}

// Dispatch applies a and returns the resulting snapshot. Observers are
// notified after the lock is released.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next, topics := Reduce(s.state, a)
	if len(topics) > 0 {
		next.Version = s.state.Version + 1
	}
	s.state = next
	s.mu.Unlock()

	if len(topics) > 0 {
		s.logger.Debugf("%s -> %v (v%d)", a.actionName(), topics, next.Version)
		s.broker.Publish(next.Version, topics...)
	}
	return next
}

// Snapshot returns the current state. Callers must not mutate it.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a change observer; see observer.Broker.Subscribe.
func (s *Store) Subscribe(topics ...string) *observer.Subscription {
	return s.broker.Subscribe(topics...)
}

func (s *Store) Now() time.Time {
	return s.clock()
}

func (s *Store) TypingTTL() time.Duration {
	return s.ttl
}

func (s *Store) LocalUserID() string {
	return s.Snapshot().LocalUserID
}

// ExpireTyping prunes typing entries older than the TTL.
func (s *Store) ExpireTyping() State {
	return s.Dispatch(ExpireTyping{Now: s.clock(), TTL: s.ttl})
}

// RunTypingSweeper prunes expired typing entries until ctx is done. Selectors
// already hide stale entries; the sweeper lets observers see them disappear.
func (s *Store) RunTypingSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 3
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireTyping()
		}
	}
}
