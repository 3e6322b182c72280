// Package presence tracks the online status of remote users as reported by
// the transport. It keeps only the latest entry per user.
package presence

import (
	"sort"
	"sync"
	"time"

	"marketplace-chat/internal/observer"
)

// Status is a user's presence state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline:
		return true
	}
	return false
}

// Topic is the observer topic root; per-user changes publish "presence:<userID>".
const Topic = "presence"

func UserTopic(userID string) string { return Topic + ":" + userID }

// Entry is the presence state of one user.
type Entry struct {
	UserID    string    `json:"user_id"`
	Status    Status    `json:"status"`
	LastSeen  time.Time `json:"last_seen,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e Entry) IsOnline() bool {
	return e.Status == StatusOnline
}

type Tracker struct {
	mu      sync.RWMutex
	entries map[string]Entry
	version uint64
	broker  *observer.Broker
	clock   func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]Entry),
		broker:  observer.NewBroker(),
		clock:   time.Now,
	}
}

// WithClock replaces time.Now and returns t.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// SetPresence records status for userID as of now.
func (t *Tracker) SetPresence(userID string, status Status) bool {
	return t.Apply(userID, status, t.clock())
}

// Apply records status for userID as of at. Updates older than the current
// entry are ignored, so the last write by timestamp wins. It reports whether
// the entry changed.
func (t *Tracker) Apply(userID string, status Status, at time.Time) bool {
	if userID == "" || !status.Valid() {
		return false
	}
	if at.IsZero() {
		at = t.clock()
	}

	t.mu.Lock()
	prev, known := t.entries[userID]
	if known && at.Before(prev.UpdatedAt) {
		t.mu.Unlock()
		return false
	}
	next := Entry{UserID: userID, Status: status, LastSeen: prev.LastSeen, UpdatedAt: at}
	if status == StatusOffline && (!known || prev.Status != StatusOffline) {
		next.LastSeen = at
	}
	if known && prev.Status == next.Status && prev.LastSeen.Equal(next.LastSeen) {
		t.entries[userID] = next
		t.mu.Unlock()
		return false
	}
	t.entries[userID] = next
	t.version++
	version := t.version
	t.mu.Unlock()

	t.broker.Publish(version, UserTopic(userID))
	return true
}

func (t *Tracker) Get(userID string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[userID]
	return e, ok
}

// IsOnline reports false for unknown users.
func (t *Tracker) IsOnline(userID string) bool {
	e, ok := t.Get(userID)
	return ok && e.IsOnline()
}

// Snapshot returns every known entry ordered by user id.
func (t *Tracker) Snapshot() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Online returns the ids of users currently online.
func (t *Tracker) Online() []string {
	var ids []string
	for _, e := range t.Snapshot() {
		if e.IsOnline() {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}

// Subscribe observes presence changes. With no user ids every change is delivered.
func (t *Tracker) Subscribe(userIDs ...string) *observer.Subscription {
	if len(userIDs) == 0 {
		return t.broker.Subscribe(Topic)
	}
	topics := make([]string, len(userIDs))
	for i, id := range userIDs {
		topics[i] = UserTopic(id)
	}
	return t.broker.Subscribe(topics...)
}
