// Package observer fans out coalesced change notifications to in-process
// subscribers. A notification only says "topic X changed at version V";
// subscribers read the latest snapshot from the owning store.
package observer

import (
	"strings"
	"sync"
)

// Change is one coalesced notification.
type Change struct {
	Topic   string `json:"topic"`
	Version uint64 `json:"version"`
}

// Broker keeps the set of live subscriptions.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]*Subscription
	nextID int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*Subscription)}
}

// Subscribe registers interest in the given topic filters. A filter matches a
// topic equal to it or any "filter:..." sub-topic; no filters means everything.
func (b *Broker) Subscribe(filters ...string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		broker:  b,
		filters: append([]string(nil), filters...),
		index:   make(map[string]int),
		signal:  make(chan struct{}, 1),
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish records the change on every matching subscription. It never blocks.
func (b *Broker) Publish(version uint64, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		for _, t := range topics {
			if sub.matches(t) {
				sub.push(Change{Topic: t, Version: version})
			}
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) remove(id int) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Subscription buffers changes until drained. Repeated changes of the same
// topic collapse into one entry carrying the latest version.
type Subscription struct {
	id      int
	broker  *Broker
	filters []string

	mu      sync.Mutex
	pending []Change
	index   map[string]int
	signal  chan struct{}
	closed  bool
}

// C is signalled whenever changes are waiting to be drained.
func (s *Subscription) C() <-chan struct{} {
	return s.signal
}

// Drain returns and clears the pending changes in first-seen order.
func (s *Subscription) Drain() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	s.index = make(map[string]int)
	return out
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.broker.remove(s.id)
}

func (s *Subscription) matches(topic string) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if topic == f || strings.HasPrefix(topic, f+":") {
			return true
		}
	}
	return false
}

func (s *Subscription) push(c Change) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if i, ok := s.index[c.Topic]; ok {
		s.pending[i].Version = c.Version
	} else {
		s.index[c.Topic] = len(s.pending)
		s.pending = append(s.pending, c)
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}
