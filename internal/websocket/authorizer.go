package websocket

import (
	"strings"
)

// TopicAuthorizer decides which notification topics a stream client may
// subscribe to.
type TopicAuthorizer struct {
	roots map[string]bool
}

func NewTopicAuthorizer(roots ...string) *TopicAuthorizer {
	a := &TopicAuthorizer{roots: make(map[string]bool, len(roots))}
	for _, r := range roots {
		a.roots[r] = true
	}
	return a
}

// CanSubscribe accepts a known root ("messages") or one of its sub-topics
// ("messages:c1").
func (a *TopicAuthorizer) CanSubscribe(topic string) bool {
	root, rest, scoped := strings.Cut(topic, ":")
	if !a.roots[root] {
		return false
	}
	return !scoped || strings.TrimSpace(rest) != ""
}
