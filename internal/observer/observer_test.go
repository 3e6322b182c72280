package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishCoalescesByTopic(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	defer sub.Close()

	b.Publish(1, "messages:c1", "conversations")
	b.Publish(2, "messages:c1")
	b.Publish(3, "typing:c1")

	select {
	case <-sub.C():
	default:
		t.Fatal("expected a signal")
	}
	assert.Equal(t, []Change{
		{Topic: "messages:c1", Version: 2},
		{Topic: "conversations", Version: 1},
		{Topic: "typing:c1", Version: 3},
	}, sub.Drain())
	assert.Empty(t, sub.Drain())
}

func TestSubscribeFilters(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("messages")
	defer sub.Close()

	b.Publish(1, "messages:c1", "messagesx", "conversations", "messages")
	changes := sub.Drain()
	require.Len(t, changes, 2)
	assert.Equal(t, "messages:c1", changes[0].Topic)
	assert.Equal(t, "messages", changes[1].Topic)
}

func TestCloseStopsDelivery(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe()
	require.Equal(t, 1, b.Len())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, b.Len())

	b.Publish(1, "conversations")
	assert.Empty(t, sub.Drain())
}
