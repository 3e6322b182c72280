package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestFilterMatch(t *testing.T) {
	c := Conversation{
		ID:          "c1",
		Name:        "Vintage Lamp",
		Type:        TypeProduct,
		UnreadCount: 2,
		LastMessage: &LastMessage{Preview: "Is it still available?"},
	}
	archived := c.With(FlagArchived, true)

	tests := []struct {
		name string
		f    Filter
		c    Conversation
		want bool
	}{
		{"empty filter", Filter{}, c, true},
		{"archived hidden by default", Filter{}, archived, false},
		{"archived only", Filter{ArchivedOnly: true}, archived, true},
		{"archived only skips live", Filter{ArchivedOnly: true}, c, false},
		{"type mismatch", Filter{Type: TypeGroup}, c, false},
		{"unread only", Filter{UnreadOnly: true}, c, true},
		{"pinned only", Filter{PinnedOnly: true}, c, false},
		{"search by name", Filter{Search: "lamp"}, c, true},
		{"search by preview", Filter{Search: " AVAILABLE "}, c, true},
		{"search miss", Filter{Search: "chair"}, c, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.f.Match(tt.c))
		})
	}
}

func TestSortPinnedFirstThenActivity(t *testing.T) {
	list := []Conversation{
		{ID: "old", UpdatedAt: base},
		{ID: "new", UpdatedAt: base.Add(time.Hour)},
		{ID: "pinned", Pinned: true, UpdatedAt: base.Add(-time.Hour)},
		{ID: "msg", UpdatedAt: base, LastMessage: &LastMessage{Timestamp: base.Add(2 * time.Hour)}},
		{ID: "a-tie", UpdatedAt: base},
	}
	Sort(list)

	var ids []string
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"pinned", "msg", "new", "a-tie", "old"}, ids)
}

func TestWithTouchesOnlyOneFlag(t *testing.T) {
	c := Conversation{Muted: true}
	next := c.With(FlagPinned, true)
	assert.True(t, next.Pinned)
	assert.True(t, next.Muted)
	assert.False(t, next.Archived)
	assert.False(t, c.Pinned)
	assert.False(t, Flag("starred").Valid())
}
