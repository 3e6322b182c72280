package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleReaction(t *testing.T) {
	like := Reaction{MessageID: "m1", UserID: "u1", Emoji: "👍"}

	list, added := ToggleReaction(nil, like)
	require.True(t, added)
	require.Len(t, list, 1)

	other := Reaction{MessageID: "m1", UserID: "u2", Emoji: "👍"}
	list, added = ToggleReaction(list, other)
	require.True(t, added)
	require.Len(t, list, 2)

	list, added = ToggleReaction(list, like)
	assert.False(t, added)
	assert.Equal(t, []Reaction{other}, list)
}

func TestSetReactionIsIdempotent(t *testing.T) {
	r := Reaction{UserID: "u1", Emoji: "❤️"}
	list := SetReaction(nil, r, true)
	list = SetReaction(list, r, true)
	assert.Len(t, list, 1)
	assert.True(t, HasReaction(list, "u1", "❤️"))

	list = SetReaction(list, r, false)
	assert.Empty(t, list)
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	m := Message{Reactions: []Reaction{{UserID: "u1", Emoji: "a"}}}
	c := m.Clone()
	c.Reactions[0].Emoji = "b"
	assert.Equal(t, "a", m.Reactions[0].Emoji)
}

func TestBeforeBreaksTiesBySeq(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Message{Timestamp: ts, Seq: 1}
	b := Message{Timestamp: ts, Seq: 2}
	assert.True(t, a.Before(b))
	assert.False(t, b.Before(a))

	later := Message{Timestamp: ts.Add(time.Second)}
	assert.True(t, b.Before(later))
}

func TestTypeForAttachments(t *testing.T) {
	img := Attachment{Kind: KindFromMime("image/png")}
	vid := Attachment{Kind: KindFromMime("video/mp4")}
	doc := Attachment{Kind: KindFromMime("application/pdf")}

	assert.Equal(t, TypeText, TypeForAttachments(nil))
	assert.Equal(t, TypeImage, TypeForAttachments([]Attachment{img, img}))
	assert.Equal(t, TypeVideo, TypeForAttachments([]Attachment{vid}))
	assert.Equal(t, TypeFile, TypeForAttachments([]Attachment{doc}))
	assert.Equal(t, TypeFile, TypeForAttachments([]Attachment{img, vid}))
}

func TestMessageJSONOmitsUnconfirmedServerTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	local, err := json.Marshal(Message{ID: "m1", Status: StatusSending, Timestamp: ts})
	require.NoError(t, err)
	assert.NotContains(t, string(local), "server_timestamp")

	confirmed, err := json.Marshal(Message{ID: "m1", Status: StatusDelivered, Timestamp: ts, ServerTimestamp: ts})
	require.NoError(t, err)
	assert.Contains(t, string(confirmed), "server_timestamp")
}
