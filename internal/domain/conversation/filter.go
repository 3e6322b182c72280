package conversation

import (
	"sort"
	"strings"
)

// Filter selects conversations for the list view. Archived conversations are
// hidden unless ArchivedOnly is set.
type Filter struct {
	Search       string `json:"search,omitempty" form:"search"`
	Type         Type   `json:"type,omitempty" form:"type"`
	UnreadOnly   bool   `json:"unread_only,omitempty" form:"unread"`
	PinnedOnly   bool   `json:"pinned_only,omitempty" form:"pinned"`
	ArchivedOnly bool   `json:"archived_only,omitempty" form:"archived"`
}

// Match reports whether c passes the filter.
func (f Filter) Match(c Conversation) bool {
	if f.ArchivedOnly != c.Archived {
		return false
	}
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.UnreadOnly && c.UnreadCount == 0 {
		return false
	}
	if f.PinnedOnly && !c.Pinned {
		return false
	}
	if q := strings.TrimSpace(strings.ToLower(f.Search)); q != "" {
		if strings.Contains(strings.ToLower(c.Name), q) {
			return true
		}
		if c.LastMessage != nil && strings.Contains(strings.ToLower(c.LastMessage.Preview), q) {
			return true
		}
		return false
	}
	return true
}

// Sort orders pinned conversations first, then by last activity descending,
// then by id so the order is total.
func Sort(list []Conversation) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Pinned != b.Pinned {
			return a.Pinned
		}
		ta, tb := a.LastActivity(), b.LastActivity()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID < b.ID
	})
}
