package message

// Status is the delivery state of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// rank orders the forward path sending -> sent -> delivered -> read.
var rank = map[Status]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := rank[s]
	return ok
}

// CanTransition reports whether a status update from s to next is allowed.
// Forward moves are monotonic, failed is reachable only from sending, and a
// read message never changes again. Same-status updates are accepted as no-ops.
func (s Status) CanTransition(next Status) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case StatusRead:
		return false
	case StatusFailed:
		// failed -> sending only via an explicit retry, see CanRetry.
		return false
	}
	if next == StatusFailed {
		return s == StatusSending
	}
	return rank[next] > rank[s]
}

// CanRetry reports whether a manual retry may move the message back to sending.
func (s Status) CanRetry() bool {
	return s == StatusFailed
}

// IsPending reports whether the message still waits for confirmation.
func (s Status) IsPending() bool {
	return s == StatusSending
}
