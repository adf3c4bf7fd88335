package security

import (
	"net/netip"
	"time"
)

// EventKind enumerates security event types.
type EventKind string

const (
	EventViolation       EventKind = "violation"
	EventAutoBlockClient EventKind = "auto_block_client"
	EventManualBlock     EventKind = "manual_block"
	EventManualUnblock   EventKind = "manual_unblock"
	EventWhitelistReject EventKind = "whitelist_reject"
	EventBlockedIP       EventKind = "blocked_ip"
	EventBlockedClient   EventKind = "blocked_client"
	EventConnectionLimit EventKind = "connection_limit"
)

// Event is one immutable security log entry.
type Event struct {
	Time     time.Time  `json:"time"`
	Kind     EventKind  `json:"kind"`
	Addr     netip.Addr `json:"addr"`
	ClientID uint32     `json:"client_id,omitempty"`
	Detail   string     `json:"detail,omitempty"`
}

// eventRing is a fixed-capacity ring of events, oldest evicted first.
// Not synchronized; the registry lock covers it.
type eventRing struct {
	buf   []Event
	next  int
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) push(ev Event) {
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// recent returns up to limit events, newest last.
func (r *eventRing) recent(limit int) []Event {
	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]Event, 0, limit)
	start := r.next - limit
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < limit; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
