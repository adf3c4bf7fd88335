package security

import (
	"testing"
	"time"
)

func TestSequenceNewer(t *testing.T) {
	cases := []struct {
		seq, last uint16
		want      bool
	}{
		{1, 0, true},
		{2, 1, true},
		{5, 5, false},     // exact duplicate
		{4, 5, false},     // stale reorder
		{0, 65535, true},  // wraparound
		{100, 65500, true},
		{32767, 0, true},  // edge of the acceptance window
		{32768, 0, false}, // past the window, treated as stale
		{0, 0, false},
	}
	for _, c := range cases {
		if got := SequenceNewer(c.seq, c.last); got != c.want {
			t.Errorf("SequenceNewer(%d, %d) = %v, want %v", c.seq, c.last, got, c.want)
		}
	}
}

func TestTimestampReject(t *testing.T) {
	const maxAge = 5 * time.Second
	const maxFuture = time.Second
	now := uint64(10 * time.Second)

	cases := []struct {
		name string
		pkt  uint64
		want RejectReason
	}{
		{"fresh", now, RejectNone},
		{"slightly old", now - uint64(4*time.Second), RejectNone},
		{"at age limit", now - uint64(5*time.Second), RejectNone},
		{"stale", now - uint64(5*time.Second) - 1, RejectStaleTimestamp},
		{"slightly ahead", now + uint64(500*time.Millisecond), RejectNone},
		{"at future limit", now + uint64(time.Second), RejectNone},
		{"forged future", now + uint64(time.Second) + 1, RejectFutureTimestamp},
	}
	for _, c := range cases {
		if got := timestampReject(c.pkt, now, maxAge, maxFuture); got != c.want {
			t.Errorf("%s: got %q, want %q", c.name, got, c.want)
		}
	}
}
