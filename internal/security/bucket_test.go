package security

import (
	"testing"
	"time"
)

func TestBucket_BurstThenDeny(t *testing.T) {
	b := NewBucket(120, 20)
	now := time.Now()

	for i := 0; i < 20; i++ {
		if !b.TryConsume(1, now) {
			t.Fatalf("call %d should be allowed (within burst)", i+1)
		}
	}
	if b.TryConsume(1, now) {
		t.Error("21st immediate call should be denied")
	}
}

func TestBucket_RefillOneToken(t *testing.T) {
	b := NewBucket(120, 20)
	now := time.Now()

	for i := 0; i < 20; i++ {
		b.TryConsume(1, now)
	}

	// One refill interval later exactly one token is back.
	later := now.Add(time.Second / 120)
	if !b.TryConsume(1, later) {
		t.Error("one token should be available after 1/120s")
	}
	if b.TryConsume(1, later) {
		t.Error("second token should not yet be available")
	}
}

func TestBucket_DenialDoesNotConsume(t *testing.T) {
	b := NewBucket(1, 1)
	now := time.Now()

	if !b.TryConsume(1, now) {
		t.Fatal("first token should be available")
	}
	// Repeated denials must not push the refill point further out.
	for i := 0; i < 5; i++ {
		if b.TryConsume(1, now) {
			t.Fatal("bucket should be empty")
		}
	}
	if !b.TryConsume(1, now.Add(time.Second)) {
		t.Error("token should be back after one refill period despite denials")
	}
}
