package session

import (
	"testing"
	"time"
)

const timeout = 500 * time.Millisecond

func TestSingleOwner_FirstPacketWins(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 1})
	now := time.Now()

	if got := m.Route(1, now); got != 0 {
		t.Fatalf("first client: slot %d, want 0", got)
	}
	// A second client is accepted but not routed while the owner is live.
	if got := m.Route(2, now.Add(100*time.Millisecond)); got != NoSlot {
		t.Fatalf("second client routed to slot %d while owner active", got)
	}
	// The owner keeps being routed.
	if got := m.Route(1, now.Add(200*time.Millisecond)); got != 0 {
		t.Fatalf("owner lost its slot: %d", got)
	}
}

func TestSingleOwner_HandoverAfterTimeout(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 1})
	now := time.Now()

	m.Route(1, now)

	// A packet 0.1s before the timeout still counts as activity and
	// resets the window.
	beforeTimeout := now.Add(timeout - 100*time.Millisecond)
	if got := m.Route(1, beforeTimeout); got != 0 {
		t.Fatalf("owner rejected before timeout: %d", got)
	}

	// Exactly at the boundary the incumbent is favored.
	atBoundary := beforeTimeout.Add(timeout)
	if got := m.Route(2, atBoundary); got != NoSlot {
		t.Fatalf("challenger won at the exact boundary: slot %d", got)
	}

	// Strictly past the boundary the first valid packet takes over.
	past := beforeTimeout.Add(timeout + time.Millisecond)
	if got := m.Route(2, past); got != 0 {
		t.Fatalf("challenger not routed after owner silence: %d", got)
	}
	// The old owner is now the outsider.
	if got := m.Route(1, past.Add(time.Millisecond)); got != NoSlot {
		t.Fatalf("stale owner still routed: slot %d", got)
	}
}

func TestCoop_LowestFreeSlotAssignment(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 4})
	now := time.Now()

	for i, id := range []uint32{10, 20, 30} {
		if got := m.Route(id, now); got != i {
			t.Fatalf("client %d: slot %d, want %d", id, got, i)
		}
	}
}

func TestCoop_SlotStability(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 4})
	now := time.Now()

	ids := []uint32{10, 20, 30}
	for i, id := range ids {
		if got := m.Route(id, now); got != i {
			t.Fatalf("client %d bound to slot %d, want %d", id, got, i)
		}
	}

	// 1000 interleaved packets keep routing to the same slots.
	for i := 0; i < 1000; i++ {
		id := ids[i%3]
		want := i % 3
		now = now.Add(time.Millisecond)
		if got := m.Route(id, now); got != want {
			t.Fatalf("packet %d: client %d routed to slot %d, want %d", i, id, got, want)
		}
	}
}

func TestCoop_FullLobby(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 4})
	now := time.Now()

	for i := uint32(1); i <= 4; i++ {
		m.Route(i, now)
	}

	// Fifth client validates but produces no sink write.
	if got := m.Route(5, now.Add(time.Millisecond)); got != NoSlot {
		t.Fatalf("fifth client got slot %d with a full lobby", got)
	}

	// Client 2 goes silent; its slot frees and the waiting client claims
	// it on its next packet.
	later := now.Add(timeout + 10*time.Millisecond)
	for _, id := range []uint32{1, 3, 4} {
		m.Route(id, later)
	}
	if got := m.Route(5, later); got != 1 {
		t.Fatalf("waiting client got slot %d, want freed slot 1", got)
	}
}

func TestCoop_BindingNeverMoves(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 4})
	now := time.Now()

	m.Route(1, now) // slot 0
	m.Route(2, now) // slot 1

	// Client 1 lapses, slot 0 frees. Client 2 keeps slot 1 even though a
	// lower slot is available.
	later := now.Add(timeout + time.Millisecond)
	if got := m.Route(2, later); got != 1 {
		t.Fatalf("client 2 moved to slot %d", got)
	}
}

func TestExpire_ReleasesIdleSlots(t *testing.T) {
	m := NewManager(Config{OwnershipTimeout: timeout, Slots: 4})
	now := time.Now()

	m.Route(1, now)
	m.Route(2, now)
	m.Route(2, now.Add(timeout)) // refresh client 2

	released := m.Expire(now.Add(timeout + time.Millisecond))
	if released != 1 {
		t.Fatalf("released %d slots, want 1", released)
	}

	snap := m.Snapshot()
	if snap[0].Bound {
		t.Error("slot 0 should be free")
	}
	if !snap[1].Bound || snap[1].ClientID != 2 {
		t.Errorf("slot 1 should still belong to client 2: %+v", snap[1])
	}
}

func TestManager_SlotCountClamped(t *testing.T) {
	if n := len(NewManager(Config{Slots: 0}).Snapshot()); n != 1 {
		t.Errorf("0 slots clamped to %d, want 1", n)
	}
	if n := len(NewManager(Config{Slots: 99}).Snapshot()); n != MaxSlots {
		t.Errorf("99 slots clamped to %d, want %d", n, MaxSlots)
	}
}
