// Package session decides which virtual-controller slot an accepted input
// stream drives. Single-owner mode is the legacy model: one slot, first
// valid packet wins, ownership lapses after a silence timeout. Co-op mode
// extends the same rules to up to four slots.
package session

import (
	"log/slog"
	"sync"
	"time"
)

// NoSlot is returned by Route when the packet is accepted but must not be
// forwarded to any sink.
const NoSlot = -1

// MaxSlots is the co-op slot ceiling.
const MaxSlots = 4

// Config holds the ownership settings.
type Config struct {
	// OwnershipTimeout is how long a bound client may stay silent before
	// its slot frees for reassignment.
	OwnershipTimeout time.Duration
	// Slots is 1 (single-owner) or up to MaxSlots (co-op).
	Slots int
}

type slot struct {
	clientID uint32
	bound    bool
	boundAt  time.Time
	lastSeen time.Time
}

// Manager tracks slot bindings. It is called from the receive pipeline for
// every accepted packet and from status queries concurrently.
type Manager struct {
	cfg Config

	mu    sync.Mutex
	slots []slot
}

// NewManager creates a manager with all slots free.
func NewManager(cfg Config) *Manager {
	if cfg.Slots < 1 {
		cfg.Slots = 1
	}
	if cfg.Slots > MaxSlots {
		cfg.Slots = MaxSlots
	}
	return &Manager{
		cfg:   cfg,
		slots: make([]slot, cfg.Slots),
	}
}

// Route returns the slot index the client's state should be written to,
// or NoSlot when the packet is accepted but not forwarded (another client
// holds the slot, or all slots are busy in co-op mode).
//
// A client already bound to a slot is always routed there and its
// activity window refreshed; bindings never move. Otherwise the lowest
// free slot is claimed. A slot counts as free when it was never bound or
// its holder has been silent strictly longer than the ownership timeout —
// at exactly the boundary the incumbent keeps it.
func (m *Manager) Route(clientID uint32, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		s := &m.slots[i]
		if s.bound && s.clientID == clientID {
			s.lastSeen = now
			return i
		}
	}

	for i := range m.slots {
		s := &m.slots[i]
		if s.bound && now.Sub(s.lastSeen) <= m.cfg.OwnershipTimeout {
			continue
		}
		if s.bound {
			slog.Info("slot released", "slot", i, "client_id", s.clientID,
				"idle", now.Sub(s.lastSeen))
		}
		*s = slot{clientID: clientID, bound: true, boundAt: now, lastSeen: now}
		slog.Info("slot bound", "slot", i, "client_id", clientID)
		return i
	}

	return NoSlot
}

// Expire releases slots whose holders have gone silent past the ownership
// timeout. Route handles takeover lazily; Expire exists so the periodic
// task can surface releases promptly for status displays.
func (m *Manager) Expire(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	released := 0
	for i := range m.slots {
		s := &m.slots[i]
		if s.bound && now.Sub(s.lastSeen) > m.cfg.OwnershipTimeout {
			slog.Info("slot released", "slot", i, "client_id", s.clientID,
				"idle", now.Sub(s.lastSeen))
			*s = slot{}
			released++
		}
	}
	return released
}

// SlotInfo describes one slot binding for status queries.
type SlotInfo struct {
	Slot     int       `json:"slot"`
	ClientID uint32    `json:"client_id"`
	Bound    bool      `json:"bound"`
	BoundAt  time.Time `json:"bound_at,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Snapshot returns the current slot bindings.
func (m *Manager) Snapshot() []SlotInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SlotInfo, len(m.slots))
	for i, s := range m.slots {
		out[i] = SlotInfo{Slot: i, ClientID: s.clientID, Bound: s.bound, BoundAt: s.boundAt, LastSeen: s.lastSeen}
	}
	return out
}
