package sink

import (
	"sync"

	"github.com/uozer7050/coopad/internal/protocol"
)

// WriteRecord is one captured Write call.
type WriteRecord struct {
	Slot  int
	State protocol.GamepadState
}

// Memory is an in-process sink that records every write. Used by tests
// and by the dry-run mode of the serve command.
type Memory struct {
	mu     sync.Mutex
	writes []WriteRecord

	// InitErr, when set, is returned by Init. Lets tests exercise the
	// sink-unavailable startup path.
	InitErr error

	inits  int
	closed bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	return m.InitErr
}

func (m *Memory) Write(slot int, st protocol.GamepadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteRecord{Slot: slot, State: st})
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Writes returns a copy of all recorded writes.
func (m *Memory) Writes() []WriteRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteRecord, len(m.writes))
	copy(out, m.writes)
	return out
}

// InitCalls returns how many times Init ran.
func (m *Memory) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inits
}

// Closed reports whether Close was called.
func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
