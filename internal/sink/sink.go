// Package sink defines the virtual-controller output contract. The real
// platform drivers (ViGEm, uinput) live outside this module; the host only
// needs something it can initialize, write slot states to, and close.
package sink

import "github.com/uozer7050/coopad/internal/protocol"

// Sink materializes validated input as virtual controllers.
type Sink interface {
	// Init prepares the underlying driver. It fails when the platform
	// driver is unavailable; the caller decides whether to retry.
	Init() error
	// Write applies a state to the controller bound to the slot. Must be
	// fast and non-blocking; it is called from the receive pipeline.
	Write(slot int, st protocol.GamepadState) error
	// Close releases driver resources.
	Close() error
}
