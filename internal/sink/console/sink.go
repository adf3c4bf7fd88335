// Package console implements a sink that logs slot states instead of
// driving a platform controller. Useful on hosts without a virtual
// controller driver and in development.
package console

import (
	"log/slog"

	"github.com/uozer7050/coopad/internal/protocol"
)

type Sink struct{}

func New() *Sink { return &Sink{} }

func (s *Sink) Init() error {
	slog.Info("console sink initialized")
	return nil
}

func (s *Sink) Write(slot int, st protocol.GamepadState) error {
	slog.Debug("state",
		"slot", slot,
		"buttons", st.Buttons,
		"lt", st.LeftTrigger,
		"rt", st.RightTrigger,
		"lx", st.LeftX,
		"ly", st.LeftY,
		"rx", st.RightX,
		"ry", st.RightY,
	)
	return nil
}

func (s *Sink) Close() error { return nil }
