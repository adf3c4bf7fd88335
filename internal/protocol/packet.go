// Package protocol defines the CooPad wire format and its codec.
package protocol

// Version is the single supported protocol version. Packets carrying any
// other value are rejected at decode time.
const Version = 2

const (
	// PacketSize is the exact size of an encoded input packet. The layout
	// is fixed and little-endian with no padding; the field widths sum to
	// 27 bytes.
	PacketSize = 27

	// MaxDatagramSize is the hard ceiling on inbound datagrams. Anything
	// larger is dropped before decoding is attempted.
	MaxDatagramSize = 1024
)

// Button bitmask values for GamepadState.Buttons.
const (
	ButtonDpadUp        uint16 = 0x0001
	ButtonDpadDown      uint16 = 0x0002
	ButtonDpadLeft      uint16 = 0x0004
	ButtonDpadRight     uint16 = 0x0008
	ButtonStart         uint16 = 0x0010
	ButtonBack          uint16 = 0x0020
	ButtonLeftThumb     uint16 = 0x0040
	ButtonRightThumb    uint16 = 0x0080
	ButtonLeftShoulder  uint16 = 0x0100
	ButtonRightShoulder uint16 = 0x0200
	ButtonA             uint16 = 0x1000
	ButtonB             uint16 = 0x2000
	ButtonX             uint16 = 0x4000
	ButtonY             uint16 = 0x8000
)

// GamepadState is one sampled controller state. Immutable once decoded.
type GamepadState struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	LeftX        int16
	LeftY        int16
	RightX       int16
	RightY       int16
}

// Neutral returns the all-released state. Clients send it as a heartbeat
// when no physical device is attached.
func Neutral() GamepadState {
	return GamepadState{}
}

// Packet is one decoded wire record.
type Packet struct {
	Version  uint8
	ClientID uint32
	Sequence uint16
	State    GamepadState
	// Timestamp is nanoseconds since an arbitrary monotonic-ish epoch
	// chosen by the sender.
	Timestamp uint64
}
