package protocol

import (
	"encoding/binary"
	"errors"
)

// Sentinel decode errors.
var (
	ErrTooShort     = errors.New("coopad: packet too short")
	ErrSizeExceeded = errors.New("coopad: packet size exceeded")
	ErrBadVersion   = errors.New("coopad: unsupported protocol version")
)

// Wire layout offsets. Little-endian, no padding:
// version:u8 | client_id:u32 | sequence:u16 | buttons:u16 | lt:u8 | rt:u8 |
// lx:i16 | ly:i16 | rx:i16 | ry:i16 | timestamp:u64
const (
	offVersion   = 0
	offClientID  = 1
	offSequence  = 5
	offButtons   = 7
	offLT        = 9
	offRT        = 10
	offLX        = 11
	offLY        = 13
	offRX        = 15
	offRY        = 17
	offTimestamp = 19
)

// Encode serializes a packet into its 27-byte wire form. Two conformant
// implementations must produce byte-identical output for identical field
// values, so every field goes through explicit fixed offsets.
func Encode(st GamepadState, clientID uint32, sequence uint16, timestamp uint64) []byte {
	buf := make([]byte, PacketSize)
	buf[offVersion] = Version
	binary.LittleEndian.PutUint32(buf[offClientID:], clientID)
	binary.LittleEndian.PutUint16(buf[offSequence:], sequence)
	binary.LittleEndian.PutUint16(buf[offButtons:], st.Buttons)
	buf[offLT] = st.LeftTrigger
	buf[offRT] = st.RightTrigger
	binary.LittleEndian.PutUint16(buf[offLX:], uint16(st.LeftX))
	binary.LittleEndian.PutUint16(buf[offLY:], uint16(st.LeftY))
	binary.LittleEndian.PutUint16(buf[offRX:], uint16(st.RightX))
	binary.LittleEndian.PutUint16(buf[offRY:], uint16(st.RightY))
	binary.LittleEndian.PutUint64(buf[offTimestamp:], timestamp)
	return buf
}

// Decode parses a wire record. Input longer than PacketSize is tolerated
// (trailing bytes ignored) up to MaxDatagramSize. All fixed-width fields
// accept every bit pattern; only size and version can fail here.
func Decode(data []byte) (Packet, error) {
	if len(data) > MaxDatagramSize {
		return Packet{}, ErrSizeExceeded
	}
	if len(data) < PacketSize {
		return Packet{}, ErrTooShort
	}
	if data[offVersion] != Version {
		return Packet{}, ErrBadVersion
	}
	return Packet{
		Version:  data[offVersion],
		ClientID: binary.LittleEndian.Uint32(data[offClientID:]),
		Sequence: binary.LittleEndian.Uint16(data[offSequence:]),
		State: GamepadState{
			Buttons:      binary.LittleEndian.Uint16(data[offButtons:]),
			LeftTrigger:  data[offLT],
			RightTrigger: data[offRT],
			LeftX:        int16(binary.LittleEndian.Uint16(data[offLX:])),
			LeftY:        int16(binary.LittleEndian.Uint16(data[offLY:])),
			RightX:       int16(binary.LittleEndian.Uint16(data[offRX:])),
			RightY:       int16(binary.LittleEndian.Uint16(data[offRY:])),
		},
		Timestamp: binary.LittleEndian.Uint64(data[offTimestamp:]),
	}, nil
}
