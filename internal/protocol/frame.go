package protocol

import "fmt"

// Frame layout constants.
const (
	frameHeader byte = 0xAA
	frameTail   byte = 0x55

	// minFrameSize is a frame with an empty payload:
	// header(1) + command(1) + length(1) + tail(1).
	minFrameSize = 4

	// MaxPayloadSize is the largest payload a single frame can carry;
	// the length field is one byte.
	MaxPayloadSize = 255
)

// Frame is a decoded protocol frame.
type Frame struct {
	// Command is the raw command byte. It may be outside the command
	// table; see Command.Known.
	Command Command

	// Payload is the frame body. Always a copy, never aliases the input.
	Payload []byte
}

// Encode builds the wire representation of a command frame.
//
// Returns ErrPayloadTooLarge if the payload does not fit the one-byte
// length field. The output always carries a correct header, length and tail.
func Encode(cmd Command, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	buf := make([]byte, 0, minFrameSize+len(payload))
	buf = append(buf, frameHeader, byte(cmd), byte(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, frameTail)
	return buf, nil
}

// Decode validates and parses a raw frame.
//
// Errors:
//   - ErrTooShort: fewer than 4 bytes
//   - ErrBadFraming: first byte is not 0xAA or last byte is not 0x55
//   - ErrTruncatedPayload: declared length exceeds the bytes available
//     between the length field and the tail
//
// Unknown command bytes decode successfully; the caller decides whether
// to ignore the frame.
func Decode(data []byte) (Frame, error) {
	if len(data) < minFrameSize {
		return Frame{}, fmt.Errorf("%w: %d bytes (need at least %d)",
			ErrTooShort, len(data), minFrameSize)
	}

	if data[0] != frameHeader || data[len(data)-1] != frameTail {
		return Frame{}, fmt.Errorf("%w: header 0x%02X tail 0x%02X",
			ErrBadFraming, data[0], data[len(data)-1])
	}

	declared := int(data[2])
	available := len(data) - minFrameSize
	if declared > available {
		return Frame{}, fmt.Errorf("%w: declared %d, available %d",
			ErrTruncatedPayload, declared, available)
	}

	payload := make([]byte, declared)
	copy(payload, data[3:3+declared])

	return Frame{
		Command: Command(data[1]),
		Payload: payload,
	}, nil
}
