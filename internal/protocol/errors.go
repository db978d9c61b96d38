package protocol

import "errors"

// Domain errors for frame encoding and decoding.
var (
	// ErrPayloadTooLarge is returned when a payload does not fit the
	// one-byte length field.
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds 255 bytes")

	// ErrTooShort is returned when a buffer is smaller than the minimal
	// frame (header + command + length + tail).
	ErrTooShort = errors.New("protocol: frame too short")

	// ErrBadFraming is returned when the header or tail byte is wrong.
	ErrBadFraming = errors.New("protocol: bad framing")

	// ErrTruncatedPayload is returned when the declared payload length
	// exceeds the bytes actually present before the tail.
	ErrTruncatedPayload = errors.New("protocol: truncated payload")

	// ErrPayloadTooShort is returned when a device-info payload is smaller
	// than the fixed 10-byte layout.
	ErrPayloadTooShort = errors.New("protocol: device info payload too short")
)
