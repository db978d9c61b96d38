package protocol

import (
	"fmt"
	"strings"
)

// deviceInfoMinSize is the fixed device-info payload layout:
// battery(1) + three flags(3) + firmware(6).
const deviceInfoMinSize = 10

// DeviceInfo is the decoded payload of a DeviceInfoQuery response.
//
// It is ephemeral: recomputed on every response and never persisted.
type DeviceInfo struct {
	// BatteryLevel is the remaining charge, 0-100.
	BatteryLevel int

	// DisconnectAlarmEnabled reports whether the wearable alerts when
	// the link drops.
	DisconnectAlarmEnabled bool

	// SearchAlarmStatus reports whether the find-me beeper is sounding.
	SearchAlarmStatus bool

	// SosAlarmStatus reports whether the SOS alarm is armed or sounding.
	SosAlarmStatus bool

	// FirmwareVersion is the device firmware string.
	FirmwareVersion string
}

// DecodeDeviceInfo parses a device-info response payload.
//
// Layout: byte 0 battery (0-100), bytes 1-3 the three boolean flags
// (nonzero = true), bytes 4-9 the firmware version as printable ASCII.
//
// Firmware strings shorter than six bytes are padded by the device with
// NUL or space; the padding is trimmed from the right. Interior NULs are
// preserved as-is.
//
// Returns ErrPayloadTooShort for payloads under 10 bytes.
func DecodeDeviceInfo(payload []byte) (DeviceInfo, error) {
	if len(payload) < deviceInfoMinSize {
		return DeviceInfo{}, fmt.Errorf("%w: %d bytes (need %d)",
			ErrPayloadTooShort, len(payload), deviceInfoMinSize)
	}

	return DeviceInfo{
		BatteryLevel:           int(payload[0]),
		DisconnectAlarmEnabled: payload[1] != 0,
		SearchAlarmStatus:      payload[2] != 0,
		SosAlarmStatus:         payload[3] != 0,
		FirmwareVersion:        strings.TrimRight(string(payload[4:10]), "\x00 "),
	}, nil
}
