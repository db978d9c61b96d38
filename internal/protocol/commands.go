package protocol

import "fmt"

// Command identifies a protocol command.
//
// The set is closed on the device side, but unknown values decode without
// error so a newer device firmware cannot break an older client — the
// caller checks Known() and ignores what it does not understand.
type Command byte

// Command table for the alarm link protocol.
const (
	// FindAlarm makes the wearable beep so it can be located.
	FindAlarm Command = 0x01

	// DisconnectAlarm toggles the "alert me when the link drops" feature.
	DisconnectAlarm Command = 0x02

	// SosAlarm arms or sounds the SOS alarm. The device also pushes this
	// command unsolicited when the wearer physically pulls the trigger.
	SosAlarm Command = 0x03

	// AlarmStatusQuery asks for (or unsolicited, reports) alarm state.
	AlarmStatusQuery Command = 0x04

	// Pairing carries the 5-byte pairing code. Idempotent on the device;
	// re-sent on every successful connection.
	Pairing Command = 0x05

	// DeviceInfoQuery requests the device-info payload (battery, flags,
	// firmware version).
	DeviceInfoQuery Command = 0xCC
)

// GATT addressing for the alarm's link service.
const (
	// ServiceUUID is the 16-bit UUID the wearable advertises.
	ServiceUUID uint16 = 0xFFF0

	// WriteCharUUID is the characteristic commands are written to.
	WriteCharUUID uint16 = 0xFFF1

	// NotifyCharUUID is the characteristic notifications arrive on.
	NotifyCharUUID uint16 = 0xFFF2
)

// Known reports whether c is part of the protocol's command table.
func (c Command) Known() bool {
	switch c {
	case FindAlarm, DisconnectAlarm, SosAlarm, AlarmStatusQuery, Pairing, DeviceInfoQuery:
		return true
	default:
		return false
	}
}

// String returns a human-readable command name.
func (c Command) String() string {
	switch c {
	case FindAlarm:
		return "FindAlarm"
	case DisconnectAlarm:
		return "DisconnectAlarm"
	case SosAlarm:
		return "SosAlarm"
	case AlarmStatusQuery:
		return "AlarmStatusQuery"
	case Pairing:
		return "Pairing"
	case DeviceInfoQuery:
		return "DeviceInfoQuery"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(c))
	}
}
