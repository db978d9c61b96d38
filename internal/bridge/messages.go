package bridge

import (
	"time"

	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

// MQTT message types for communication between the eva-link daemon and
// its consumers (companion app, home-automation controllers, dashboards).

// StatusMessage is published when the link state changes.
// Topic: {prefix}/event/status
// QoS: configured, Retained: Yes
type StatusMessage struct {
	// State is the link state ("disconnected", "scanning", "connecting",
	// "connected", "error").
	State string `json:"state"`

	// Timestamp is when the transition was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the transport address of the wearable, present on
	// transitions into the connected state.
	DeviceID string `json:"device_id,omitempty"`

	// DeviceName is the advertised name of the wearable, if known.
	DeviceName string `json:"device_name,omitempty"`

	// Stats contains cumulative link counters.
	Stats *LinkStats `json:"stats,omitempty"`
}

// LinkStats mirrors link.Stats for the wire.
type LinkStats struct {
	FramesSent     uint64 `json:"frames_sent"`
	FramesReceived uint64 `json:"frames_received"`
	FramesDropped  uint64 `json:"frames_dropped"`
	Connects       uint64 `json:"connects"`
	Disconnects    uint64 `json:"disconnects"`
	Reconnects     uint64 `json:"reconnects"`
}

// BatteryMessage is published when a device-info response is decoded.
// Topic: {prefix}/event/battery
// QoS: configured, Retained: Yes
type BatteryMessage struct {
	// DeviceID is the transport address of the wearable.
	DeviceID string `json:"device_id,omitempty"`

	// Timestamp is when the reading was decoded (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Level is the battery level in percent (0-100).
	Level int `json:"level"`

	// DisconnectAlarmEnabled reports whether the out-of-range alarm is on.
	DisconnectAlarmEnabled bool `json:"disconnect_alarm_enabled"`

	// SearchAlarmActive reports whether the find-my-device buzzer is on.
	SearchAlarmActive bool `json:"search_alarm_active"`

	// SosAlarmActive reports whether the SOS alarm is on.
	SosAlarmActive bool `json:"sos_alarm_active"`

	// FirmwareVersion is the device firmware version string.
	FirmwareVersion string `json:"firmware_version,omitempty"`
}

// AlarmMessage is published when the wearable raises an alarm.
// Topic: {prefix}/event/alarm
// QoS: configured, Retained: No (an alarm is a moment, not a state)
type AlarmMessage struct {
	// DeviceID is the transport address of the wearable.
	DeviceID string `json:"device_id,omitempty"`

	// Timestamp is when the alarm was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Alarm names the alarm kind ("sos", "status_pull").
	Alarm string `json:"alarm"`
}

// ErrorMessage is published when the link reports a recoverable error.
// Topic: {prefix}/event/error
// QoS: configured, Retained: No
type ErrorMessage struct {
	// Timestamp is when the error occurred (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Error is the error text.
	Error string `json:"error"`
}

// CommandMessage is the optional JSON body of an inbound command.
// Topic: {prefix}/command/{name}
//
// An empty payload is valid: the command name comes from the topic and
// parameters default. The body exists for correlation IDs and options.
type CommandMessage struct {
	// ID correlates the command with any resulting events (optional).
	ID string `json:"id,omitempty"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Parameters contains command-specific values.
	// Example: {"enabled": false} to switch an alarm off.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("app", "automation").
	Source string `json:"source,omitempty"`
}

// Enabled returns the boolean "enabled" parameter, defaulting to true.
// The toggleable alarm commands (find, sos, disconnect_alarm) switch the
// feature on unless the sender explicitly disables it.
func (m CommandMessage) Enabled() bool {
	if m.Parameters == nil {
		return true
	}
	v, ok := m.Parameters["enabled"]
	if !ok {
		return true
	}
	enabled, ok := v.(bool)
	if !ok {
		return true
	}
	return enabled
}

// NewStatusMessage builds a status message from a state transition.
func NewStatusMessage(state link.State, device *link.Candidate, stats link.Stats) StatusMessage {
	msg := StatusMessage{
		State:     state.String(),
		Timestamp: time.Now().UTC(),
		Stats: &LinkStats{
			FramesSent:     stats.FramesSent,
			FramesReceived: stats.FramesReceived,
			FramesDropped:  stats.FramesDropped,
			Connects:       stats.Connects,
			Disconnects:    stats.Disconnects,
			Reconnects:     stats.Reconnects,
		},
	}
	if device != nil {
		msg.DeviceID = device.ID
		msg.DeviceName = device.Name
	}
	return msg
}

// NewBatteryMessage builds a battery message from a decoded device-info
// response.
func NewBatteryMessage(deviceID string, info protocol.DeviceInfo) BatteryMessage {
	return BatteryMessage{
		DeviceID:               deviceID,
		Timestamp:              time.Now().UTC(),
		Level:                  info.BatteryLevel,
		DisconnectAlarmEnabled: info.DisconnectAlarmEnabled,
		SearchAlarmActive:      info.SearchAlarmStatus,
		SosAlarmActive:         info.SosAlarmStatus,
		FirmwareVersion:        info.FirmwareVersion,
	}
}

// NewAlarmMessage builds an alarm message from the command that carried
// the alarm.
func NewAlarmMessage(deviceID string, cmd protocol.Command) AlarmMessage {
	return AlarmMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Alarm:     alarmName(cmd),
	}
}

// NewErrorMessage builds an error message.
func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	}
}

// alarmName maps an alarm-carrying command to its wire name.
func alarmName(cmd protocol.Command) string {
	switch cmd {
	case protocol.SosAlarm:
		return "sos"
	case protocol.AlarmStatusQuery:
		return "status_pull"
	default:
		return cmd.String()
	}
}
