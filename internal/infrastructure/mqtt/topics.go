package mqtt

import "fmt"

// DefaultTopicPrefix is used when no topic prefix is configured.
const DefaultTopicPrefix = "evalink"

// Topics provides builders for eva-link MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// The topic scheme is flat: {prefix}/{category}/{name}
//
//	topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}
//	statusTopic := topics.EventStatus()
//	// Returns: "evalink/event/status"
type Topics struct {
	// Prefix is the root of every topic. Empty falls back to
	// DefaultTopicPrefix.
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Event Topics (published by the daemon)
// =============================================================================

// EventStatus returns the topic for link state changes.
// Published retained so new subscribers see the current state.
//
// Example: evalink/event/status
func (t Topics) EventStatus() string {
	return fmt.Sprintf("%s/event/status", t.prefix())
}

// EventBattery returns the topic for device info and battery updates.
// Published retained so new subscribers see the last reading.
//
// Example: evalink/event/battery
func (t Topics) EventBattery() string {
	return fmt.Sprintf("%s/event/battery", t.prefix())
}

// EventAlarm returns the topic for alarm notifications from the wearable.
// Never retained: an alarm is a moment, not a state.
//
// Example: evalink/event/alarm
func (t Topics) EventAlarm() string {
	return fmt.Sprintf("%s/event/alarm", t.prefix())
}

// EventError returns the topic for link error reports.
//
// Example: evalink/event/error
func (t Topics) EventError() string {
	return fmt.Sprintf("%s/event/error", t.prefix())
}

// =============================================================================
// Command Topics (consumed by the daemon)
// =============================================================================

// Command returns the topic for a named command to the daemon.
//
// Example: evalink/command/find
func (t Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), name)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: evalink/command/#
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/#", t.prefix())
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the daemon online/offline status topic.
// This is also the LWT topic.
//
// Example: evalink/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}
