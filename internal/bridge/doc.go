// Package bridge connects the wearable link to the MQTT broker.
//
// The bridge is the daemon's outward surface. It listens on the event
// dispatcher and republishes every link event as JSON on the broker, and
// it subscribes to the command topics so consumers can drive the link
// without touching the radio:
//
//	dispatcher events ──▶ {prefix}/event/status   (retained)
//	                      {prefix}/event/battery  (retained)
//	                      {prefix}/event/alarm
//	                      {prefix}/event/error
//
//	{prefix}/command/find             ──▶ FindAlarm toggle
//	{prefix}/command/sos              ──▶ SosAlarm toggle
//	{prefix}/command/disconnect_alarm ──▶ DisconnectAlarm toggle
//	{prefix}/command/status           ──▶ alarm status query
//	{prefix}/command/info             ──▶ device info query
//	{prefix}/command/disconnect       ──▶ drop link, forget device
//
// Status and battery are retained so a consumer connecting mid-session
// immediately sees the current state. Alarms and errors are transient.
//
// Message schemas live in messages.go. Command payloads are optional;
// an empty body means "toggle on" for the alarm commands.
package bridge
