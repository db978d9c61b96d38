// Package telemetry records link activity as time-series data.
//
// The Recorder subscribes to the event dispatcher and writes three kinds
// of points to an InfluxDB sink:
//
//   - battery: battery level per device-info response
//   - link_events: one point per state transition
//   - alarms: one point per device-raised alarm
//
// Telemetry is optional. The daemon only creates a Recorder when the
// influxdb section of config.yaml is enabled; without it the dispatcher
// simply has one fewer listener.
package telemetry
