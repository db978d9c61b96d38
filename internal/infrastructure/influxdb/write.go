package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteBattery records a battery level reading from the wearable.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Wearable identifier (transport address)
//   - level: Battery level in percent (0-100)
//
// Example:
//
//	client.WriteBattery("E4:12:09:77:AB:01", 87)
func (c *Client) WriteBattery(deviceID string, level int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"battery",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"level": level,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteLinkEvent records a link state transition.
//
// Used for tracking connection stability over time: how often the link
// drops, how long reconnects take, when scans run.
//
// Parameters:
//   - deviceID: Wearable identifier, empty when no device is involved
//   - state: The link state entered (e.g., "connected", "disconnected")
func (c *Client) WriteLinkEvent(deviceID string, state string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"state": state,
	}
	if deviceID != "" {
		tags["device_id"] = deviceID
	}

	point := write.NewPoint(
		"link_events",
		tags,
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAlarm records an alarm raised by the wearable.
//
// Parameters:
//   - deviceID: Wearable identifier
//   - alarm: The alarm kind (e.g., "sos", "fall")
func (c *Client) WriteAlarm(deviceID string, alarm string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"alarms",
		map[string]string{
			"device_id": deviceID,
			"alarm":     alarm,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("link_stats",
//	    map[string]string{"device_id": id},
//	    map[string]interface{}{"frames_sent": 120, "frames_dropped": 2})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
