package telemetry

import (
	"sync"

	"github.com/flklr-dev/eva-link/internal/events"
	"github.com/flklr-dev/eva-link/internal/infrastructure/influxdb"
	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

// Sink receives telemetry points. Writes must be non-blocking; the
// recorder calls them from the dispatcher's emit path.
type Sink interface {
	// WriteBattery records a battery level reading.
	WriteBattery(deviceID string, level int)

	// WriteLinkEvent records a link state transition.
	WriteLinkEvent(deviceID string, state string)

	// WriteAlarm records an alarm occurrence.
	WriteAlarm(deviceID string, alarm string)
}

var _ Sink = (*influxdb.Client)(nil)

// DeviceSource exposes the currently connected wearable.
type DeviceSource interface {
	// Device returns the connected candidate, nil when not connected.
	Device() *link.Candidate
}

var _ DeviceSource = (*link.Manager)(nil)

// Recorder subscribes to the event dispatcher and forwards link activity
// to a telemetry sink as time-series points.
//
// The recorder is passive: it never drives the link and it swallows
// nothing — the sink's own error handling applies.
type Recorder struct {
	sink       Sink
	source     DeviceSource
	dispatcher *events.Dispatcher

	unsubs   []func()
	stopOnce sync.Once
}

// NewRecorder creates a recorder. Call Start to attach it.
func NewRecorder(sink Sink, source DeviceSource, dispatcher *events.Dispatcher) *Recorder {
	return &Recorder{
		sink:       sink,
		source:     source,
		dispatcher: dispatcher,
	}
}

// Start registers the recorder's listeners on the dispatcher.
func (r *Recorder) Start() {
	r.unsubs = []func(){
		r.dispatcher.OnStatus(r.recordStatus),
		r.dispatcher.OnBattery(r.recordBattery),
		r.dispatcher.OnAlarm(r.recordAlarm),
	}
}

// Stop detaches the recorder from the dispatcher.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		for _, unsub := range r.unsubs {
			unsub()
		}
		r.unsubs = nil
	})
}

func (r *Recorder) recordStatus(state link.State, device *link.Candidate) {
	if device == nil {
		device = r.source.Device()
	}
	r.sink.WriteLinkEvent(deviceID(device), state.String())
}

func (r *Recorder) recordBattery(info protocol.DeviceInfo) {
	r.sink.WriteBattery(deviceID(r.source.Device()), info.BatteryLevel)
}

func (r *Recorder) recordAlarm(cmd protocol.Command) {
	alarm := "status_pull"
	if cmd == protocol.SosAlarm {
		alarm = "sos"
	}
	r.sink.WriteAlarm(deviceID(r.source.Device()), alarm)
}

func deviceID(device *link.Candidate) string {
	if device == nil {
		return ""
	}
	return device.ID
}
