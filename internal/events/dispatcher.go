package events

import (
	"sync"

	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

// Listener signatures, one per event category.
type (
	// StatusListener receives connection state changes. device is the
	// connected candidate on transitions into StateConnected, nil
	// otherwise.
	StatusListener func(state link.State, device *link.Candidate)

	// BatteryListener receives decoded device-info responses.
	BatteryListener func(info protocol.DeviceInfo)

	// ErrorListener receives link errors that were recovered from or
	// reported asynchronously.
	ErrorListener func(err error)

	// AlarmListener receives device-triggered alarms with the command
	// that carried them.
	AlarmListener func(cmd protocol.Command)
)

type statusSub struct {
	id uint64
	fn StatusListener
}

type batterySub struct {
	id uint64
	fn BatteryListener
}

type errorSub struct {
	id uint64
	fn ErrorListener
}

type alarmSub struct {
	id uint64
	fn AlarmListener
}

// Dispatcher is the event fan-out hub. One instance is created at
// startup and handed to the link manager and every consumer; there is no
// package-level default. Safe for concurrent use.
type Dispatcher struct {
	mu     sync.Mutex
	nextID uint64

	status  []statusSub
	battery []batterySub
	errs    []errorSub
	alarms  []alarmSub
}

// The link manager emits through this interface.
var _ link.Emitter = (*Dispatcher)(nil)

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnStatus registers a connection-status listener and returns its
// unsubscribe func. Unsubscribing twice is harmless.
func (d *Dispatcher) OnStatus(fn StatusListener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.status = append(d.status, statusSub{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.status {
			if s.id == id {
				d.status = append(d.status[:i:i], d.status[i+1:]...)
				return
			}
		}
	}
}

// OnBattery registers a battery/device-info listener.
func (d *Dispatcher) OnBattery(fn BatteryListener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.battery = append(d.battery, batterySub{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.battery {
			if s.id == id {
				d.battery = append(d.battery[:i:i], d.battery[i+1:]...)
				return
			}
		}
	}
}

// OnError registers an error listener.
func (d *Dispatcher) OnError(fn ErrorListener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.errs = append(d.errs, errorSub{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.errs {
			if s.id == id {
				d.errs = append(d.errs[:i:i], d.errs[i+1:]...)
				return
			}
		}
	}
}

// OnAlarm registers a device-triggered-alarm listener.
func (d *Dispatcher) OnAlarm(fn AlarmListener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.alarms = append(d.alarms, alarmSub{id: id, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.alarms {
			if s.id == id {
				d.alarms = append(d.alarms[:i:i], d.alarms[i+1:]...)
				return
			}
		}
	}
}

// EmitStatus implements link.Emitter.
func (d *Dispatcher) EmitStatus(state link.State, device *link.Candidate) {
	d.mu.Lock()
	listeners := make([]StatusListener, len(d.status))
	for i, s := range d.status {
		listeners[i] = s.fn
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(state, device)
	}
}

// EmitBattery implements link.Emitter.
func (d *Dispatcher) EmitBattery(info protocol.DeviceInfo) {
	d.mu.Lock()
	listeners := make([]BatteryListener, len(d.battery))
	for i, s := range d.battery {
		listeners[i] = s.fn
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(info)
	}
}

// EmitError implements link.Emitter.
func (d *Dispatcher) EmitError(err error) {
	d.mu.Lock()
	listeners := make([]ErrorListener, len(d.errs))
	for i, s := range d.errs {
		listeners[i] = s.fn
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(err)
	}
}

// EmitAlarm implements link.Emitter.
func (d *Dispatcher) EmitAlarm(cmd protocol.Command) {
	d.mu.Lock()
	listeners := make([]AlarmListener, len(d.alarms))
	for i, s := range d.alarms {
		listeners[i] = s.fn
	}
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(cmd)
	}
}
