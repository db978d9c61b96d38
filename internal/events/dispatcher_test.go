package events

import (
	"errors"
	"sync"
	"testing"

	"github.com/flklr-dev/eva-link/internal/link"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

func TestEmitStatusRegistrationOrder(t *testing.T) {
	d := NewDispatcher()

	var order []int
	d.OnStatus(func(link.State, *link.Candidate) { order = append(order, 1) })
	d.OnStatus(func(link.State, *link.Candidate) { order = append(order, 2) })
	d.OnStatus(func(link.State, *link.Candidate) { order = append(order, 3) })

	d.EmitStatus(link.StateConnected, nil)

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("listener calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("listener calls = %v, want %v", order, want)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	d := NewDispatcher()

	var first, second int
	unsub := d.OnAlarm(func(protocol.Command) { first++ })
	d.OnAlarm(func(protocol.Command) { second++ })

	d.EmitAlarm(protocol.SosAlarm)
	unsub()
	d.EmitAlarm(protocol.SosAlarm)

	if first != 1 {
		t.Errorf("unsubscribed listener calls = %d, want 1", first)
	}
	if second != 2 {
		t.Errorf("remaining listener calls = %d, want 2", second)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	d := NewDispatcher()

	var calls int
	d.OnError(func(error) { calls++ })
	unsub := d.OnError(func(error) {})

	unsub()
	unsub()

	d.EmitError(errors.New("boom"))
	if calls != 1 {
		t.Errorf("surviving listener calls = %d, want 1", calls)
	}
}

func TestSetsAreIndependent(t *testing.T) {
	d := NewDispatcher()

	var statusCalls, batteryCalls, errorCalls, alarmCalls int
	d.OnStatus(func(link.State, *link.Candidate) { statusCalls++ })
	d.OnBattery(func(protocol.DeviceInfo) { batteryCalls++ })
	d.OnError(func(error) { errorCalls++ })
	d.OnAlarm(func(protocol.Command) { alarmCalls++ })

	d.EmitBattery(protocol.DeviceInfo{BatteryLevel: 80})
	d.EmitBattery(protocol.DeviceInfo{BatteryLevel: 79})

	if statusCalls != 0 || errorCalls != 0 || alarmCalls != 0 {
		t.Errorf("cross-set delivery: status=%d error=%d alarm=%d, want all 0",
			statusCalls, errorCalls, alarmCalls)
	}
	if batteryCalls != 2 {
		t.Errorf("battery listener calls = %d, want 2", batteryCalls)
	}
}

func TestEmitCarriesPayload(t *testing.T) {
	d := NewDispatcher()

	var gotState link.State
	var gotDevice *link.Candidate
	d.OnStatus(func(s link.State, c *link.Candidate) {
		gotState = s
		gotDevice = c
	})

	cand := &link.Candidate{ID: "aa:bb", Name: "EVA-1"}
	d.EmitStatus(link.StateConnected, cand)

	if gotState != link.StateConnected {
		t.Errorf("state = %v, want %v", gotState, link.StateConnected)
	}
	if gotDevice == nil || gotDevice.ID != "aa:bb" {
		t.Errorf("device = %+v, want ID aa:bb", gotDevice)
	}
}

func TestListenerMaySubscribeDuringEmit(t *testing.T) {
	d := NewDispatcher()

	var lateCalls int
	d.OnError(func(error) {
		d.OnError(func(error) { lateCalls++ })
	})

	// Must not deadlock; the late listener only sees later emissions.
	d.EmitError(errors.New("first"))
	if lateCalls != 0 {
		t.Errorf("late listener called during its registering emit: %d", lateCalls)
	}

	d.mu.Lock()
	registered := len(d.errs)
	d.mu.Unlock()
	if registered != 2 {
		t.Errorf("registered error listeners = %d, want 2", registered)
	}
}

func TestConcurrentSubscribeAndEmit(t *testing.T) {
	d := NewDispatcher()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := d.OnBattery(func(protocol.DeviceInfo) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			d.EmitBattery(protocol.DeviceInfo{BatteryLevel: 50})
		}()
	}
	wg.Wait()
}
