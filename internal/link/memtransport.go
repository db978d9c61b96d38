package link

import (
	"context"
	"fmt"
	"sync"

	"github.com/flklr-dev/eva-link/internal/protocol"
)

// MemTransport is an in-memory Transport implementation. It backs the
// package tests and the daemon's "memory" transport mode, which allows
// running the full stack on hosts without radio hardware.
type MemTransport struct {
	mu           sync.Mutex
	devices      map[string]*MemDevice
	readyErr     error
	failConnects int
	connectGate  <-chan struct{}
	attempts     chan string
}

// NewMemTransport creates an empty transport. Devices are added with
// AddDevice.
func NewMemTransport() *MemTransport {
	return &MemTransport{
		devices:  make(map[string]*MemDevice),
		attempts: make(chan string, 64),
	}
}

// AddDevice registers a simulated wearable and returns its handle.
func (t *MemTransport) AddDevice(c Candidate) *MemDevice {
	d := &MemDevice{
		candidate: c,
		battery:   100,
		firmware:  "1.0.0",
	}
	t.mu.Lock()
	t.devices[c.ID] = d
	t.mu.Unlock()
	return d
}

// RemoveDevice drops a device from the known-device cache, simulating a
// peer the radio stack has forgotten.
func (t *MemTransport) RemoveDevice(id string) {
	t.mu.Lock()
	delete(t.devices, id)
	t.mu.Unlock()
}

// SetReadyError makes Ready (and thereby scans and connects) fail.
func (t *MemTransport) SetReadyError(err error) {
	t.mu.Lock()
	t.readyErr = err
	t.mu.Unlock()
}

// FailNextConnects makes the next n Connect calls fail.
func (t *MemTransport) FailNextConnects(n int) {
	t.mu.Lock()
	t.failConnects = n
	t.mu.Unlock()
}

// HoldConnects blocks Connect calls on gate until it yields or the
// caller's context ends. Tests use it to keep an attempt in flight.
func (t *MemTransport) HoldConnects(gate <-chan struct{}) {
	t.mu.Lock()
	t.connectGate = gate
	t.mu.Unlock()
}

// ConnectAttempts exposes every Connect call, successful or not, in
// order. Used by tests to synchronize with the reconnect cycle.
func (t *MemTransport) ConnectAttempts() <-chan string {
	return t.attempts
}

// Ready implements Transport.
func (t *MemTransport) Ready() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.readyErr
}

// Scan implements Transport. All registered devices advertise the alarm
// service; the name filter applies on top. The scan runs until ctx ends.
func (t *MemTransport) Scan(ctx context.Context, filter Filter, found func(Candidate)) error {
	t.mu.Lock()
	candidates := make([]Candidate, 0, len(t.devices))
	for _, d := range t.devices {
		candidates = append(candidates, d.candidate)
	}
	t.mu.Unlock()

	for _, c := range candidates {
		if filter.Match(c) {
			found(c)
		}
	}
	<-ctx.Done()
	return nil
}

// Connect implements Transport.
func (t *MemTransport) Connect(ctx context.Context, id string, _ ConnectOptions) (Conn, error) {
	select {
	case t.attempts <- id:
	default:
	}

	t.mu.Lock()
	gate := t.connectGate
	t.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.failConnects > 0 {
		t.failConnects--
		t.mu.Unlock()
		return nil, fmt.Errorf("simulated connect failure to %s", id)
	}
	d, ok := t.devices[id]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no such device: %s", id)
	}
	return d.attach(), nil
}

// KnownDevices implements Transport.
func (t *MemTransport) KnownDevices(ids []string) []Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Candidate
	for _, id := range ids {
		if d, ok := t.devices[id]; ok {
			out = append(out, d.candidate)
		}
	}
	return out
}

// MemDevice simulates one wearable: it answers device-info queries,
// acknowledges find-alarm requests and echoes alarm commands the way the
// real firmware does.
type MemDevice struct {
	candidate Candidate

	mu          sync.Mutex
	battery     int
	firmware    string
	conn         *memConn
	writes       [][]byte
	pairingCode  []byte
	discoverErr  error
	subscribeErr error
	writeErr     error
}

// SetBattery sets the level reported in device-info responses.
func (d *MemDevice) SetBattery(level int) {
	d.mu.Lock()
	d.battery = level
	d.mu.Unlock()
}

// SetDiscoverError makes service discovery fail on the next connect.
func (d *MemDevice) SetDiscoverError(err error) {
	d.mu.Lock()
	d.discoverErr = err
	d.mu.Unlock()
}

// SetSubscribeError makes notification subscription fail on the next
// connect.
func (d *MemDevice) SetSubscribeError(err error) {
	d.mu.Lock()
	d.subscribeErr = err
	d.mu.Unlock()
}

// SetWriteError makes characteristic writes fail.
func (d *MemDevice) SetWriteError(err error) {
	d.mu.Lock()
	d.writeErr = err
	d.mu.Unlock()
}

// Writes returns every raw frame written to the device, oldest first.
func (d *MemDevice) Writes() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.writes))
	copy(out, d.writes)
	return out
}

// PairingCode returns the last code received in a Pairing command.
func (d *MemDevice) PairingCode() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.pairingCode))
	copy(out, d.pairingCode)
	return out
}

// PushNotification delivers raw bytes on the notify characteristic, as
// the device would for an unsolicited event.
func (d *MemDevice) PushNotification(data []byte) {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		conn.deliver(data)
	}
}

// TriggerAlarm simulates the wearer physically pulling the alarm.
func (d *MemDevice) TriggerAlarm() {
	frame, _ := protocol.Encode(protocol.SosAlarm, []byte{0x01})
	d.PushNotification(frame)
}

// DropLink simulates an unsolicited transport disconnect.
func (d *MemDevice) DropLink() {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	if conn != nil {
		conn.fireDisconnect()
	}
}

func (d *MemDevice) attach() *memConn {
	c := &memConn{device: d}
	d.mu.Lock()
	d.conn = c
	d.mu.Unlock()
	return c
}

// handleWrite records the frame and produces the firmware's response.
func (d *MemDevice) handleWrite(data []byte) error {
	d.mu.Lock()
	if err := d.writeErr; err != nil {
		d.mu.Unlock()
		return err
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	d.writes = append(d.writes, raw)
	battery := d.battery
	firmware := d.firmware
	d.mu.Unlock()

	frame, err := protocol.Decode(data)
	if err != nil {
		return nil // the real device silently ignores garbage writes
	}

	switch frame.Command {
	case protocol.Pairing:
		d.mu.Lock()
		d.pairingCode = frame.Payload
		d.mu.Unlock()

	case protocol.DeviceInfoQuery:
		payload := make([]byte, 4, 10)
		payload[0] = byte(battery)
		payload[1] = 1 // disconnect alarm enabled
		fw := make([]byte, 6)
		copy(fw, firmware)
		payload = append(payload, fw...)
		d.respond(protocol.DeviceInfoQuery, payload)

	case protocol.FindAlarm:
		d.respond(protocol.FindAlarm, []byte{0x01})

	case protocol.SosAlarm, protocol.AlarmStatusQuery:
		// The firmware echoes alarm commands back on the notify
		// characteristic with the same payload.
		d.respond(frame.Command, frame.Payload)
	}
	return nil
}

func (d *MemDevice) respond(cmd protocol.Command, payload []byte) {
	frame, err := protocol.Encode(cmd, payload)
	if err != nil {
		return
	}
	d.PushNotification(frame)
}

// memConn is one live connection to a MemDevice.
type memConn struct {
	device *MemDevice

	mu       sync.Mutex
	notify   func([]byte)
	onDisc   func()
	discOnce sync.Once
	closed   bool
}

func (c *memConn) DiscoverServices(_ context.Context) error {
	c.device.mu.Lock()
	defer c.device.mu.Unlock()
	return c.device.discoverErr
}

func (c *memConn) Write(_ context.Context, service, characteristic uint16, data []byte) error {
	if service != protocol.ServiceUUID || characteristic != protocol.WriteCharUUID {
		return fmt.Errorf("no such characteristic: %04X/%04X", service, characteristic)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return fmt.Errorf("connection closed")
	}
	return c.device.handleWrite(data)
}

func (c *memConn) Subscribe(service, characteristic uint16, notify func([]byte)) error {
	if service != protocol.ServiceUUID || characteristic != protocol.NotifyCharUUID {
		return fmt.Errorf("no such characteristic: %04X/%04X", service, characteristic)
	}
	c.device.mu.Lock()
	subErr := c.device.subscribeErr
	c.device.mu.Unlock()
	if subErr != nil {
		return subErr
	}
	c.mu.Lock()
	c.notify = notify
	c.mu.Unlock()
	return nil
}

func (c *memConn) OnDisconnected(fn func()) {
	c.mu.Lock()
	c.onDisc = fn
	c.mu.Unlock()
}

func (c *memConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.device.mu.Lock()
	if c.device.conn == c {
		c.device.conn = nil
	}
	c.device.mu.Unlock()

	c.fireDisconnect()
	return nil
}

func (c *memConn) deliver(data []byte) {
	c.mu.Lock()
	notify := c.notify
	closed := c.closed
	c.mu.Unlock()
	if notify != nil && !closed {
		notify(data)
	}
}

func (c *memConn) fireDisconnect() {
	c.discOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		fn := c.onDisc
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
