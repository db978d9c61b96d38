package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/flklr-dev/eva-link/internal/link"
)

var (
	_ link.Transport = (*Adapter)(nil)
	_ link.Conn      = (*conn)(nil)
)

// Adapter drives the host's BLE radio through tinygo.org/x/bluetooth
// (BlueZ on Linux). One Adapter serves the whole daemon; the underlying
// stack owns a single radio handle.
type Adapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error

	mu    sync.Mutex
	seen  map[string]link.Candidate
	conns map[string]*conn
}

// New creates an adapter over the platform's default radio. The radio is
// not touched until Ready, Scan or Connect is called.
func New() *Adapter {
	return &Adapter{
		adapter: bluetooth.DefaultAdapter,
		seen:    make(map[string]link.Candidate),
		conns:   make(map[string]*conn),
	}
}

// Ready implements link.Transport. The first call enables the radio and
// installs the disconnect handler; later calls return the cached result.
func (a *Adapter) Ready() error {
	a.enableOnce.Do(func() {
		if err := a.adapter.Enable(); err != nil {
			a.enableErr = classifyEnableError(err)
			return
		}
		a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			a.mu.Lock()
			c := a.conns[device.Address.String()]
			delete(a.conns, device.Address.String())
			a.mu.Unlock()
			if c != nil {
				c.fireDisconnect()
			}
		})
	})
	return a.enableErr
}

// Scan implements link.Transport. Advertisements missing the filter's
// service UUID are dropped before the name check. The scan runs until
// ctx ends; context expiry is a normal return, not an error.
func (a *Adapter) Scan(ctx context.Context, filter link.Filter, found func(link.Candidate)) error {
	if err := a.Ready(); err != nil {
		return err
	}

	serviceUUID := bluetooth.New16BitUUID(filter.ServiceUUID)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if filter.ServiceUUID != 0 && !result.HasServiceUUID(serviceUUID) {
				return
			}
			c := link.Candidate{
				ID:   result.Address.String(),
				Name: result.LocalName(),
				RSSI: result.RSSI,
			}
			if !filter.Match(c) {
				return
			}
			a.remember(c)
			found(c)
		})
	}()

	select {
	case <-ctx.Done():
		_ = a.adapter.StopScan()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: scan: %v", link.ErrRadioUnavailable, err)
		}
		return nil
	}
}

// Connect implements link.Transport. AutoReconnect and MTU hints are
// accepted but not forwarded: BlueZ negotiates the MTU itself and the
// manager owns reconnection, so the stack-level auto-reconnect stays off.
func (a *Adapter) Connect(ctx context.Context, id string, opts link.ConnectOptions) (link.Conn, error) {
	if err := a.Ready(); err != nil {
		return nil, err
	}

	mac, err := bluetooth.ParseMAC(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad address %q: %v", link.ErrConnectFailed, id, err)
	}

	var params bluetooth.ConnectionParams
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	device, err := a.adapter.Connect(bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", link.ErrConnectFailed, err)
	}

	c := &conn{
		adapter: a,
		device:  device,
		id:      id,
		chars:   make(map[uint32]bluetooth.DeviceCharacteristic),
	}
	// A connect that never went through a scan (stored-pairing resume
	// after a restart) must still land in the known-device cache, or the
	// reconnect cycle has nothing to resolve after the next drop.
	a.rememberConnected(id)
	a.mu.Lock()
	a.conns[id] = c
	a.mu.Unlock()
	return c, nil
}

// KnownDevices implements link.Transport. The cache holds every device
// observed by a scan or successfully connected in this process; it does
// not reach into the OS pairing database.
func (a *Adapter) KnownDevices(ids []string) []link.Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []link.Candidate
	for _, id := range ids {
		if c, ok := a.seen[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (a *Adapter) remember(c link.Candidate) {
	a.mu.Lock()
	a.seen[c.ID] = c
	a.mu.Unlock()
}

// rememberConnected caches a device known only by address. A richer
// scan-provided entry (name, RSSI) is kept if one exists.
func (a *Adapter) rememberConnected(id string) {
	a.mu.Lock()
	if _, ok := a.seen[id]; !ok {
		a.seen[id] = link.Candidate{ID: id}
	}
	a.mu.Unlock()
}

func (a *Adapter) forget(id string, c *conn) {
	a.mu.Lock()
	if a.conns[id] == c {
		delete(a.conns, id)
	}
	a.mu.Unlock()
}

// classifyEnableError folds BlueZ/D-Bus failures into the two sentinel
// classes the manager distinguishes: permission problems are terminal,
// everything else reads as the radio being off or absent.
func classifyEnableError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") ||
		strings.Contains(msg, "denied") ||
		strings.Contains(msg, "not authorized") {
		return fmt.Errorf("%w: %v", link.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %v", link.ErrRadioUnavailable, err)
}

// conn is one established GATT connection.
type conn struct {
	adapter *Adapter
	device  bluetooth.Device
	id      string

	mu     sync.Mutex
	chars  map[uint32]bluetooth.DeviceCharacteristic
	onDisc func()

	discOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

func charKey(service, characteristic uint16) uint32 {
	return uint32(service)<<16 | uint32(characteristic)
}

// DiscoverServices implements link.Conn. All services and their
// characteristics are enumerated in one pass; later Write and Subscribe
// calls resolve against the resulting table.
func (c *conn) DiscoverServices(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", link.ErrConnectFailed, err)
	}

	services, err := c.device.DiscoverServices(nil)
	if err != nil {
		return fmt.Errorf("%w: service discovery: %v", link.ErrConnectFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, service := range services {
		if !service.UUID().Is16Bit() {
			continue
		}
		chars, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return fmt.Errorf("%w: characteristic discovery: %v", link.ErrConnectFailed, err)
		}
		for _, char := range chars {
			if !char.UUID().Is16Bit() {
				continue
			}
			c.chars[charKey(service.UUID().Get16Bit(), char.UUID().Get16Bit())] = char
		}
	}
	return nil
}

// Write implements link.Conn using a write-with-response, so an error
// return means the peer never acknowledged the frame.
func (c *conn) Write(ctx context.Context, service, characteristic uint16, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", link.ErrWriteFailed, err)
	}

	char, ok := c.lookup(service, characteristic)
	if !ok {
		return fmt.Errorf("%w: characteristic %04x/%04x not discovered", link.ErrWriteFailed, service, characteristic)
	}
	if _, err := char.Write(data); err != nil {
		return fmt.Errorf("%w: %v", link.ErrWriteFailed, err)
	}
	return nil
}

// Subscribe implements link.Conn. notify runs on the BlueZ event
// goroutine, so the manager's handler must hand off quickly.
func (c *conn) Subscribe(service, characteristic uint16, notify func(data []byte)) error {
	char, ok := c.lookup(service, characteristic)
	if !ok {
		return fmt.Errorf("%w: characteristic %04x/%04x not discovered", link.ErrConnectFailed, service, characteristic)
	}
	if err := char.EnableNotifications(notify); err != nil {
		return fmt.Errorf("%w: enable notifications: %v", link.ErrConnectFailed, err)
	}
	return nil
}

// OnDisconnected implements link.Conn.
func (c *conn) OnDisconnected(fn func()) {
	c.mu.Lock()
	c.onDisc = fn
	c.mu.Unlock()
}

// Close implements link.Conn. Safe to call more than once and after a
// peer-initiated drop.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.adapter.forget(c.id, c)
		c.closeErr = c.device.Disconnect()
		c.fireDisconnect()
	})
	return c.closeErr
}

func (c *conn) lookup(service, characteristic uint16) (bluetooth.DeviceCharacteristic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	char, ok := c.chars[charKey(service, characteristic)]
	return char, ok
}

func (c *conn) fireDisconnect() {
	c.discOnce.Do(func() {
		c.mu.Lock()
		fn := c.onDisc
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
