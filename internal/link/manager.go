package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flklr-dev/eva-link/internal/pairing"
	"github.com/flklr-dev/eva-link/internal/protocol"
)

const (
	// defaultScanTimeout bounds a discovery pass when the caller's
	// context carries no deadline of its own.
	defaultScanTimeout = 10 * time.Second

	// connectAttemptTimeout bounds a single automatic reconnect attempt.
	connectAttemptTimeout = 15 * time.Second

	// echoWindow is how long after a self-issued alarm command a
	// matching alarm notification is treated as the device echoing that
	// command rather than a physical trigger.
	echoWindow = 2 * time.Second
)

// Store is the persistence surface the manager needs: the pairing code
// and the last-connected device reference. Implemented by pairing.Store.
type Store interface {
	PairingCode(ctx context.Context) ([]byte, error)
	SaveDeviceRef(ctx context.Context, ref pairing.DeviceRef) error
	LoadDeviceRef(ctx context.Context) (pairing.DeviceRef, bool, error)
	ClearDeviceRef(ctx context.Context) error
}

// Compile-time check that the SQLite store satisfies the interface.
var _ Store = (*pairing.Store)(nil)

// Emitter is the event fan-out the manager pushes into. Implemented by
// events.Dispatcher; a nil emitter silently drops events.
type Emitter interface {
	EmitStatus(state State, device *Candidate)
	EmitBattery(info protocol.DeviceInfo)
	EmitError(err error)
	EmitAlarm(cmd protocol.Command)
}

// retryTimer is the slice of time.Timer the reconnect cycle needs. Tests
// substitute a fake to drive the backoff schedule deterministically.
type retryTimer interface {
	Stop() bool
}

// Manager owns the single logical connection to the wearable.
//
// All state transitions are serialized under mu, whether they originate
// from a caller (Scan, Connect, Disconnect) or from a transport callback
// (disconnect notification). Events are always emitted outside the lock
// so a listener may call back into the manager.
type Manager struct {
	transport Transport
	store     Store
	events    Emitter
	logger    *slog.Logger

	filter      Filter
	connectOpts ConnectOptions
	scanTimeout time.Duration
	policy      ReconnectPolicy

	// newTimer creates the reconnect retry timer; replaced in tests.
	newTimer func(d time.Duration, fn func()) retryTimer

	mu       sync.Mutex
	state    State
	conn     Conn
	device   *Candidate
	cancelOp context.CancelFunc
	closed   bool

	// Reconnect cycle state, guarded by mu. retryGen invalidates
	// pending timers and in-flight cycles when bumped.
	attempts   int
	retryGen   uint64
	retryTimer retryTimer

	// writeMu serializes characteristic writes; the peer exposes a
	// single shared write characteristic.
	writeMu sync.Mutex

	echoMu   sync.Mutex
	selfSent map[protocol.Command]time.Time

	stats stats
}

// NewManager wires a Manager over a transport, a persistence store and
// an event emitter. store must be non-nil; events may be nil.
func NewManager(transport Transport, store Store, events Emitter, opts ...Option) *Manager {
	m := &Manager{
		transport:   transport,
		store:       store,
		events:      events,
		logger:      slog.Default(),
		filter:      Filter{ServiceUUID: protocol.ServiceUUID},
		scanTimeout: defaultScanTimeout,
		policy:      DefaultReconnectPolicy(),
		state:       StateDisconnected,
		selfSent:    make(map[protocol.Command]time.Time),
	}
	m.newTimer = func(d time.Duration, fn func()) retryTimer {
		return time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Device returns the currently connected candidate, nil when not
// connected.
func (m *Manager) Device() *Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	c := *m.device
	return &c
}

// Stats returns a snapshot of the activity counters.
func (m *Manager) Stats() Stats {
	return m.stats.snapshot()
}

// Scan runs one discovery pass and returns the matching candidates.
//
// Only valid from StateDisconnected. Returns ErrScanTimeout when the
// pass completes without a match; radio failures from Ready surface
// unchanged. An explicit Disconnect during the scan stops it early.
func (m *Manager) Scan(ctx context.Context) ([]Candidate, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.state != StateDisconnected {
		st := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrBusy, st)
	}
	if err := m.transport.Ready(); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, m.scanTimeout)
	m.cancelOp = cancel
	m.state = StateScanning
	m.mu.Unlock()
	defer cancel()

	m.emitStatus(StateScanning, nil)

	var (
		foundMu sync.Mutex
		found   []Candidate
	)
	err := m.transport.Scan(scanCtx, m.filter, func(c Candidate) {
		if !m.filter.Match(c) {
			return
		}
		foundMu.Lock()
		found = append(found, c)
		foundMu.Unlock()
	})

	m.mu.Lock()
	m.cancelOp = nil
	// A Disconnect during the scan has already settled the state and
	// emitted for it; don't report the transition twice.
	superseded := m.state != StateScanning
	if !superseded {
		m.state = StateDisconnected
	}
	m.mu.Unlock()
	if !superseded {
		m.emitStatus(StateDisconnected, nil)
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		m.emitError(err)
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrScanTimeout
	}
	return found, nil
}

// Connect establishes the link to a scanned candidate and runs the
// connected-entry sequence: persist the device reference, subscribe to
// notifications, send the pairing code, query device info.
//
// Pairing or info-query failure does not revert the state; the link
// stays up and the failure is reported through the error listeners. A
// transport, service-discovery or notification-subscribe failure
// transitions through StateError back to StateDisconnected and returns
// a wrapped ErrConnectFailed.
func (m *Manager) Connect(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != StateDisconnected {
		st := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrBusy, st)
	}
	m.cancelReconnectLocked()

	cctx, cancel := context.WithCancel(ctx)
	m.cancelOp = cancel
	m.state = StateConnecting
	m.mu.Unlock()
	defer cancel()

	m.emitStatus(StateConnecting, nil)

	if err := m.establish(cctx, id); err != nil {
		m.failConnect(err)
		return err
	}
	return nil
}

// establish performs transport connect, service discovery and the
// connected-entry sequence. Shared by Connect and the reconnect cycle;
// the caller has already moved the state to StateConnecting.
func (m *Manager) establish(ctx context.Context, id string) error {
	if err := m.transport.Ready(); err != nil {
		return err
	}

	conn, err := m.transport.Connect(ctx, id, m.connectOpts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if err := conn.DiscoverServices(ctx); err != nil {
		conn.Close() //nolint:errcheck // Best effort on the failure path
		return fmt.Errorf("%w: service discovery: %w", ErrConnectFailed, err)
	}

	cand := Candidate{ID: id}
	if known := m.transport.KnownDevices([]string{id}); len(known) > 0 {
		cand = known[0]
	}

	ref := pairing.DeviceRef{ID: cand.ID, Name: cand.Name, LastSeen: time.Now().UTC()}
	if err := m.store.SaveDeviceRef(ctx, ref); err != nil {
		m.logger.Warn("persisting device reference failed", "error", err)
		m.emitError(err)
	}

	// An alarm link that cannot hear the device is useless; a failed
	// notification subscribe fails the whole attempt.
	if err := conn.Subscribe(protocol.ServiceUUID, protocol.NotifyCharUUID, m.handleNotification); err != nil {
		conn.Close() //nolint:errcheck // Best effort on the failure path
		return fmt.Errorf("%w: subscribe: %w", ErrConnectFailed, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close() //nolint:errcheck
		return ErrClosed
	}
	if m.state != StateConnecting {
		// A concurrent Disconnect superseded this attempt.
		m.mu.Unlock()
		conn.Close() //nolint:errcheck
		return fmt.Errorf("%w: attempt superseded by disconnect", ErrConnectFailed)
	}
	m.cancelOp = nil
	m.conn = conn
	c := cand
	m.device = &c
	m.state = StateConnected
	m.mu.Unlock()

	conn.OnDisconnected(func() { m.handleDisconnect(conn) })

	m.stats.connects.Add(1)
	m.logger.Info("link established", "device", cand.ID, "name", cand.Name)
	m.emitStatus(StateConnected, &c)

	m.enterConnected(ctx, conn)
	return nil
}

// enterConnected runs the post-connect steps. Each step may fail
// independently without reverting the connection.
func (m *Manager) enterConnected(ctx context.Context, conn Conn) {
	code, err := m.store.PairingCode(ctx)
	if err != nil {
		m.logger.Error("pairing code unavailable, continuing unpaired", "error", err)
		m.emitError(err)
	} else if err := m.writeCommand(ctx, conn, protocol.Pairing, code); err != nil {
		m.logger.Warn("pairing write failed, continuing unpaired", "error", err)
		m.emitError(err)
	}

	if err := m.writeCommand(ctx, conn, protocol.DeviceInfoQuery, nil); err != nil {
		m.logger.Warn("device info query failed", "error", err)
		m.emitError(err)
	}
}

// Disconnect tears the link down on behalf of the caller: cancels any
// in-flight scan or connect, stops a pending reconnect timer, closes the
// connection and forgets the stored device reference.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	m.cancelReconnectLocked()
	if m.cancelOp != nil {
		m.cancelOp()
		m.cancelOp = nil
	}
	conn := m.conn
	m.conn = nil
	m.device = nil
	wasDisconnected := m.state == StateDisconnected
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Warn("closing connection", "error", err)
		}
	}
	if !wasDisconnected {
		m.logger.Info("link disconnected by caller")
		m.emitStatus(StateDisconnected, nil)
	}

	if err := m.store.ClearDeviceRef(ctx); err != nil {
		m.logger.Warn("clearing stored device reference failed", "error", err)
		m.emitError(err)
	}
	return nil
}

// Close shuts the manager down for process exit. Unlike Disconnect it
// keeps the stored device reference so the link resumes after a restart.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancelReconnectLocked()
	if m.cancelOp != nil {
		m.cancelOp()
		m.cancelOp = nil
	}
	conn := m.conn
	m.conn = nil
	m.device = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			return fmt.Errorf("closing connection: %w", err)
		}
	}
	return nil
}

// SendCommand encodes and writes a command frame to the device.
//
// Valid only while connected; returns ErrNotConnected otherwise. A write
// failure is reported through the error listeners and returned, but does
// not change the connection state: the transport's disconnect callback
// is authoritative.
func (m *Manager) SendCommand(ctx context.Context, cmd protocol.Command, payload []byte) error {
	m.mu.Lock()
	conn := m.conn
	st := m.state
	m.mu.Unlock()

	if st != StateConnected || conn == nil {
		return fmt.Errorf("%w: state %s", ErrNotConnected, st)
	}

	if err := m.writeCommand(ctx, conn, cmd, payload); err != nil {
		m.emitError(err)
		return err
	}
	return nil
}

// writeCommand encodes and writes one frame, serialized on writeMu.
func (m *Manager) writeCommand(ctx context.Context, conn Conn, cmd protocol.Command, payload []byte) error {
	frame, err := protocol.Encode(cmd, payload)
	if err != nil {
		return err
	}

	// Recorded before the write: the device may echo the command on the
	// notify characteristic before Write returns.
	m.recordSelfIssued(cmd)

	m.writeMu.Lock()
	err = conn.Write(ctx, protocol.ServiceUUID, protocol.WriteCharUUID, frame)
	m.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, cmd, err)
	}

	m.stats.framesSent.Add(1)
	return nil
}

// handleDisconnect is the transport's disconnect callback. Runs once per
// connection; stale callbacks (the connection was already replaced or
// torn down by the caller) are ignored.
func (m *Manager) handleDisconnect(conn Conn) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.device = nil
	m.state = StateDisconnected
	closed := m.closed
	gen := m.retryGen
	m.mu.Unlock()

	m.stats.disconnects.Add(1)
	m.emitStatus(StateDisconnected, nil)

	if closed {
		return
	}
	m.logger.Info("link dropped unexpectedly, starting reconnect cycle")
	go m.reconnectCycle(gen)
}

// handleNotification decodes one inbound frame and routes it. Malformed
// frames are logged and dropped; a corrupt frame must not take down an
// otherwise healthy connection.
func (m *Manager) handleNotification(data []byte) {
	frame, err := protocol.Decode(data)
	if err != nil {
		m.stats.framesDropped.Add(1)
		m.logger.Warn("dropping malformed notification", "error", err, "bytes", len(data))
		return
	}
	m.stats.framesReceived.Add(1)

	switch frame.Command {
	case protocol.DeviceInfoQuery:
		info, err := protocol.DecodeDeviceInfo(frame.Payload)
		if err != nil {
			m.stats.framesDropped.Add(1)
			m.logger.Warn("dropping malformed device info", "error", err)
			return
		}
		m.logger.Debug("device info received",
			"battery", info.BatteryLevel, "firmware", info.FirmwareVersion)
		m.emitBattery(info)

	case protocol.SosAlarm, protocol.AlarmStatusQuery:
		// A nonzero first payload byte signals the wearer physically
		// triggered the alarm. The device also echoes our own alarm
		// commands with the same shape; those are filtered out.
		if len(frame.Payload) == 0 || frame.Payload[0] == 0 {
			return
		}
		if m.suppressEcho(frame.Command) {
			m.logger.Debug("suppressing echo of self-issued command", "command", frame.Command.String())
			return
		}
		m.logger.Info("device-triggered alarm", "command", frame.Command.String())
		m.emitAlarm(frame.Command)

	case protocol.FindAlarm:
		if len(frame.Payload) > 0 && frame.Payload[0] == 0 {
			m.logger.Warn("device rejected find-alarm request")
			m.emitError(errors.New("link: device rejected find-alarm request"))
			return
		}
		m.logger.Debug("find-alarm acknowledged")

	default:
		if !frame.Command.Known() {
			m.logger.Warn("ignoring unknown command",
				"command", fmt.Sprintf("0x%02X", byte(frame.Command)))
			return
		}
		m.logger.Debug("notification", "command", frame.Command.String())
	}
}

// failConnect reports a failed connect attempt: transiently through
// StateError, then settling at StateDisconnected. An attempt superseded
// by a caller-initiated Disconnect has already been settled there and is
// not an error worth reporting.
func (m *Manager) failConnect(err error) {
	m.mu.Lock()
	m.cancelOp = nil
	if m.state != StateConnecting {
		m.mu.Unlock()
		m.logger.Debug("connect attempt superseded", "error", err)
		return
	}
	m.state = StateError
	m.mu.Unlock()

	m.logger.Error("connect failed", "error", err)
	m.emitError(err)
	m.emitStatus(StateError, nil)

	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
	m.emitStatus(StateDisconnected, nil)
}

// recordSelfIssued notes the send time of commands the device is known
// to echo, for the notification-side suppression window.
func (m *Manager) recordSelfIssued(cmd protocol.Command) {
	if cmd != protocol.SosAlarm && cmd != protocol.AlarmStatusQuery {
		return
	}
	m.echoMu.Lock()
	m.selfSent[cmd] = time.Now()
	m.echoMu.Unlock()
}

// suppressEcho consumes a pending self-issued record for cmd if the
// notification arrived within the echo window.
func (m *Manager) suppressEcho(cmd protocol.Command) bool {
	m.echoMu.Lock()
	defer m.echoMu.Unlock()

	sent, ok := m.selfSent[cmd]
	if !ok {
		return false
	}
	delete(m.selfSent, cmd)
	return time.Since(sent) <= echoWindow
}

func (m *Manager) emitStatus(state State, device *Candidate) {
	if m.events != nil {
		m.events.EmitStatus(state, device)
	}
}

func (m *Manager) emitBattery(info protocol.DeviceInfo) {
	if m.events != nil {
		m.events.EmitBattery(info)
	}
}

func (m *Manager) emitError(err error) {
	if m.events != nil {
		m.events.EmitError(err)
	}
}

func (m *Manager) emitAlarm(cmd protocol.Command) {
	if m.events != nil {
		m.events.EmitAlarm(cmd)
	}
}
