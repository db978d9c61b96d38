package link

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// errNoStoredDevice stops the retry cycle outright: with no persisted
// reference there is nothing to reconnect to.
var errNoStoredDevice = errors.New("link: no stored device to reconnect to")

// ReconnectPolicy bounds the automatic retry cycle after an unsolicited
// disconnect. The peer is a battery device that may legitimately be out
// of range for long stretches; unbounded immediate retry would burn the
// radio duty cycle for nothing.
type ReconnectPolicy struct {
	// BaseDelay is the delay after the first failed attempt; each
	// further failure doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the doubling.
	MaxDelay time.Duration

	// MaxAttempts is the number of connect attempts before the cycle
	// gives up and forgets the stored device.
	MaxAttempts int
}

// DefaultReconnectPolicy returns the stock bounds: 1s base delay doubling
// to a 30s cap, five attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// delay returns the backoff after the given failed attempt count
// (1-based): base * 2^(attempts-1), capped at MaxDelay.
func (p ReconnectPolicy) delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 32 {
		return p.MaxDelay
	}
	d := p.BaseDelay << uint(attempts-1)
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// cancelReconnectLocked invalidates any pending retry timer and any
// in-flight cycle, and resets the attempt counter. Caller holds mu.
func (m *Manager) cancelReconnectLocked() {
	m.retryGen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.attempts = 0
}

// reconnectCycle runs one automatic reconnect attempt and schedules the
// next on failure. gen pins the cycle to the disconnect that started it:
// an explicit Disconnect, a manual Connect or Close bumps the generation
// and orphans the cycle.
//
// The cycle only ever targets the persisted device reference, resolved
// through the transport's known-device cache — never a fresh scan.
func (m *Manager) reconnectCycle(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.retryGen {
		m.mu.Unlock()
		return
	}
	if m.state == StateConnected {
		// Raced a manual reconnect that already succeeded.
		m.attempts = 0
		m.mu.Unlock()
		return
	}
	if m.state != StateDisconnected {
		// A manual scan or connect is in flight; it supersedes us.
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.policy.MaxAttempts {
		m.attempts = 0
		m.retryTimer = nil
		m.mu.Unlock()

		m.logger.Warn("reconnect attempts exhausted, forgetting device",
			"attempts", m.policy.MaxAttempts)
		if err := m.store.ClearDeviceRef(context.Background()); err != nil {
			m.logger.Warn("clearing stored device reference failed", "error", err)
		}
		m.emitError(ErrReconnectExhausted)
		return
	}
	m.attempts++
	attempt := m.attempts
	m.retryTimer = nil
	m.state = StateConnecting
	m.mu.Unlock()

	m.emitStatus(StateConnecting, nil)

	attemptErr := m.tryStoredDevice(attempt)
	if attemptErr == nil {
		m.mu.Lock()
		m.attempts = 0
		m.mu.Unlock()
		m.stats.reconnects.Add(1)
		return
	}

	if errors.Is(attemptErr, errNoStoredDevice) {
		m.logger.Info("no stored device, stopping reconnect cycle")
		m.mu.Lock()
		m.cancelOp = nil
		m.attempts = 0
		m.state = StateDisconnected
		m.mu.Unlock()
		m.emitStatus(StateDisconnected, nil)
		return
	}

	delay := m.policy.delay(attempt)
	m.logger.Warn("reconnect attempt failed",
		"attempt", attempt, "retry_in", delay, "error", attemptErr)

	m.mu.Lock()
	m.cancelOp = nil
	if m.closed || gen != m.retryGen {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.retryTimer = m.newTimer(delay, func() { m.reconnectCycle(gen) })
	m.mu.Unlock()

	m.emitStatus(StateDisconnected, nil)
}

// tryStoredDevice resolves the persisted reference and runs one connect
// attempt against it.
func (m *Manager) tryStoredDevice(attempt int) error {
	ref, ok, err := m.store.LoadDeviceRef(context.Background())
	if err != nil {
		return fmt.Errorf("%w: loading stored device: %w", ErrConnectFailed, err)
	}
	if !ok {
		return errNoStoredDevice
	}

	known := m.transport.KnownDevices([]string{ref.ID})
	if len(known) == 0 {
		return fmt.Errorf("%w: device %s not in transport cache", ErrConnectFailed, ref.ID)
	}

	m.logger.Info("reconnecting to stored device",
		"device", ref.ID, "name", ref.Name, "attempt", attempt)

	ctx, cancel := context.WithTimeout(context.Background(), connectAttemptTimeout)
	defer cancel()

	// Expose the attempt to Disconnect so it can be cancelled mid-flight.
	m.mu.Lock()
	m.cancelOp = cancel
	m.mu.Unlock()

	return m.establish(ctx, known[0].ID)
}
