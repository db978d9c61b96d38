package link

import (
	"log/slog"
	"time"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithFilter sets the scan filter. The default filters on the alarm's
// service UUID with no name restriction.
func WithFilter(f Filter) Option {
	return func(m *Manager) {
		m.filter = f
	}
}

// WithConnectOptions sets the transport connect options.
func WithConnectOptions(o ConnectOptions) Option {
	return func(m *Manager) {
		m.connectOpts = o
	}
}

// WithScanTimeout bounds a discovery pass. Defaults to 10s.
func WithScanTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.scanTimeout = d
		}
	}
}

// WithReconnectPolicy overrides the backoff bounds for automatic
// reconnection.
func WithReconnectPolicy(p ReconnectPolicy) Option {
	return func(m *Manager) {
		if p.BaseDelay > 0 && p.MaxDelay > 0 && p.MaxAttempts > 0 {
			m.policy = p
		}
	}
}
