package link

import "errors"

// Link error taxonomy. Transport adapters wrap their native failures in
// these sentinels so callers can branch with errors.Is regardless of the
// transport in use.
var (
	// ErrPermissionDenied means the OS refused radio access. Not retried.
	ErrPermissionDenied = errors.New("link: radio permission denied")

	// ErrRadioUnavailable means the radio is off or unsupported. Not retried.
	ErrRadioUnavailable = errors.New("link: radio unavailable")

	// ErrScanTimeout means a scan completed without a matching device.
	ErrScanTimeout = errors.New("link: scan found no matching device")

	// ErrConnectFailed covers transport connect and service discovery
	// failures.
	ErrConnectFailed = errors.New("link: connect failed")

	// ErrNotConnected is returned for commands issued without an active
	// link.
	ErrNotConnected = errors.New("link: not connected")

	// ErrWriteFailed means a characteristic write was rejected. State is
	// unchanged; the disconnect callback is authoritative.
	ErrWriteFailed = errors.New("link: characteristic write failed")

	// ErrBusy is returned when scan or connect is requested while
	// another lifecycle operation is in flight.
	ErrBusy = errors.New("link: operation already in progress")

	// ErrReconnectExhausted is emitted through the error listeners when
	// the bounded retry cycle gives up and clears the stored device.
	ErrReconnectExhausted = errors.New("link: reconnect attempts exhausted")

	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("link: manager closed")
)
