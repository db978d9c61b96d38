package link

import (
	"context"
	"strings"
)

// Candidate is a device observed during a scan or recalled from the
// transport's known-device cache.
type Candidate struct {
	// ID is the transport-level address, stable across connections on
	// the same host.
	ID string

	// Name is the advertised device name, possibly empty.
	Name string

	// RSSI is the signal strength at observation time, 0 when unknown.
	RSSI int16
}

// Filter narrows a scan to the alarm's advertised service, optionally
// further restricted by a device name prefix.
type Filter struct {
	ServiceUUID uint16
	NamePrefix  string
}

// Match reports whether a candidate passes the name filter. Service
// filtering happens inside the transport during the scan; the name check
// lives here so fakes do not need to reimplement it.
func (f Filter) Match(c Candidate) bool {
	if f.NamePrefix == "" {
		return true
	}
	return strings.HasPrefix(c.Name, f.NamePrefix)
}

// ConnectOptions tune a transport connection attempt.
type ConnectOptions struct {
	// AutoReconnect asks the transport layer to re-establish the
	// physical link on its own. The manager keeps this off and handles
	// reconnection itself so backoff stays bounded and observable.
	AutoReconnect bool

	// MTU is the requested attribute MTU, 0 for the transport default.
	MTU int
}

// Transport is the radio stack the manager drives. Implementations:
// the BLE adapter in internal/transport/ble and the in-memory
// MemTransport in this package.
type Transport interface {
	// Ready reports whether the radio is usable. ErrRadioUnavailable
	// and ErrPermissionDenied (wrapped) are the expected failures.
	Ready() error

	// Scan streams matching candidates to found until ctx is done.
	// A nil return means the scan ended normally (context expiry
	// included); errors are radio-level failures.
	Scan(ctx context.Context, filter Filter, found func(Candidate)) error

	// Connect establishes a connection to a previously observed device.
	Connect(ctx context.Context, id string, opts ConnectOptions) (Conn, error)

	// KnownDevices resolves device IDs against the transport's cache of
	// previously seen peers without a fresh scan. Unknown IDs are
	// silently absent from the result.
	KnownDevices(ids []string) []Candidate
}

// Conn is one established device connection.
type Conn interface {
	// DiscoverServices enumerates the peer's services; required before
	// characteristic I/O.
	DiscoverServices(ctx context.Context) error

	// Write sends data to a characteristic. One write at a time; the
	// manager serializes callers.
	Write(ctx context.Context, service, characteristic uint16, data []byte) error

	// Subscribe registers notify as the sink for characteristic
	// notifications. notify is invoked from the transport's goroutine
	// and must not block.
	Subscribe(service, characteristic uint16, notify func(data []byte)) error

	// OnDisconnected registers fn to run once when the link drops,
	// whether peer-initiated or via Close.
	OnDisconnected(fn func())

	// Close tears the connection down. Idempotent.
	Close() error
}
