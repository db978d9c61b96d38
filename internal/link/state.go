package link

// State is the connection lifecycle state. The Manager is its sole
// writer; all transitions happen under the manager's lock.
type State uint8

const (
	// StateDisconnected is the rest state: no link, no scan in flight.
	StateDisconnected State = iota

	// StateScanning means a discovery pass is running.
	StateScanning

	// StateConnecting covers transport connect plus service discovery.
	StateConnecting

	// StateConnected means the link is up and commands may be sent.
	StateConnected

	// StateError is a transient reporting state entered on a failed
	// connect before settling back to StateDisconnected.
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
