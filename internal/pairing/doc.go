// Package pairing persists the two pieces of identity the link needs to
// survive a restart: the per-installation pairing code and the reference
// to the last-connected device.
//
// Persistence failures are deliberately non-fatal. The in-memory copy
// stays authoritative for the current process; a failed write only
// degrades the ability to reconnect after a restart.
package pairing
