// Package link owns the logical connection to the wearable alarm.
//
// A single Manager drives the radio transport through its full lifecycle:
// scan, connect, service discovery, pairing, monitoring and disconnect.
// The manager is the sole writer of the connection state; transport
// callbacks and caller-initiated transitions are serialized through the
// same lock. Unexpected disconnects are retried against the persisted
// device reference with bounded exponential backoff.
//
// The transport itself (radio discovery, characteristic I/O, OS
// permissions) sits behind the Transport and Conn interfaces so the
// manager's logic is identical against real hardware and the in-memory
// fake used in tests.
package link
