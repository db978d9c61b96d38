// Package ble implements the link transport over a real BLE radio.
//
// The Adapter wraps tinygo.org/x/bluetooth (BlueZ on Linux) behind the
// link.Transport interface, so the manager never sees platform types.
// Scans filter on the wearable's advertised 16-bit service UUID before
// candidates reach the name filter. Every scan observation and every
// successful connect lands in the known-device cache, so KnownDevices
// can resolve a persisted pairing without a fresh scan — including after
// a restart, where the resume path connects by stored address alone.
//
// Radio-dependent behavior (scan, connect, GATT I/O) only runs
// meaningfully against hardware and has no unit tests; the manager's
// behavior is covered against link.MemTransport. The cache bookkeeping
// and error classification are plain state and are tested directly.
package ble
