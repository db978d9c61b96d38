// Package events fans link events out to registered listeners.
//
// The Dispatcher keeps four independent listener sets: connection
// status, battery/device info, errors, and device-triggered alarms.
// Within a set, listeners run synchronously in registration order on the
// emitting goroutine; across sets no ordering is guaranteed. A slow
// listener delays everything behind it, so listeners must stay
// non-blocking and hand real work to their own goroutine or queue.
package events
