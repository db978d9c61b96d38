// Package database opens and maintains the SQLite store backing the
// link's persisted state.
//
// The store is deliberately tiny: a single key-value table holding the
// pairing code and the last-connected device reference. Bootstrap applies
// the schema idempotently on startup; there is no migration framework
// because there is nothing to migrate between.
//
// SQLite is opened with WAL mode and a busy timeout so the daemon's
// writer goroutine and any diagnostic reads coexist without lock errors.
package database
