package pool

import "errors"

// Literal error strings surfaced to ConnectCallback, matching the
// upstream contract exactly so callers can compare by value.
//
// ErrStrFailedToConnect names the synchronous-failure kind from spec.md
// §7: a dial that could not even be initiated. transport.Loop.Connect
// always completes asynchronously (it is backed by net.Dialer), so no
// call site in this package produces it today; it is kept for a future
// Loop implementation that can fail synchronously (e.g. a connect that
// validates the address before ever reaching the network).
// ErrStrConnectionFailed is the terminal-after-retries kind: every
// target was tried and every attempt's dial failed.
const (
	ErrStrFailedToConnect  = "failed to connect to host"
	ErrStrConnectionFailed = "connection failed"
)

// ErrExportFailed is returned by Return when the socket could not be
// detached from its loop (e.g. it was already closed).
var ErrExportFailed = errors.New("pool: socket export failed")

// ErrNoTargets is returned by Connect on a specific pool built with an
// empty target list.
var ErrNoTargets = errors.New("pool: specific pool has no targets")
