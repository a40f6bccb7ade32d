package pool

import "sync/atomic"

// This file documents and centralizes the three counter-update rules
// from spec.md §4.5. Counters are touched with sync/atomic so they can
// be read lock-free for metrics; every call site below is commented
// with which rule it implements.

// incOutstanding accounts for one ConnectRequest's pending-or-live
// fresh socket. Called exactly once per request, the first time it
// decides it must open a fresh connection (not once per retry — a
// failed attempt that is about to retry a different target keeps the
// same reservation rather than releasing and re-acquiring it, which
// would otherwise let two concurrent attempts for one request each
// hold a slot and over-count capacity during failover).
func (p *Pool) incOutstanding() {
	atomic.AddInt64(&p.outstanding, 1)
}

// decOutstanding releases a request's reservation: on resolver
// failure, terminal async connect failure, a retry completed by idle
// reuse, socket close via the on-close hook, pool dispose, or export
// failure on return. Idle-entry expiration releases it directly with
// an atomic add in destroyExpired.
func (p *Pool) decOutstanding() {
	atomic.AddInt64(&p.outstanding, -1)
}

// Outstanding returns the pool-wide in-flight-plus-idle count. Safe to
// call without the pool mutex; may be momentarily stale.
func (p *Pool) Outstanding() int64 {
	return atomic.LoadInt64(&p.outstanding)
}

// incRequestCount marks target idx as carrying one more in-flight
// socket: on target selection (balancer pick or single-target
// fallback) and on idle-entry checkout — both events happen together
// at the moment an attempt commits to a target, so this fires once per
// attempt, not twice.
func (t *target) incRequestCount() {
	atomic.AddInt64(&t.requestCount, 1)
}

// decRequestCount releases target idx's in-flight slot: on an attempt
// failing (sync or async), on the on-close hook firing for a live
// socket closed directly by its holder, and on Return.
func (t *target) decRequestCount() {
	atomic.AddInt64(&t.requestCount, -1)
}
