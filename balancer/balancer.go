// Package balancer defines the pluggable target-selection policy the
// pool consults on every connect attempt, plus two concrete policies:
// RoundRobin and SLABalancer.
package balancer

// Balancer is the capability set a pool-bound load-balancing policy must
// implement. The pool treats Balancer state as mutex-protected shared
// state: Select is always called with the pool's lock held.
type Balancer interface {
	// Init is called once, when a specific pool with more than one
	// target is constructed.
	Init(targetCount int, conf any)

	// Dispose releases any resources held by the balancer. Called once,
	// during pool disposal.
	Dispose()

	// Select returns the index of an untried target. tried[i] is true
	// for every target index already attempted on this ConnectRequest.
	// Select must never return an index where tried[i] is true —
	// doing so is a programming error and the pool will panic.
	// reqExtra is the opaque per-request value passed to Connect,
	// useful for stickiness (e.g. consistent hashing on a session key).
	Select(tried []bool, reqExtra any) int
}
