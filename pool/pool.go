// Package pool implements a reusable outbound-connection pool for an
// HTTP-style reverse proxy or upstream client: pooled-socket lifecycle
// (keep-alive insertion, idle expiration, liveness probing), an
// asynchronous connect pipeline (target selection, idle reuse, name
// resolution, TCP connect, retry, callback dispatch), and the
// concurrency accounting tying the two together.
package pool

import (
	"net/url"
	"sync"
	"time"

	"github.com/alfred-infra/poolgateway/balancer"
	"github.com/alfred-infra/poolgateway/transport"
	"github.com/rs/zerolog"
)

// defaultIdleTimeout is the keep-alive window every pool starts with.
// A zero timeout disables keep-alive: CanKeepalive reports false and
// idle entries are never expired. Return itself does not check the
// timeout and inserts the entry either way.
const defaultIdleTimeout = 2000 * time.Millisecond

// Pool is an outbound-connection pool bound to either a fixed set of
// targets ("specific") or growing on demand as new origins are seen
// ("global"). The zero value is not usable; construct with
// InitSpecific or InitGlobal.
type Pool struct {
	mu sync.Mutex

	targets []*target
	global  bool

	// Pool-wide idle-entry FIFO anchor (0 = empty). Per-target anchors
	// live on each target.
	poolHead, poolTail uint64
	entries            map[uint64]*entry
	nextEntryID        uint64
	idleCount          int

	outstanding int64

	timeout  time.Duration
	capacity int

	balancer balancer.Balancer

	loop        transport.Loop
	cancelTimer func()

	onNewTarget func(u *url.URL)

	logger zerolog.Logger
}

// SetOnNewTarget installs the hook invoked (outside the pool mutex)
// whenever a global pool appends a target for a URL it has not seen
// before — the attachment point for a seed cache like targetcache.
func (p *Pool) SetOnNewTarget(fn func(u *url.URL)) {
	p.mu.Lock()
	p.onNewTarget = fn
	p.mu.Unlock()
}

// SeedTarget pre-registers a target on a global pool without issuing a
// connect, so a freshly started replica can warm its target vector
// from a seed cache before traffic arrives.
func (p *Pool) SeedTarget(u *url.URL) {
	if !p.global {
		panic("pool: SeedTarget called on a specific pool")
	}
	p.mu.Lock()
	if p.lookupTarget(u) < 0 {
		p.addTarget(u)
	}
	p.mu.Unlock()
}

// InitSpecific builds a pool over a fixed target list, subject to load
// balancing across them. lb may be nil, in which case a single-target
// fallback (always target 0) is used regardless of how many origins
// were given — matching spec.md's "single-target fallback" branch.
func InitSpecific(capacity int, origins []*url.URL, lb balancer.Balancer, lbConf any, perTargetConf []any, logger zerolog.Logger) *Pool {
	targets := make([]*target, len(origins))
	for i, origin := range origins {
		var tConf any
		if i < len(perTargetConf) {
			tConf = perTargetConf[i]
		}
		targets[i] = initTarget(origin, tConf)
	}
	p := commonInit(capacity, targets, false, logger)
	if len(targets) > 1 && lb != nil {
		p.balancer = lb
		p.balancer.Init(len(targets), lbConf)
	}
	return p
}

// InitGlobal builds a pool that grows on demand as new origin URLs are
// seen via Connect. Global pools never consult a balancer — each URL
// maps to exactly one target.
func InitGlobal(capacity int, logger zerolog.Logger) *Pool {
	return commonInit(capacity, nil, true, logger)
}

func commonInit(capacity int, targets []*target, global bool, logger zerolog.Logger) *Pool {
	return &Pool{
		targets:     targets,
		global:      global,
		entries:     make(map[uint64]*entry),
		timeout:     defaultIdleTimeout,
		capacity:    capacity,
		logger:      logger.With().Str("component", "pool").Logger(),
	}
}

// Dispose tears the pool down: drains idle entries, disposes the
// balancer, unregisters the loop timer, and disposes each target. The
// balancer-datum-before-target free order fixes the source bug spec.md
// §9 documents (dispose_target dereferencing freed memory).
func (p *Pool) Dispose() {
	p.mu.Lock()
	drained := p.drainIdle()
	for range drained {
		p.decOutstanding()
	}
	bal := p.balancer
	p.balancer = nil
	targets := p.targets
	p.targets = nil
	p.mu.Unlock()

	for _, e := range drained {
		e.exported.Conn.Close()
	}
	if bal != nil {
		bal.Dispose()
	}
	p.UnregisterLoop()
	for _, t := range targets {
		disposeTarget(t)
	}
}

// disposeTarget releases a target's balancer-visible datum before
// clearing the struct itself — spec.md §9's fixed free order ("free
// balancer datum, then free target"), unlike the source's
// use-after-free ordering.
func disposeTarget(t *target) {
	t.balancerData = nil
	t.idleHead, t.idleTail = 0, 0
}

// Return hands a live socket back to the pool as an idle entry. The
// socket's OnCloseData identifies which target it belongs to; the
// on-close hook is cleared before exporting so a later expiration
// close doesn't re-fire the in-flight accounting that hook applies to
// a still-attached socket.
func (p *Pool) Return(sock transport.Socket) error {
	cd, _ := sock.OnCloseData().(*closeData)
	if cd == nil {
		return ErrExportFailed
	}
	if cd.pool != p {
		panic("pool: Return called with a socket belonging to a different pool")
	}

	p.mu.Lock()
	p.targets[cd.targetIdx].decRequestCount()
	p.mu.Unlock()
	sock.SetOnClose(nil, nil)

	exported, err := sock.Export()
	if err != nil {
		p.mu.Lock()
		p.decOutstanding()
		p.mu.Unlock()
		return ErrExportFailed
	}

	p.mu.Lock()
	now := p.now()
	p.destroyExpired(now)
	p.insertIdle(cd.targetIdx, exported, now)
	p.mu.Unlock()

	return nil
}

// CanKeepalive reports whether returned sockets are retained for reuse
// at all (timeout > 0).
func (p *Pool) CanKeepalive() bool {
	return p.timeout > 0
}

// Len reports the pool-wide in-flight-plus-idle count. Capacity is
// advisory only (spec.md §9 Open Question 1): it is never enforced,
// only exposed for observability.
func (p *Pool) Len() int64 {
	return p.Outstanding()
}

// Capacity returns the advisory capacity configured at construction.
func (p *Pool) Capacity() int {
	return p.capacity
}

// now returns the bound loop's monotonic clock, or a wall-clock
// fallback in milliseconds if no loop is registered yet (entries
// inserted before RegisterLoop still need a comparable timestamp).
func (p *Pool) now() int64 {
	if p.loop != nil {
		return p.loop.Now()
	}
	return time.Now().UnixMilli()
}
