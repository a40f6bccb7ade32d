package pool

import (
	"sync/atomic"
	"time"

	"github.com/alfred-infra/poolgateway/transport"
)

// expireTickInterval is the expiration timer's granularity. The coarse,
// once-a-second grain is sufficient because idle sockets are also
// probed live via MSG_PEEK at checkout (connect.go), which catches a
// peer-initiated close regardless of timer frequency.
const expireTickInterval = 1000 * time.Millisecond

// RegisterLoop binds the pool to a loop and arms the expiration timer.
// Idempotent: calling it again while already bound is a no-op, matching
// spec.md's "a second bind is a no-op."
func (p *Pool) RegisterLoop(loop transport.Loop) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loop != nil {
		return
	}
	p.loop = loop
	p.cancelTimer = loop.EveryMillis(expireTickInterval, p.onExpireTick)
}

// UnregisterLoop cancels the expiration timer and clears the binding.
func (p *Pool) UnregisterLoop() {
	p.mu.Lock()
	cancel := p.cancelTimer
	p.cancelTimer = nil
	p.loop = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// onExpireTick fires on every timer tick. It uses TryLock so a pool
// mid-operation on another goroutine is never stalled by the timer —
// a contended tick is simply skipped, matching spec.md's
// pthread_mutex_trylock discipline.
func (p *Pool) onExpireTick() {
	if !p.mu.TryLock() {
		return
	}
	defer p.mu.Unlock()

	if p.loop == nil {
		return
	}
	p.destroyExpired(p.loop.Now())
}

// destroyExpired drains the pool-wide FIFO head while its age has
// reached the configured idle timeout. With a zero or negative timeout
// this is a no-op and idle entries are never expired.
// Must be called with the pool mutex held.
func (p *Pool) destroyExpired(now int64) {
	if p.timeout <= 0 {
		return
	}
	cutoff := now - p.timeout.Milliseconds()

	for p.poolHead != 0 {
		e := p.entries[p.poolHead]
		if e.addedAt > cutoff {
			break
		}
		t := p.targets[e.target]
		p.targetListRemove(t, e)
		p.poolListRemove(e)
		delete(p.entries, e.id)
		p.idleCount--

		e.exported.Conn.Close()
		atomic.AddInt64(&p.outstanding, -1)
	}
}
