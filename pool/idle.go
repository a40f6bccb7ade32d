package pool

import "github.com/alfred-infra/poolgateway/transport"

// entry is a PoolEntry: an idle, exported socket indexed in two
// intrusive chains at once — the pool-wide FIFO (for expiration) and
// its target's LIFO (for checkout). Chains are realized as prev/next
// entry-id pairs rather than pointers, since an entry's lifetime is
// owned by the arena (Pool.entries), not by either chain.
type entry struct {
	id       uint64
	exported *transport.Exported
	target   int
	addedAt  int64

	poolPrev, poolNext     uint64
	targetPrev, targetNext uint64
}

// poolListAppend inserts e at the tail of the pool-wide FIFO. Must be
// called with the pool mutex held.
func (p *Pool) poolListAppend(e *entry) {
	e.poolPrev = p.poolTail
	e.poolNext = 0
	if p.poolTail != 0 {
		p.entries[p.poolTail].poolNext = e.id
	}
	p.poolTail = e.id
	if p.poolHead == 0 {
		p.poolHead = e.id
	}
}

// poolListRemove unlinks e from the pool-wide FIFO regardless of its
// position. Must be called with the pool mutex held.
func (p *Pool) poolListRemove(e *entry) {
	if e.poolPrev != 0 {
		p.entries[e.poolPrev].poolNext = e.poolNext
	} else {
		p.poolHead = e.poolNext
	}
	if e.poolNext != 0 {
		p.entries[e.poolNext].poolPrev = e.poolPrev
	} else {
		p.poolTail = e.poolPrev
	}
	e.poolPrev, e.poolNext = 0, 0
}

// targetListPrepend inserts e at the head of t's LIFO, so the most
// recently returned socket is the first one checked out. Must be
// called with the pool mutex held.
func (p *Pool) targetListPrepend(t *target, e *entry) {
	e.targetNext = t.idleHead
	e.targetPrev = 0
	if t.idleHead != 0 {
		p.entries[t.idleHead].targetPrev = e.id
	}
	t.idleHead = e.id
	if t.idleTail == 0 {
		t.idleTail = e.id
	}
}

// targetListRemove unlinks e from t's LIFO regardless of its position
// (needed because expiration can remove an entry that isn't at the
// head of its target's list). Must be called with the pool mutex held.
func (p *Pool) targetListRemove(t *target, e *entry) {
	if e.targetPrev != 0 {
		p.entries[e.targetPrev].targetNext = e.targetNext
	} else {
		t.idleHead = e.targetNext
	}
	if e.targetNext != 0 {
		p.entries[e.targetNext].targetPrev = e.targetPrev
	} else {
		t.idleTail = e.targetPrev
	}
	e.targetPrev, e.targetNext = 0, 0
}

// insertIdle builds a new entry for a just-returned socket and inserts
// it into both chains: tail of pool-wide, head of per-target. Must be
// called with the pool mutex held.
func (p *Pool) insertIdle(targetIdx int, exported *transport.Exported, addedAt int64) {
	p.nextEntryID++
	e := &entry{id: p.nextEntryID, exported: exported, target: targetIdx, addedAt: addedAt}
	p.entries[e.id] = e
	p.poolListAppend(e)
	p.targetListPrepend(p.targets[targetIdx], e)
	p.idleCount++
}

// checkoutIdle pops the head of target idx's LIFO (the most recently
// returned socket) and removes it from both chains. Returns nil if the
// target has no idle entries. Must be called with the pool mutex held.
func (p *Pool) checkoutIdle(idx int) *entry {
	t := p.targets[idx]
	if t.idleHead == 0 {
		return nil
	}
	e := p.entries[t.idleHead]
	p.targetListRemove(t, e)
	p.poolListRemove(e)
	delete(p.entries, e.id)
	p.idleCount--
	return e
}

// drainIdle removes every entry from both chains unconditionally
// (dispose path) and returns them for the caller to close.
func (p *Pool) drainIdle() []*entry {
	var drained []*entry
	for p.poolHead != 0 {
		e := p.entries[p.poolHead]
		t := p.targets[e.target]
		p.targetListRemove(t, e)
		p.poolListRemove(e)
		delete(p.entries, e.id)
		p.idleCount--
		drained = append(drained, e)
	}
	return drained
}
