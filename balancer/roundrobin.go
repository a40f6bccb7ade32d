package balancer

import "sync"

// RoundRobin is the simplest Balancer: it cycles through target indices
// in order, skipping already-tried ones. It carries no health signal —
// use SLABalancer when upstream latency/error-rate should influence
// selection.
type RoundRobin struct {
	mu   sync.Mutex
	next int
}

// NewRoundRobin constructs a RoundRobin balancer.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

func (rr *RoundRobin) Init(targetCount int, conf any) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.next = 0
}

func (rr *RoundRobin) Dispose() {}

// Select returns the first untried index starting from the internal
// cursor, wrapping around. Panics if every entry in tried is already
// true — the pool never calls Select in that state.
func (rr *RoundRobin) Select(tried []bool, reqExtra any) int {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	n := len(tried)
	for i := 0; i < n; i++ {
		idx := (rr.next + i) % n
		if !tried[idx] {
			rr.next = (idx + 1) % n
			return idx
		}
	}
	panic("balancer: RoundRobin.Select called with all targets already tried")
}
