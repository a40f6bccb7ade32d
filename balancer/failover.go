package balancer

import (
	"sync"
	"time"
)

// failoverMemory tracks consecutive failures per target index across
// requests (longer memory than a single ConnectRequest's tried[]
// bitmap) and applies a cooldown before offering a repeatedly-failing
// target again. Adapted from routing.FailoverState, reworked from
// provider names to target indices.
//
// This only biases selection order — it never refuses a connect or
// blocks a caller, so it does not implement admission control or
// backpressure.
type failoverMemory struct {
	mu        sync.Mutex
	failures  map[int]int
	lastFail  map[int]time.Time
	threshold int
	cooldown  time.Duration
}

func newFailoverMemory(threshold int, cooldown time.Duration) *failoverMemory {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &failoverMemory{
		failures:  make(map[int]int),
		lastFail:  make(map[int]time.Time),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

func (fs *failoverMemory) recordFailure(target int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failures[target]++
	fs.lastFail[target] = time.Now()
}

func (fs *failoverMemory) recordSuccess(target int) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.failures[target] = 0
}

// inCooldown reports whether target has exceeded its failure threshold
// and is still within its cooldown window.
func (fs *failoverMemory) inCooldown(target int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.failures[target] < fs.threshold {
		return false
	}
	last, ok := fs.lastFail[target]
	if !ok {
		return false
	}
	return time.Since(last) <= fs.cooldown
}
