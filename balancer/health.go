package balancer

import (
	"math"
	"sync"
	"time"
)

// SLATarget defines the SLA thresholds scored against a target's
// observed health. Adapted from routing.SLATarget, reworked from a
// provider-name concept to a pool-target concept.
type SLATarget struct {
	// MaxP95LatencyMs is the latency ceiling in ms. Exceeding it degrades the score.
	MaxP95LatencyMs float64
	// MaxErrorRate is the acceptable error rate (0-1).
	MaxErrorRate float64
	// MinAvailability is the minimum health-check uptime ratio (0-1).
	MinAvailability float64
	// Weight is a static preference weight (1.0 = neutral, >1 = preferred).
	Weight float64
}

// DefaultSLATarget returns permissive, generally-safe SLA thresholds.
func DefaultSLATarget() SLATarget {
	return SLATarget{
		MaxP95LatencyMs: 5000,
		MaxErrorRate:    0.05,
		MinAvailability: 0.99,
		Weight:          1.0,
	}
}

// targetHealth tracks real-time health metrics for one target index.
// Adapted from routing.ProviderHealth.
type targetHealth struct {
	mu sync.Mutex

	ewmaLatencyMs float64
	ewmaAlpha     float64

	totalRequests int64
	totalErrors   int64
	windowStart   time.Time
	windowSize    time.Duration

	healthy bool

	penalty     float64
	penaltyTime time.Time
}

func newTargetHealth() *targetHealth {
	return &targetHealth{
		ewmaAlpha:   0.3,
		healthy:     true,
		windowStart: time.Now(),
		windowSize:  5 * time.Minute,
	}
}

func (h *targetHealth) recordLatency(ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ewmaLatencyMs == 0 {
		h.ewmaLatencyMs = ms
	} else {
		h.ewmaLatencyMs = h.ewmaAlpha*ms + (1-h.ewmaAlpha)*h.ewmaLatencyMs
	}
	h.totalRequests++
}

func (h *targetHealth) recordError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalErrors++
	h.totalRequests++
}

func (h *targetHealth) addPenalty(amount float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.penalty = math.Min(1.0, h.penalty+amount)
	h.penaltyTime = time.Now()
}

type healthSnapshot struct {
	ewmaLatencyMs float64
	errorRate     float64
	healthy       bool
	penalty       float64
	totalRequests int64
}

func (h *targetHealth) snapshot() healthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.windowStart) > h.windowSize {
		h.totalRequests = 0
		h.totalErrors = 0
		h.windowStart = time.Now()
	}

	currentPenalty := h.penalty
	if currentPenalty > 0 && !h.penaltyTime.IsZero() {
		elapsed := time.Since(h.penaltyTime).Minutes()
		currentPenalty = h.penalty * math.Exp(-elapsed/5.0)
		if currentPenalty < 0.01 {
			currentPenalty = 0
		}
	}

	errorRate := 0.0
	if h.totalRequests > 0 {
		errorRate = float64(h.totalErrors) / float64(h.totalRequests)
	}

	return healthSnapshot{
		ewmaLatencyMs: h.ewmaLatencyMs,
		errorRate:     errorRate,
		healthy:       h.healthy,
		penalty:       currentPenalty,
		totalRequests: h.totalRequests,
	}
}

// computeScore calculates a 0-1 composite score, higher is better.
// Formula adapted unchanged from routing.SLABalancer.computeScore,
// minus the availability term (the pool has no separate health-check
// channel to feed it — liveness is observed only via connect outcomes).
func computeScore(snap healthSnapshot, target SLATarget) float64 {
	if !snap.healthy {
		return 0
	}

	latencyScore := 1.0
	if snap.ewmaLatencyMs > 0 && target.MaxP95LatencyMs > 0 {
		ratio := snap.ewmaLatencyMs / target.MaxP95LatencyMs
		if ratio > 1.0 {
			latencyScore = math.Exp(-(ratio - 1.0) * 2.0)
		}
	}

	errorScore := 1.0
	if snap.totalRequests > 10 {
		if target.MaxErrorRate > 0 {
			ratio := snap.errorRate / target.MaxErrorRate
			if ratio > 1.0 {
				errorScore = math.Exp(-(ratio - 1.0) * 3.0)
			}
		} else if snap.errorRate > 0 {
			errorScore = 1.0 - snap.errorRate
		}
	}

	freshnessScore := 1.0
	if snap.totalRequests == 0 {
		freshnessScore = 0.5
	}

	composite := latencyScore*0.45 + errorScore*0.40 + freshnessScore*0.15

	weight := target.Weight
	if weight <= 0 {
		weight = 1.0
	}

	return composite * weight * (1.0 - snap.penalty)
}
