package balancer

import (
	"time"

	"github.com/rs/zerolog"
)

// SLABalancerConfig configures per-target SLA thresholds. A nil or
// missing entry for a target index falls back to DefaultSLATarget.
type SLABalancerConfig struct {
	Targets            map[int]SLATarget
	FailureThreshold   int
	FailureCooldown    time.Duration
}

// SLABalancer selects the untried target with the best composite health
// score: EWMA latency, sliding-window error rate, and freshness, with a
// failoverMemory cooldown layered on top. Adapted from
// routing.SLABalancer, reworked to satisfy balancer.Balancer's
// Init/Dispose/Select capability set instead of a standalone
// SelectProvider method, and keyed by target index rather than provider
// name.
type SLABalancer struct {
	logger   zerolog.Logger
	health   []*targetHealth
	targets  map[int]SLATarget
	failover *failoverMemory
}

// NewSLABalancer constructs an SLA-aware balancer. logger may be the
// zero value (a no-op logger).
func NewSLABalancer(logger zerolog.Logger) *SLABalancer {
	return &SLABalancer{logger: logger.With().Str("component", "sla_balancer").Logger()}
}

func (lb *SLABalancer) Init(targetCount int, conf any) {
	cfg, _ := conf.(SLABalancerConfig)

	lb.health = make([]*targetHealth, targetCount)
	for i := range lb.health {
		lb.health[i] = newTargetHealth()
	}
	lb.targets = cfg.Targets
	lb.failover = newFailoverMemory(cfg.FailureThreshold, cfg.FailureCooldown)
}

func (lb *SLABalancer) Dispose() {}

// Select returns the untried, not-in-cooldown target with the highest
// composite score. If every untried target is in cooldown, cooldown is
// ignored so the request still makes progress (spec.md guarantees
// Select always returns an untried index).
func (lb *SLABalancer) Select(tried []bool, reqExtra any) int {
	best := -1
	bestScore := -1.0
	bestIgnoringCooldown := -1
	bestScoreIgnoringCooldown := -1.0

	for i, isTried := range tried {
		if isTried {
			continue
		}
		target := lb.targetFor(i)
		snap := lb.health[i].snapshot()
		score := computeScore(snap, target)

		if score > bestScoreIgnoringCooldown {
			bestScoreIgnoringCooldown = score
			bestIgnoringCooldown = i
		}
		if !lb.failover.inCooldown(i) && score > bestScore {
			bestScore = score
			best = i
		}
	}

	if best < 0 {
		best = bestIgnoringCooldown
	}

	lb.logger.Debug().Int("selected", best).Float64("score", bestScore).Msg("sla balancer selected target")
	return best
}

// RecordSuccess feeds a successful connect's latency back into scoring.
func (lb *SLABalancer) RecordSuccess(target int, latency time.Duration) {
	if target < 0 || target >= len(lb.health) {
		return
	}
	lb.health[target].recordLatency(float64(latency.Milliseconds()))
	lb.failover.recordSuccess(target)
}

// RecordFailure feeds a failed connect attempt back into scoring.
func (lb *SLABalancer) RecordFailure(target int) {
	if target < 0 || target >= len(lb.health) {
		return
	}
	lb.health[target].recordError()
	lb.failover.recordFailure(target)
}

func (lb *SLABalancer) targetFor(i int) SLATarget {
	if t, ok := lb.targets[i]; ok {
		return t
	}
	return DefaultSLATarget()
}
