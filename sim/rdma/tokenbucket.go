package rdma

import "github.com/rmemtree/rmemtree-sim/sim"

// TokenBucket is a continuous-refill rate limiter: rateOpsPerUS tokens
// accrue per microsecond up to burst, and acquire spends the requested
// tokens, returning the time at which they became available (spec §4.2
// step 4).
type TokenBucket struct {
	rateOpsPerUS float64
	burst        float64
	tokens       float64
	lastRefill   sim.SimTime
	initialized  bool
}

// init lazily configures the bucket from ops/s and burst, seeding it full
// at `now` — matching the original's TokenBucket::init.
func (tb *TokenBucket) init(opsPerSec, burst float64, now sim.SimTime) {
	tb.rateOpsPerUS = opsPerSec / 1e6
	tb.burst = burst
	tb.tokens = burst
	tb.lastRefill = now
	tb.initialized = true
}

// acquire spends `need` tokens starting no earlier than `now`, refilling
// first. If insufficient tokens are available it returns a future time at
// which the deficit will have been repaid by the refill rate.
func (tb *TokenBucket) acquire(need float64, now sim.SimTime) sim.SimTime {
	tb.tokens = min(tb.burst, tb.tokens+float64(now-tb.lastRefill)*tb.rateOpsPerUS)
	tb.lastRefill = now
	if tb.tokens >= need {
		tb.tokens -= need
		return now
	}
	deficit := need - tb.tokens
	waitUS := deficit / tb.rateOpsPerUS
	tb.tokens = 0
	tb.lastRefill = now + sim.SimTime(waitUS)
	return now + sim.SimTime(waitUS)
}
