package abuse

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wolfman30/roofing-leads/pkg/logging"
)

const (
	DefaultRateLimitMax    = 5
	DefaultRateLimitWindow = 60 * time.Second
	// DefaultSweepThreshold is the entry count above which in-memory stores
	// are swept for stale records.
	DefaultSweepThreshold = 10000
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
}

// RateLimitConfig configures a fixed-window RateLimiter.
type RateLimitConfig struct {
	Max            int
	Window         time.Duration
	SweepThreshold int
}

// RateLimiter allows at most Max requests per client inside each fixed window.
// A window starts on the first request after the previous one expired.
type RateLimiter struct {
	store     WindowStore
	max       int
	window    time.Duration
	threshold int
	sweepAt   atomic.Int64
	logger    *logging.Logger
	now       func() time.Time
}

// NewRateLimiter creates a limiter over store. A nil store gets an in-memory one.
func NewRateLimiter(store WindowStore, cfg RateLimitConfig, logger *logging.Logger) *RateLimiter {
	if store == nil {
		store = NewMemoryWindowStore()
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultRateLimitMax
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultRateLimitWindow
	}
	if cfg.SweepThreshold <= 0 {
		cfg.SweepThreshold = DefaultSweepThreshold
	}
	if logger == nil {
		logger = logging.Default()
	}
	rl := &RateLimiter{
		store:     store,
		max:       cfg.Max,
		window:    cfg.Window,
		threshold: cfg.SweepThreshold,
		logger:    logger,
		now:       time.Now,
	}
	rl.sweepAt.Store(int64(cfg.SweepThreshold))
	return rl
}

// Window reports the configured window length, used for Retry-After hints.
func (rl *RateLimiter) Window() time.Duration {
	return rl.window
}

// Check counts one request for clientID. It never fails: when the backing
// store errors the request is let through and the error is logged.
func (rl *RateLimiter) Check(ctx context.Context, clientID string) Decision {
	if clientID == "" {
		clientID = "unknown"
	}
	now := rl.now()

	var decision Decision
	err := rl.store.Update(ctx, clientID, func(cur Window, found bool) (Window, bool) {
		if !found || now.After(cur.ResetAt) {
			decision = Decision{Allowed: true, Remaining: rl.max - 1}
			return Window{Count: 1, ResetAt: now.Add(rl.window)}, true
		}
		if cur.Count >= rl.max {
			decision = Decision{Allowed: false, Remaining: 0}
			return cur, false
		}
		cur.Count++
		decision = Decision{Allowed: true, Remaining: rl.max - cur.Count}
		return cur, true
	})
	if err != nil {
		rl.logger.Warn("rate limit store unavailable, allowing request", "error", err)
		return Decision{Allowed: true, Remaining: rl.max - 1}
	}

	rl.maybeSweep(now)
	return decision
}

func (rl *RateLimiter) maybeSweep(now time.Time) {
	sw, ok := rl.store.(Sweeper[Window])
	if !ok {
		return
	}
	size := sw.Len()
	if int64(size) <= rl.sweepAt.Load() {
		return
	}
	removed := sw.DeleteFunc(func(w Window) bool { return now.After(w.ResetAt) })
	rl.sweepAt.Store(int64(nextSweepMark(rl.threshold, size-removed)))
	rl.logger.Debug("rate limit store swept", "removed", removed, "remaining", size-removed)
}

// nextSweepMark keeps sweeps amortized when most entries are still live.
func nextSweepMark(threshold, remaining int) int {
	return max(threshold, remaining*2)
}
