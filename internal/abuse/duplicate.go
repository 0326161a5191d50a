package abuse

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wolfman30/roofing-leads/pkg/logging"
)

// DefaultDuplicateWindow is how long a phone number stays "seen".
const DefaultDuplicateWindow = 24 * time.Hour

// DuplicateConfig configures a DuplicateDetector.
type DuplicateConfig struct {
	Window         time.Duration
	SweepThreshold int
}

// DuplicateDetector flags repeat submissions of the same phone number.
// A duplicate hit does not refresh the stored time, so the window always runs
// from the first accepted submission.
type DuplicateDetector struct {
	store     SeenStore
	window    time.Duration
	threshold int
	sweepAt   atomic.Int64
	logger    *logging.Logger
	now       func() time.Time
}

// NewDuplicateDetector creates a detector over store. A nil store gets an
// in-memory one.
func NewDuplicateDetector(store SeenStore, cfg DuplicateConfig, logger *logging.Logger) *DuplicateDetector {
	if store == nil {
		store = NewMemorySeenStore()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultDuplicateWindow
	}
	if cfg.SweepThreshold <= 0 {
		cfg.SweepThreshold = DefaultSweepThreshold
	}
	if logger == nil {
		logger = logging.Default()
	}
	d := &DuplicateDetector{
		store:     store,
		window:    cfg.Window,
		threshold: cfg.SweepThreshold,
		logger:    logger,
		now:       time.Now,
	}
	d.sweepAt.Store(int64(cfg.SweepThreshold))
	return d
}

// IsDuplicate reports whether phone was accepted within the window, recording
// it when it was not. Numbers without digits are never duplicates.
func (d *DuplicateDetector) IsDuplicate(ctx context.Context, phone string) bool {
	key := NormalizePhone(phone)
	if key == "" {
		return false
	}
	now := d.now()

	duplicate := false
	err := d.store.Update(ctx, key, func(last time.Time, found bool) (time.Time, bool) {
		if found && now.Sub(last) < d.window {
			duplicate = true
			return last, false
		}
		return now, true
	})
	if err != nil {
		d.logger.Warn("duplicate store unavailable, treating submission as new", "error", err)
		return false
	}

	if !duplicate {
		d.maybeSweep(now)
	}
	return duplicate
}

// Release forgets phone so its next submission is treated as new. It is used
// when a recorded submission could not be persisted anywhere.
func (d *DuplicateDetector) Release(ctx context.Context, phone string) {
	key := NormalizePhone(phone)
	if key == "" {
		return
	}
	err := d.store.Update(ctx, key, func(last time.Time, found bool) (time.Time, bool) {
		if !found {
			return last, false
		}
		// The zero time is outside every window and is swept as stale.
		return time.Time{}, true
	})
	if err != nil {
		d.logger.Warn("duplicate store unavailable, could not release phone", "error", err)
	}
}

func (d *DuplicateDetector) maybeSweep(now time.Time) {
	sw, ok := d.store.(Sweeper[time.Time])
	if !ok {
		return
	}
	size := sw.Len()
	if int64(size) <= d.sweepAt.Load() {
		return
	}
	cutoff := now.Add(-d.window)
	removed := sw.DeleteFunc(func(last time.Time) bool { return !last.After(cutoff) })
	d.sweepAt.Store(int64(nextSweepMark(d.threshold, size-removed)))
	d.logger.Debug("duplicate store swept", "removed", removed, "remaining", size-removed)
}
