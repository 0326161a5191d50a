package abuse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/roofing-leads/pkg/logging"
)

func newTestDetector(store SeenStore, cfg DuplicateConfig) (*DuplicateDetector, *fakeClock) {
	clock := newFakeClock()
	d := NewDuplicateDetector(store, cfg, logging.Default())
	d.now = clock.Now
	return d, clock
}

func TestDuplicateDetector_NormalizesFormatting(t *testing.T) {
	d, _ := newTestDetector(nil, DuplicateConfig{})
	ctx := context.Background()

	require.False(t, d.IsDuplicate(ctx, "(512) 555-1234"))
	assert.True(t, d.IsDuplicate(ctx, "5125551234"))
	assert.True(t, d.IsDuplicate(ctx, "512.555.1234"))
	assert.False(t, d.IsDuplicate(ctx, "5125559999"))
}

func TestDuplicateDetector_WindowElapses(t *testing.T) {
	d, clock := newTestDetector(nil, DuplicateConfig{Window: 24 * time.Hour})
	ctx := context.Background()

	require.False(t, d.IsDuplicate(ctx, "5125551234"))
	clock.Advance(23 * time.Hour)
	require.True(t, d.IsDuplicate(ctx, "5125551234"))

	clock.Advance(time.Hour)
	assert.False(t, d.IsDuplicate(ctx, "5125551234"))
}

func TestDuplicateDetector_DuplicateDoesNotExtendWindow(t *testing.T) {
	d, clock := newTestDetector(nil, DuplicateConfig{Window: 24 * time.Hour})
	ctx := context.Background()

	d.IsDuplicate(ctx, "5125551234")
	clock.Advance(20 * time.Hour)
	require.True(t, d.IsDuplicate(ctx, "5125551234"))

	clock.Advance(5 * time.Hour)
	assert.False(t, d.IsDuplicate(ctx, "5125551234"), "window runs from the first submission")
}

func TestDuplicateDetector_IgnoresEmptyPhone(t *testing.T) {
	d, _ := newTestDetector(nil, DuplicateConfig{})
	ctx := context.Background()
	assert.False(t, d.IsDuplicate(ctx, ""))
	assert.False(t, d.IsDuplicate(ctx, "call me"))
}

func TestDuplicateDetector_SweepsOnlyAboveThreshold(t *testing.T) {
	store := NewMemorySeenStore()
	d, clock := newTestDetector(store, DuplicateConfig{Window: time.Hour, SweepThreshold: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d.IsDuplicate(ctx, fmt.Sprintf("51255500%02d", i))
	}
	clock.Advance(2 * time.Hour)
	require.Equal(t, 3, store.Len(), "no sweep while at the threshold")

	d.IsDuplicate(ctx, "5125559000")
	assert.Equal(t, 1, store.Len())
}

func TestDuplicateDetector_SweepKeepsFreshEntries(t *testing.T) {
	store := NewMemorySeenStore()
	d, _ := newTestDetector(store, DuplicateConfig{Window: time.Hour, SweepThreshold: 2})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d.IsDuplicate(ctx, fmt.Sprintf("51255500%02d", i))
	}
	assert.Equal(t, 5, store.Len())
	assert.True(t, d.IsDuplicate(ctx, "5125550000"))
}

func TestDuplicateDetector_ReleaseAllowsResubmission(t *testing.T) {
	store := NewMemorySeenStore()
	d, clock := newTestDetector(store, DuplicateConfig{Window: time.Hour, SweepThreshold: 1})
	ctx := context.Background()

	require.False(t, d.IsDuplicate(ctx, "5125551234"))
	d.Release(ctx, "(512) 555-1234")
	require.False(t, d.IsDuplicate(ctx, "5125551234"), "released phone is new again")
	assert.True(t, d.IsDuplicate(ctx, "5125551234"))

	d.Release(ctx, "")
	d.Release(ctx, "5125559999")
	clock.Advance(time.Minute)
	assert.False(t, d.IsDuplicate(ctx, "5125559999"))
}

func TestNextSweepMark(t *testing.T) {
	assert.Equal(t, 10, nextSweepMark(10, 3))
	assert.Equal(t, 30, nextSweepMark(10, 15))
}
