package cache

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sat/sattrack/internal/batch"
	"github.com/sat/sattrack/internal/elements"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9997"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testDataset(t testing.TB, source string) *elements.Dataset {
	t.Helper()
	iss, err := elements.ParseLines(issLine1, issLine2)
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	iss.Name = "ISS (ZARYA)"
	return &elements.Dataset{
		Source:     source,
		FetchedAt:  time.Now(),
		Satellites: []elements.OrbitalElements{iss},
	}
}

func testStore(t testing.TB) *elements.Store {
	store := elements.NewStore()
	store.Set(testDataset(t, "test"))
	return store
}

func testPropagator(store *elements.Store) *batch.Propagator {
	cfg := batch.Config{Workers: 2, Step: 5 * time.Second, Horizon: 30 * time.Second}
	return batch.NewPropagator(store, cfg, testLogger())
}

func testConfig() Config {
	return Config{
		Step:        5 * time.Second,
		Horizon:     30 * time.Second,
		GracePeriod: 5 * time.Second,
		Buffer:      10 * time.Second,
	}
}

// TestKeyframeCache tests basic cache operations: put, get, evict.
func TestKeyframeCache(t *testing.T) {
	store := testStore(t)
	prop := testPropagator(store)
	c := NewKeyframeCache(testConfig(), prop, store, testLogger())

	// Generate a keyframe and put it in the cache.
	ctx := context.Background()
	target := time.Now().Truncate(5 * time.Second)
	kf, err := prop.PropagateToTime(ctx, target)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}

	c.put(kf)

	// Get should return it.
	got := c.Get(target)
	if got == nil {
		t.Fatal("expected cache hit, got nil")
	}
	if !got.Timestamp.Equal(target) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.Timestamp, target)
	}

	// Stats should reflect one entry.
	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("entries: got %d, want 1", stats.Entries)
	}
	if stats.Hits < 1 {
		t.Errorf("hits: got %d, want >= 1", stats.Hits)
	}
}

// TestRoundToStep verifies timestamp rounding.
func TestRoundToStep(t *testing.T) {
	store := testStore(t)
	c := NewKeyframeCache(testConfig(), testPropagator(store), store, testLogger())

	tests := []struct {
		input    time.Time
		expected time.Time
	}{
		{
			input:    time.Date(2026, 2, 6, 12, 0, 3, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 2, 6, 12, 0, 7, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 5, 0, time.UTC),
		},
		{
			input:    time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC),
			expected: time.Date(2026, 2, 6, 12, 0, 10, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		got := c.RoundToStep(tt.input)
		if !got.Equal(tt.expected) {
			t.Errorf("RoundToStep(%v) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// TestCacheMiss verifies that a miss returns nil and increments the miss counter.
func TestCacheMiss(t *testing.T) {
	store := testStore(t)
	c := NewKeyframeCache(testConfig(), testPropagator(store), store, testLogger())

	got := c.Get(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC))
	if got != nil {
		t.Fatal("expected nil for cache miss")
	}

	stats := c.Stats()
	if stats.Misses < 1 {
		t.Errorf("misses: got %d, want >= 1", stats.Misses)
	}
}

// TestGetRecentTrail verifies trail retrieval: oldest-first ordering,
// inclusion of the requested step, and silent skipping of gaps.
func TestGetRecentTrail(t *testing.T) {
	store := testStore(t)
	prop := testPropagator(store)
	c := NewKeyframeCache(testConfig(), prop, store, testLogger())

	ctx := context.Background()
	base := time.Now().UTC().Truncate(5 * time.Second)
	// Steps 0, 1 and 3; step 2 is a deliberate gap.
	for _, i := range []int{0, 1, 3} {
		kf, err := prop.PropagateToTime(ctx, base.Add(time.Duration(i)*5*time.Second))
		if err != nil {
			t.Fatalf("PropagateToTime failed: %v", err)
		}
		c.put(kf)
	}

	frames := c.GetRecent(base.Add(15*time.Second), 5)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if !frames[i-1].Timestamp.Before(frames[i].Timestamp) {
			t.Errorf("frames out of order: %v before %v", frames[i-1].Timestamp, frames[i].Timestamp)
		}
	}
	if !frames[len(frames)-1].Timestamp.Equal(base.Add(15 * time.Second)) {
		t.Errorf("last frame = %v, want the requested step %v", frames[len(frames)-1].Timestamp, base.Add(15*time.Second))
	}

	if got := c.GetRecent(base.Add(15*time.Second), 0); got != nil {
		t.Errorf("count 0 returned %d frames, want nil", len(got))
	}
}

// TestEvictExpired verifies that expired entries are removed.
func TestEvictExpired(t *testing.T) {
	store := testStore(t)
	prop := testPropagator(store)
	cfg := testConfig()
	cfg.Buffer = 0 // No buffer, evict immediately if in the past.
	c := NewKeyframeCache(cfg, prop, store, testLogger())

	ctx := context.Background()

	// Put a keyframe in the past.
	pastTime := time.Now().Add(-2 * time.Minute).Truncate(5 * time.Second)
	kf, err := prop.PropagateToTime(ctx, pastTime)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}
	c.put(kf)

	// Put a keyframe in the future.
	futureTime := time.Now().Add(1 * time.Minute).Truncate(5 * time.Second)
	kf2, err := prop.PropagateToTime(ctx, futureTime)
	if err != nil {
		t.Fatalf("PropagateToTime failed: %v", err)
	}
	c.put(kf2)

	if c.Stats().Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Stats().Entries)
	}

	removed := c.evictExpired()
	if removed != 1 {
		t.Errorf("expected 1 eviction, got %d", removed)
	}

	// Past entry should be gone, future entry should remain.
	if c.Get(pastTime) != nil {
		t.Error("expected past entry to be evicted")
	}
	if c.Get(futureTime) == nil {
		t.Error("expected future entry to remain")
	}
}

// TestIncrementalGeneration verifies the background warmup fills the cache.
func TestIncrementalGeneration(t *testing.T) {
	store := testStore(t)
	prop := testPropagator(store)
	cfg := testConfig()
	cfg.Horizon = 15 * time.Second // Small horizon: 4 keyframes (0, 5, 10, 15).
	c := NewKeyframeCache(cfg, prop, store, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Run warmup only (not the full Start loop).
	c.warmup(ctx)

	stats := c.Stats()
	expectedFrames := int(cfg.Horizon/cfg.Step) + 1
	if stats.Entries < expectedFrames {
		t.Errorf("warmup generated %d entries, expected >= %d", stats.Entries, expectedFrames)
	}

	// GetLatest should return something.
	if c.GetLatest() == nil {
		t.Fatal("GetLatest returned nil after warmup")
	}
}

// TestDatasetCutover verifies graceful element dataset cutover.
func TestDatasetCutover(t *testing.T) {
	store := testStore(t)
	prop := testPropagator(store)
	cfg := testConfig()
	cfg.Horizon = 10 * time.Second // 3 keyframes: 0, 5, 10.
	c := NewKeyframeCache(cfg, prop, store, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Warmup with the original dataset.
	c.warmup(ctx)

	if c.Stats().Entries == 0 {
		t.Fatal("no entries after warmup")
	}

	// Simulate a refresh by setting a new dataset with different FetchedAt.
	fresh := testDataset(t, "updated")
	fresh.FetchedAt = time.Now().Add(1 * time.Second)
	store.Set(fresh)

	if !c.datasetChanged() {
		t.Fatal("expected datasetChanged() to return true after dataset update")
	}

	c.performCutover(ctx)

	if c.inGracePeriod.Load() {
		t.Error("grace period should be false after cutover")
	}

	if c.Stats().Entries == 0 {
		t.Fatal("no entries after cutover")
	}

	if c.datasetChanged() {
		t.Error("expected datasetChanged() to return false after cutover")
	}
}

// TestGetLatestEmpty verifies GetLatest with empty cache returns nil.
func TestGetLatestEmpty(t *testing.T) {
	store := testStore(t)
	c := NewKeyframeCache(testConfig(), testPropagator(store), store, testLogger())

	if got := c.GetLatest(); got != nil {
		t.Fatal("expected nil from empty cache")
	}
}

// TestConcurrentAccess verifies cache is safe for concurrent reads and writes.
func TestConcurrentAccess(t *testing.T) {
	store := testStore(t)
	c := NewKeyframeCache(testConfig(), testPropagator(store), store, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Start cache in background.
	go c.Start(ctx)

	// Give warmup time to complete.
	time.Sleep(3 * time.Second)

	// Concurrent reads should not panic.
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.GetLatest()
				c.Get(time.Now())
				c.Stats()
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("timeout waiting for concurrent reads")
		}
	}
}

// TestSizeEstimation verifies the size estimation is reasonable.
func TestSizeEstimation(t *testing.T) {
	store := testStore(t)
	cfg := testConfig()
	cfg.Horizon = 10 * time.Second
	c := NewKeyframeCache(cfg, testPropagator(store), store, testLogger())

	c.warmup(context.Background())

	stats := c.Stats()
	if stats.SizeBytes <= 0 {
		t.Errorf("expected positive size estimate, got %d", stats.SizeBytes)
	}

	// With 1 satellite and 3 entries, size should be small (< 10KB).
	if stats.SizeBytes > 10000 {
		t.Errorf("size estimate seems too large for 1 satellite: %d bytes", stats.SizeBytes)
	}
}
