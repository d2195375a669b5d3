package batch

import (
	"context"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/propagation"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9997"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    01"

	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9998"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    07"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func mustParse(t testing.TB, line1, line2, name string) elements.OrbitalElements {
	t.Helper()
	e, err := elements.ParseLines(line1, line2)
	if err != nil {
		t.Fatalf("parsing fixture: %v", err)
	}
	e.Name = name
	return e
}

func testDataset(t testing.TB) *elements.Dataset {
	t.Helper()
	return &elements.Dataset{
		Source:    "test",
		FetchedAt: time.Now(),
		Satellites: []elements.OrbitalElements{
			mustParse(t, issLine1, issLine2, "ISS (ZARYA)"),
			mustParse(t, starlinkLine1, starlinkLine2, "STARLINK-1007"),
		},
	}
}

// TestWorkerPoolBatch verifies the worker pool processes multiple
// satellites and produces physically plausible Earth-fixed states.
func TestWorkerPoolBatch(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())

	ds := testDataset(t)
	grav := propagation.WGS72()
	recs := make(map[int]*propagation.SatelliteRecord)
	for _, e := range ds.Satellites {
		rec, err := propagation.Initialize(e, grav)
		if err != nil {
			t.Fatalf("init %d: %v", e.NORADID, err)
		}
		recs[e.NORADID] = rec
	}

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	positions, successCount, errorCount := pool.PropagateBatch(context.Background(), ds.Satellites, target, recs)
	if errorCount > 0 {
		t.Fatalf("unexpected errors: %d", errorCount)
	}
	if successCount != 2 {
		t.Fatalf("successCount = %d, want 2", successCount)
	}

	for _, pos := range positions {
		mag := math.Sqrt(pos.PositionECEF[0]*pos.PositionECEF[0] +
			pos.PositionECEF[1]*pos.PositionECEF[1] +
			pos.PositionECEF[2]*pos.PositionECEF[2])
		if mag < 6500 || mag > 7100 {
			t.Errorf("NORAD %d: radius %.1f km outside LEO band", pos.NORADID, mag)
		}
		if pos.Name == "" {
			t.Errorf("NORAD %d: name not carried through", pos.NORADID)
		}
	}
}

// TestWorkerPoolRejectsImplausibleState verifies the Earth-fixed output
// guard: a propagation that lands outside the plausible radius envelope
// is counted as an error and kept out of the keyframe.
func TestWorkerPoolRejectsImplausibleState(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())

	// A half-geosynchronous-rate orbit sits near 67000 km, beyond the
	// envelope the output guard accepts.
	far := elements.OrbitalElements{
		NORADID:      90001,
		Name:         "FAR RELAY",
		EpochYear:    2024,
		EpochDay:     100.5,
		Inclination:  28.5,
		RAAN:         10.0,
		Eccentricity: 0.001,
		ArgPerigee:   0.0,
		MeanAnomaly:  0.0,
		MeanMotion:   0.5,
	}
	rec, err := propagation.Initialize(far, propagation.WGS72())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	entries := []elements.OrbitalElements{far}
	recs := map[int]*propagation.SatelliteRecord{far.NORADID: rec}

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	positions, successCount, errorCount := pool.PropagateBatch(context.Background(), entries, target, recs)
	if errorCount != 1 {
		t.Errorf("errorCount = %d, want 1", errorCount)
	}
	if successCount != 0 {
		t.Errorf("successCount = %d, want 0", successCount)
	}
	if len(positions) != 0 {
		t.Errorf("got %d positions, want none", len(positions))
	}
}

// TestWorkerPoolCancellation verifies the worker pool respects context
// cancellation.
func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())

	iss := mustParse(t, issLine1, issLine2, "TEST")
	rec, err := propagation.Initialize(iss, propagation.WGS72())
	if err != nil {
		t.Fatal(err)
	}

	// Many entries sharing one record so some are still pending when we
	// cancel.
	entries := make([]elements.OrbitalElements, 200)
	recs := make(map[int]*propagation.SatelliteRecord, 200)
	for i := range entries {
		e := iss
		e.NORADID = 25544 + i
		entries[i] = e
		recs[e.NORADID] = rec
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	positions, _, _ := pool.PropagateBatch(ctx, entries, target, recs)

	// Some may still complete before cancellation propagates.
	if len(positions) >= len(entries) {
		t.Errorf("expected fewer results with cancelled context, got %d/%d", len(positions), len(entries))
	}
}

// TestPropagatorGenerateKeyframes verifies keyframe generation over a
// horizon.
func TestPropagatorGenerateKeyframes(t *testing.T) {
	store := elements.NewStore()
	store.Set(testDataset(t))

	cfg := Config{
		Workers: 2,
		Step:    5 * time.Second,
		Horizon: 15 * time.Second, // Small horizon for test speed.
	}

	prop := NewPropagator(store, cfg, testLogger())
	start := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)

	keyframes, err := prop.GenerateKeyframes(context.Background(), start)
	if err != nil {
		t.Fatalf("GenerateKeyframes failed: %v", err)
	}

	// With 15s horizon and 5s step: frames at 0s, 5s, 10s, 15s = 4 frames.
	if len(keyframes) != 4 {
		t.Errorf("got %d keyframes, want 4", len(keyframes))
	}

	for i, kf := range keyframes {
		expectedTime := start.Add(time.Duration(i) * cfg.Step)
		if !kf.Timestamp.Equal(expectedTime) {
			t.Errorf("keyframe %d: time = %v, want %v", i, kf.Timestamp, expectedTime)
		}
		if len(kf.Satellites) != 2 {
			t.Errorf("keyframe %d: %d satellites, want 2", i, len(kf.Satellites))
		}
	}
}

// TestPropagatorRecordCacheReuse verifies the record cache is rebuilt
// only when the dataset changes.
func TestPropagatorRecordCacheReuse(t *testing.T) {
	store := elements.NewStore()
	ds := testDataset(t)
	store.Set(ds)

	prop := NewPropagator(store, Config{Workers: 2, Step: time.Second, Horizon: time.Second}, testLogger())

	recs1 := prop.cachedRecords(ds)
	recs2 := prop.cachedRecords(ds)
	if recs1[25544] != recs2[25544] {
		t.Error("cache rebuilt for unchanged dataset")
	}

	fresh := testDataset(t)
	fresh.FetchedAt = ds.FetchedAt.Add(time.Hour)
	recs3 := prop.cachedRecords(fresh)
	if recs1[25544] == recs3[25544] {
		t.Error("cache not rebuilt for new dataset")
	}
}

// TestPropagatorRecordFor verifies single-satellite record lookup.
func TestPropagatorRecordFor(t *testing.T) {
	store := elements.NewStore()
	prop := NewPropagator(store, Config{Workers: 2, Step: time.Second, Horizon: time.Second}, testLogger())

	if _, err := prop.RecordFor(25544); err == nil {
		t.Fatal("expected error with empty store")
	}

	store.Set(testDataset(t))
	rec, err := prop.RecordFor(25544)
	if err != nil {
		t.Fatalf("RecordFor: %v", err)
	}
	if rec.Elements().NORADID != 25544 {
		t.Errorf("record NORADID = %d, want 25544", rec.Elements().NORADID)
	}

	if _, err := prop.RecordFor(99999); err == nil {
		t.Error("expected error for unknown satellite")
	}
}

// TestPropagatorNoDataset verifies error when no element data is loaded.
func TestPropagatorNoDataset(t *testing.T) {
	store := elements.NewStore() // Empty store.
	prop := NewPropagator(store, Config{Workers: 2, Step: 5 * time.Second, Horizon: 60 * time.Second}, testLogger())

	_, err := prop.PropagateToTime(context.Background(), time.Now())
	if err == nil {
		t.Fatal("expected error when no dataset loaded")
	}
}

// BenchmarkPropagate1000 benchmarks propagating 1000 satellites.
func BenchmarkPropagate1000(b *testing.B) {
	iss := mustParse(b, issLine1, issLine2, "TEST")
	entries := make([]elements.OrbitalElements, 1000)
	for i := range entries {
		e := iss
		e.NORADID = 25544 + i
		entries[i] = e
	}

	store := elements.NewStore()
	store.Set(&elements.Dataset{
		Source:     "bench",
		FetchedAt:  time.Now(),
		Satellites: entries,
	})

	cfg := Config{Workers: 4, Step: 5 * time.Second, Horizon: 5 * time.Second}
	prop := NewPropagator(store, cfg, testLogger())
	target := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := prop.PropagateToTime(ctx, target); err != nil {
			b.Fatal(err)
		}
	}
}
