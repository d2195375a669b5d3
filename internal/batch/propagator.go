package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/metrics"
	"github.com/sat/sattrack/internal/propagation"
)

// recordCache holds initialized satellite records for a specific element
// dataset. Immutable after construction; safe for concurrent reads.
type recordCache struct {
	recs      map[int]*propagation.SatelliteRecord
	fetchedAt time.Time
}

// Propagator orchestrates keyframe generation for element datasets.
type Propagator struct {
	store   *elements.Store
	pool    *WorkerPool
	config  Config
	gravity propagation.GravityModel
	logger  *slog.Logger
	cache   atomic.Pointer[recordCache]
	cacheMu sync.Mutex // serializes cache rebuilds
}

// NewPropagator creates a new propagation orchestrator.
func NewPropagator(store *elements.Store, config Config, logger *slog.Logger) *Propagator {
	pool := NewWorkerPool(config.Workers, logger)
	return &Propagator{
		store:   store,
		pool:    pool,
		config:  config,
		gravity: propagation.WGS72(),
		logger:  logger,
	}
}

// cachedRecords returns initialized satellite records for the given
// dataset. Rebuilds the cache if the dataset has changed (double-checked
// locking).
func (p *Propagator) cachedRecords(ds *elements.Dataset) map[int]*propagation.SatelliteRecord {
	if c := p.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.recs
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()

	if c := p.cache.Load(); c != nil && c.fetchedAt.Equal(ds.FetchedAt) {
		return c.recs
	}

	recs := make(map[int]*propagation.SatelliteRecord, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := recs[entry.NORADID]; ok {
			continue
		}
		rec, err := propagation.Initialize(entry, p.gravity)
		if err != nil {
			p.logger.Warn("record init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		recs[entry.NORADID] = rec
	}

	p.logger.Info("satellite record cache rebuilt",
		"cached", len(recs),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	p.cache.Store(&recordCache{recs: recs, fetchedAt: ds.FetchedAt})
	return recs
}

// RecordFor returns the initialized record for one satellite from the
// current dataset, or an error if the dataset or satellite is missing.
func (p *Propagator) RecordFor(noradID int) (*propagation.SatelliteRecord, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, fmt.Errorf("no element dataset loaded")
	}
	rec, ok := p.cachedRecords(ds)[noradID]
	if !ok {
		return nil, fmt.Errorf("satellite %d not in dataset", noradID)
	}
	return rec, nil
}

// PropagateToTime generates a single keyframe at the given target time.
// Uses the current element dataset from the store.
func (p *Propagator) PropagateToTime(ctx context.Context, targetTime time.Time) (*Keyframe, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, fmt.Errorf("no element dataset loaded")
	}

	recs := p.cachedRecords(ds)

	p.logger.Debug("propagating",
		"satellite_count", len(ds.Satellites),
		"target_time", targetTime.UTC().Format(time.RFC3339),
		"workers", p.config.Workers,
	)

	start := time.Now()
	positions, successCount, errorCount := p.pool.PropagateBatch(ctx, ds.Satellites, targetTime, recs)
	duration := time.Since(start)

	metrics.RecordPropagation(duration, successCount, errorCount)

	p.logger.Debug("propagation complete",
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	return &Keyframe{
		Timestamp:  targetTime,
		Satellites: positions,
	}, nil
}

// GenerateKeyframes generates keyframes from startTime over the
// configured horizon at the configured step interval.
func (p *Propagator) GenerateKeyframes(ctx context.Context, startTime time.Time) ([]*Keyframe, error) {
	if p.store.Get() == nil {
		return nil, fmt.Errorf("no element dataset loaded")
	}

	numFrames := int(p.config.Horizon/p.config.Step) + 1
	keyframes := make([]*Keyframe, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		select {
		case <-ctx.Done():
			return keyframes, ctx.Err()
		default:
		}

		targetTime := startTime.Add(time.Duration(i) * p.config.Step)
		kf, err := p.PropagateToTime(ctx, targetTime)
		if err != nil {
			return keyframes, fmt.Errorf("keyframe %d at %s: %w", i, targetTime.Format(time.RFC3339), err)
		}
		keyframes = append(keyframes, kf)
	}

	return keyframes, nil
}
