package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/propagation"
	"github.com/sat/sattrack/internal/transform"
)

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	entry      elements.OrbitalElements
	rec        *propagation.SatelliteRecord
	targetTime time.Time
	gmst       float64 // precomputed GMST for targetTime
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	position SatellitePosition
	err      error
	noradID  int
}

// WorkerPool manages a fixed number of goroutines for parallel propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch propagates all satellites to the target time using the
// worker pool. Satellites missing from recs or failing to propagate are
// logged and skipped; decayed satellites are skipped quietly.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, entries []elements.OrbitalElements, targetTime time.Time, recs map[int]*propagation.SatelliteRecord) ([]SatellitePosition, int, int) {
	if len(entries) == 0 {
		return nil, 0, 0
	}

	// Precompute GMST once for the target time (same for all satellites).
	gmst := transform.GMST(targetTime)

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := propagateSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for _, entry := range entries {
			rec, ok := recs[entry.NORADID]
			if !ok {
				continue
			}
			job := propagateJob{
				entry:      entry,
				rec:        rec,
				targetTime: targetTime,
				gmst:       gmst,
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results.
	positions := make([]SatellitePosition, 0, len(entries))
	var successCount, errorCount int

	for result := range results {
		if result.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"norad_id", result.noradID,
				"error", result.err,
			)
			continue
		}
		successCount++
		positions = append(positions, result.position)
	}

	return positions, successCount, errorCount
}

// propagateSingle propagates one satellite and rotates the state into
// the Earth-fixed frame.
func propagateSingle(job propagateJob) propagateResult {
	state, err := job.rec.PropagateAt(job.targetTime)
	if err != nil {
		return propagateResult{noradID: job.entry.NORADID, err: err}
	}

	teme := transform.StateTEME{
		X: state.Position.X, Y: state.Position.Y, Z: state.Position.Z,
		VX: state.Velocity.X, VY: state.Velocity.Y, VZ: state.Velocity.Z,
	}
	ecef := transform.TEMEToECEFWithGMST(teme, job.gmst)
	if !ecef.Valid() {
		return propagateResult{
			noradID: job.entry.NORADID,
			err:     fmt.Errorf("implausible earth-fixed state at %v", job.targetTime),
		}
	}

	return propagateResult{
		noradID: job.entry.NORADID,
		position: SatellitePosition{
			NORADID:      job.entry.NORADID,
			Name:         job.entry.Name,
			PositionECEF: [3]float64{ecef.X, ecef.Y, ecef.Z},
			VelocityECEF: [3]float64{ecef.VX, ecef.VY, ecef.VZ},
		},
	}
}
