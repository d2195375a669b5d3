package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sat/sattrack/internal/batch"
	"github.com/sat/sattrack/internal/cache"
	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/passes"
	"github.com/sat/sattrack/internal/propagation"
	"github.com/sat/sattrack/internal/transform"
)

// maxPositions bounds the number of trajectory points a single request
// may ask for, so one request cannot monopolize the CPU.
const maxPositions = 10000

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// queryFloat parses a float query parameter with a default.
func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// queryTime parses an RFC3339 query parameter, defaulting to now.
func queryTime(r *http.Request, key string) (time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

type datasetMetadata struct {
	Source         string    `json:"source"`
	FetchedAt      time.Time `json:"fetched_at"`
	SatelliteCount int       `json:"satellite_count"`
	EpochMin       time.Time `json:"epoch_min"`
	EpochMax       time.Time `json:"epoch_max"`
	AgeSeconds     float64   `json:"age_seconds"`
}

func metadataFrom(ds *elements.Dataset) datasetMetadata {
	return datasetMetadata{
		Source:         ds.Source,
		FetchedAt:      ds.FetchedAt,
		SatelliteCount: len(ds.Satellites),
		EpochMin:       ds.EpochRange.Min,
		EpochMax:       ds.EpochRange.Max,
		AgeSeconds:     time.Since(ds.FetchedAt).Seconds(),
	}
}

func elementsMetadataHandler(store *elements.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no element dataset loaded")
			return
		}
		writeJSON(w, http.StatusOK, metadataFrom(ds))
	}
}

func refreshHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Refresh(r); err != nil {
			logger.Error("manual refresh failed", "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		ds := deps.Store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "refresh produced no dataset")
			return
		}
		writeJSON(w, http.StatusOK, metadataFrom(ds))
	}
}

// trajectoryPoint is one sample of a satellite trajectory in both frames.
type trajectoryPoint struct {
	Time         time.Time           `json:"time"`
	PositionTEME propagation.Vector3 `json:"position_teme"`
	VelocityTEME propagation.Vector3 `json:"velocity_teme"`
	PositionECEF [3]float64          `json:"position_ecef"`
	Latitude     float64             `json:"latitude"`
	Longitude    float64             `json:"longitude"`
	AltitudeKm   float64             `json:"altitude_km"`
}

type trajectoryResponse struct {
	NORADID   int               `json:"norad_id"`
	Name      string            `json:"name,omitempty"`
	Regime    string            `json:"regime"`
	Positions []trajectoryPoint `json:"positions"`
	Error     string            `json:"error,omitempty"`
}

// positionHandler propagates one satellite from "at" over an optional
// horizon at a fixed step, both in seconds.
func positionHandler(logger *slog.Logger, prop *batch.Propagator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noradID, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid norad_id")
			return
		}

		at, err := queryTime(r, "at")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at timestamp, want RFC3339")
			return
		}
		horizon, err := queryFloat(r, "horizon", 0)
		if err != nil || horizon < 0 {
			writeError(w, http.StatusBadRequest, "invalid horizon")
			return
		}
		step, err := queryFloat(r, "step", 5)
		if err != nil || step <= 0 {
			writeError(w, http.StatusBadRequest, "invalid step")
			return
		}

		numPositions := int(horizon/step) + 1
		if numPositions > maxPositions {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":         "requested trajectory exceeds position budget",
				"requested":     numPositions,
				"max_positions": maxPositions,
			})
			return
		}

		rec, err := prop.RecordFor(noradID)
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		resp := trajectoryResponse{
			NORADID:   noradID,
			Name:      rec.Elements().Name,
			Regime:    rec.Regime().String(),
			Positions: make([]trajectoryPoint, 0, numPositions),
		}

		var propErr error
		for i := 0; i < numPositions; i++ {
			t := at.Add(time.Duration(float64(i) * step * float64(time.Second)))
			state, err := rec.PropagateAt(t)
			if err != nil {
				propErr = err
				resp.Error = err.Error()
				break
			}
			teme := transform.StateTEME{
				X: state.Position.X, Y: state.Position.Y, Z: state.Position.Z,
				VX: state.Velocity.X, VY: state.Velocity.Y, VZ: state.Velocity.Z,
			}
			ecef := transform.TEMEToECEF(teme, t)
			geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
			resp.Positions = append(resp.Positions, trajectoryPoint{
				Time:         t,
				PositionTEME: state.Position,
				VelocityTEME: state.Velocity,
				PositionECEF: [3]float64{ecef.X, ecef.Y, ecef.Z},
				Latitude:     geo.LatDeg,
				Longitude:    geo.LonDeg,
				AltitudeKm:   geo.AltKm,
			})
		}

		if len(resp.Positions) == 0 {
			var decayed *propagation.DecayedError
			if errors.As(propErr, &decayed) {
				writeJSON(w, http.StatusGone, resp)
				return
			}
			writeJSON(w, http.StatusUnprocessableEntity, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// maxTrail bounds the trail parameter on the full-catalog endpoint; the
// cache only holds a rolling window anyway.
const maxTrail = 240

// trailResponse carries the recent keyframes behind a trail query,
// ordered oldest-first.
type trailResponse struct {
	Keyframes []*batch.Keyframe `json:"keyframes"`
}

// positionsHandler returns a full-catalog keyframe at a single instant,
// preferring the rolling cache when one is wired in. With trail=N it
// instead returns up to N cached keyframes ending at the requested time,
// for drawing orbital trails.
func positionsHandler(logger *slog.Logger, prop *batch.Propagator, kfCache *cache.KeyframeCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at, err := queryTime(r, "at")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at timestamp, want RFC3339")
			return
		}
		trail, err := queryFloat(r, "trail", 0)
		if err != nil || trail < 0 || trail > maxTrail || trail != math.Trunc(trail) {
			writeError(w, http.StatusBadRequest, "invalid trail, want integer 0-240")
			return
		}

		if trail > 0 {
			// Trails come only from the rolling cache; recomputing
			// hundreds of historical keyframes on demand would blow
			// the request budget.
			if kfCache == nil {
				writeError(w, http.StatusServiceUnavailable, "keyframe cache not enabled")
				return
			}
			frames := kfCache.GetRecent(at, int(trail))
			if len(frames) == 0 {
				writeError(w, http.StatusServiceUnavailable, "no cached keyframes in the requested window")
				return
			}
			writeJSON(w, http.StatusOK, trailResponse{Keyframes: frames})
			return
		}

		if kfCache != nil {
			if r.URL.Query().Get("at") == "" {
				// Without an explicit time, serve the freshest completed
				// keyframe rather than missing on a boundary that the
				// batch loop has not reached yet.
				if kf := kfCache.GetLatest(); kf != nil {
					writeJSON(w, http.StatusOK, kf)
					return
				}
			} else if kf := kfCache.Get(at); kf != nil {
				writeJSON(w, http.StatusOK, kf)
				return
			}
		}

		kf, err := prop.PropagateToTime(r.Context(), at)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, kf)
	}
}

func cacheStatsHandler(kfCache *cache.KeyframeCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, kfCache.Stats())
	}
}

// passesHandler predicts passes of one satellite over an observer.
func passesHandler(logger *slog.Logger, store *elements.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noradID, err := strconv.Atoi(r.PathValue("norad_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid norad_id")
			return
		}

		q := r.URL.Query()
		if q.Get("lat") == "" || q.Get("lon") == "" {
			writeError(w, http.StatusBadRequest, "lat and lon are required")
			return
		}
		lat, err := queryFloat(r, "lat", 0)
		if err != nil || lat < -90 || lat > 90 {
			writeError(w, http.StatusBadRequest, "invalid lat")
			return
		}
		lon, err := queryFloat(r, "lon", 0)
		if err != nil || lon < -180 || lon > 180 {
			writeError(w, http.StatusBadRequest, "invalid lon")
			return
		}
		alt, err := queryFloat(r, "alt", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid alt")
			return
		}
		hours, err := queryFloat(r, "hours", 24)
		if err != nil || hours <= 0 || hours > 72 {
			writeError(w, http.StatusBadRequest, "invalid hours, want 0 < hours <= 72")
			return
		}
		minElev, err := queryFloat(r, "min_elevation", 10)
		if err != nil || minElev < 0 || minElev >= 90 {
			writeError(w, http.StatusBadRequest, "invalid min_elevation")
			return
		}
		maxPasses, err := queryFloat(r, "max_passes", 10)
		if err != nil || maxPasses < 1 || maxPasses > 50 {
			writeError(w, http.StatusBadRequest, "invalid max_passes, want 1-50")
			return
		}
		start, err := queryTime(r, "start")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start timestamp, want RFC3339")
			return
		}

		ds := store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no element dataset loaded")
			return
		}
		entry, ok := ds.ByID(noradID)
		if !ok {
			writeError(w, http.StatusNotFound, "satellite not in dataset")
			return
		}

		results := passes.Predict(r.Context(), passes.Request{
			Observer:     transform.NewObserver(lat, lon, alt),
			Entries:      []elements.OrbitalElements{entry},
			Start:        start,
			HorizonHours: hours,
			MinElevation: minElev,
			MaxPasses:    int(maxPasses),
		})

		writeJSON(w, http.StatusOK, results[0])
	}
}
