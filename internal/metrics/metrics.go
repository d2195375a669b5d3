package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sattrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	propagationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_propagation_duration_seconds",
			Help:    "Duration of a full-catalog propagation batch in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	propagationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_propagations_total",
			Help: "Total per-satellite propagations by outcome.",
		},
		[]string{"outcome"},
	)

	datasetSatellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_dataset_satellites",
			Help: "Number of satellites in the current element dataset.",
		},
	)

	datasetAgeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_dataset_age_seconds",
			Help: "Age of the current element dataset in seconds.",
		},
	)

	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_element_refreshes_total",
			Help: "Total element dataset refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_lookups_total",
			Help: "Keyframe cache lookups by result.",
		},
		[]string{"result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_evictions_total",
			Help: "Total keyframe cache entries evicted.",
		},
	)

	cacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_entries",
			Help: "Current number of cached keyframes.",
		},
	)

	cacheSizeBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_size_bytes",
			Help: "Estimated keyframe cache memory footprint.",
		},
	)

	cacheRegenerationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sattrack_keyframe_cache_regeneration_errors_total",
			Help: "Keyframe generation failures in the cache maintenance loop.",
		},
	)

	cacheRegenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sattrack_keyframe_cache_regeneration_seconds",
			Help:    "Duration of keyframe cache generation work in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	cacheGracePeriodActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sattrack_keyframe_cache_grace_period_active",
			Help: "1 while the cache is rebuilding for a new dataset.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(propagationDurationSeconds)
	prometheus.MustRegister(propagationsTotal)
	prometheus.MustRegister(datasetSatellites)
	prometheus.MustRegister(datasetAgeSeconds)
	prometheus.MustRegister(refreshesTotal)
	prometheus.MustRegister(cacheLookupsTotal)
	prometheus.MustRegister(cacheEvictionsTotal)
	prometheus.MustRegister(cacheEntries)
	prometheus.MustRegister(cacheSizeBytes)
	prometheus.MustRegister(cacheRegenerationErrors)
	prometheus.MustRegister(cacheRegenerationSeconds)
	prometheus.MustRegister(cacheGracePeriodActive)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPropagation records a completed propagation batch.
func RecordPropagation(duration time.Duration, successCount, errorCount int) {
	propagationDurationSeconds.Observe(duration.Seconds())
	propagationsTotal.WithLabelValues("success").Add(float64(successCount))
	propagationsTotal.WithLabelValues("error").Add(float64(errorCount))
}

// SetDatasetStats updates the dataset gauges after a refresh.
func SetDatasetStats(satellites int, age time.Duration) {
	datasetSatellites.Set(float64(satellites))
	datasetAgeSeconds.Set(age.Seconds())
}

// IncRefresh counts one dataset refresh attempt. Outcome is "success",
// "error", or "cache_fallback".
func IncRefresh(outcome string) {
	refreshesTotal.WithLabelValues(outcome).Inc()
}

// IncCacheHits counts a keyframe cache hit.
func IncCacheHits() {
	cacheLookupsTotal.WithLabelValues("hit").Inc()
}

// IncCacheMisses counts a keyframe cache miss.
func IncCacheMisses() {
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// AddCacheEvictions counts evicted keyframe cache entries.
func AddCacheEvictions(n int) {
	cacheEvictionsTotal.Add(float64(n))
}

// SetCacheEntries publishes the current keyframe cache entry count.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// SetCacheSizeBytes publishes the estimated keyframe cache footprint.
func SetCacheSizeBytes(n int64) {
	cacheSizeBytes.Set(float64(n))
}

// IncCacheRegenerationErrors counts a failed keyframe generation.
func IncCacheRegenerationErrors() {
	cacheRegenerationErrors.Inc()
}

// ObserveCacheRegenerationDuration records cache generation work.
func ObserveCacheRegenerationDuration(d time.Duration) {
	cacheRegenerationSeconds.Observe(d.Seconds())
}

// SetCacheGracePeriodActive flags an in-progress cache rebuild.
func SetCacheGracePeriodActive(active bool) {
	if active {
		cacheGracePeriodActive.Set(1)
	} else {
		cacheGracePeriodActive.Set(0)
	}
}

// exactRoutes are the fixed paths the server exposes; anything else is
// either a parameterized API route or bot noise.
var exactRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/elements":         true,
	"/api/v1/elements/refresh": true,
	"/api/v1/positions":        true,
	"/api/v1/cache/stats":      true,
}

// normalizeRoute collapses request paths into a bounded label set so
// scanner traffic cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/position/"); ok && isDigits(rest) {
		return "/api/v1/position/{norad_id}"
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/passes/"); ok && isDigits(rest) {
		return "/api/v1/passes/{norad_id}"
	}
	return "other"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
