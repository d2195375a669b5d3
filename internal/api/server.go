package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sat/sattrack/internal/auth"
	"github.com/sat/sattrack/internal/batch"
	"github.com/sat/sattrack/internal/cache"
	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/health"
	"github.com/sat/sattrack/internal/httputil"
	"github.com/sat/sattrack/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	Addr       string
	TrustProxy bool
	Auth       auth.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Deps are the services the API surfaces. Cache is optional; when set,
// keyframe requests on step boundaries are served from it.
type Deps struct {
	Store      *elements.Store
	Propagator *batch.Propagator
	Cache      *cache.KeyframeCache
	Refresh    func(r *http.Request) error
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return deps.Store.Get() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/elements", elementsMetadataHandler(deps.Store))
	mux.HandleFunc("POST /api/v1/elements/refresh", refreshHandler(logger, deps))
	mux.HandleFunc("GET /api/v1/position/{norad_id}", positionHandler(logger, deps.Propagator))
	mux.HandleFunc("GET /api/v1/positions", positionsHandler(logger, deps.Propagator, deps.Cache))
	mux.HandleFunc("GET /api/v1/passes/{norad_id}", passesHandler(logger, deps.Store))
	if deps.Cache != nil {
		mux.HandleFunc("GET /api/v1/cache/stats", cacheStatsHandler(deps.Cache))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
