package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sat/sattrack/internal/api"
	"github.com/sat/sattrack/internal/auth"
	"github.com/sat/sattrack/internal/batch"
	"github.com/sat/sattrack/internal/cache"
	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/metrics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SATTRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	srcCfg := loadSourceConfig(logger)
	store := elements.NewStore()
	fetcher := elements.NewFetcher(srcCfg.SourceURL, logger, srcCfg.ExtraSourceURLs...)
	diskCache := elements.NewCache(srcCfg.CacheDir, srcCfg.MaxFiles)

	ref := &refresher{
		fetcher:   fetcher,
		store:     store,
		diskCache: diskCache,
		logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial dataset: fetch if enabled, fall back to the newest disk
	// snapshot so a restart during a source outage still serves data.
	if srcCfg.EnableFetch {
		if err := ref.refresh(ctx); err != nil {
			logger.Warn("initial element fetch failed, trying disk cache", "error", err)
			ref.loadFromDisk()
		}
	} else {
		ref.loadFromDisk()
	}

	batchCfg := loadBatchConfig(logger)
	prop := batch.NewPropagator(store, batchCfg, logger)

	cacheCfg := loadCacheConfig(logger, batchCfg)
	kfCache := cache.NewKeyframeCache(cacheCfg, prop, store, logger)
	go kfCache.Start(ctx)

	if srcCfg.EnableFetch {
		go ref.runPeriodic(ctx, srcCfg.RefreshInterval)
	}

	// Keep the dataset age gauge current between refreshes.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ds := store.Get(); ds != nil {
					metrics.SetDatasetStats(len(ds.Satellites), time.Since(ds.FetchedAt))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := api.NewServer(api.Config{
		Addr:       addr,
		TrustProxy: srcCfg.TrustProxy,
		Auth:       authCfg,
	}, api.Deps{
		Store:      store,
		Propagator: prop,
		Cache:      kfCache,
		Refresh: func(r *http.Request) error {
			return ref.refresh(r.Context())
		},
	}, logger)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "fetch_enabled", srcCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refresher fetches, parses and installs element datasets, writing each
// successful fetch to the disk cache.
type refresher struct {
	fetcher   *elements.Fetcher
	store     *elements.Store
	diskCache *elements.Cache
	logger    *slog.Logger
}

func (r *refresher) refresh(ctx context.Context) error {
	data, err := r.fetcher.Fetch(ctx)
	if err != nil {
		metrics.IncRefresh("error")
		return err
	}

	entries, err := elements.Parse(bytes.NewReader(data), r.logger)
	if err != nil {
		metrics.IncRefresh("error")
		return err
	}
	if len(entries) == 0 {
		metrics.IncRefresh("error")
		return fmt.Errorf("source %s returned no parseable element sets", r.fetcher.SourceURL())
	}

	now := time.Now().UTC()
	r.store.Set(&elements.Dataset{
		Source:     r.fetcher.SourceURL(),
		FetchedAt:  now,
		EpochRange: epochRange(entries),
		Satellites: entries,
	})
	metrics.IncRefresh("success")
	metrics.SetDatasetStats(len(entries), 0)

	if err := r.diskCache.Write(data, now); err != nil {
		r.logger.Warn("failed to write element disk cache", "error", err)
	}

	r.logger.Info("element dataset refreshed", "count", len(entries), "source", r.fetcher.SourceURL())
	return nil
}

// loadFromDisk installs the newest cached snapshot, if any.
func (r *refresher) loadFromDisk() {
	data, ts, err := r.diskCache.LoadLatest()
	if err != nil {
		r.logger.Info("no element disk cache found, starting without data", "error", err)
		return
	}

	entries, err := elements.Parse(bytes.NewReader(data), r.logger)
	if err != nil || len(entries) == 0 {
		r.logger.Warn("failed to parse cached element data", "error", err)
		return
	}

	r.store.Set(&elements.Dataset{
		Source:     "cache",
		FetchedAt:  ts,
		EpochRange: epochRange(entries),
		Satellites: entries,
	})
	metrics.IncRefresh("cache_fallback")
	metrics.SetDatasetStats(len(entries), time.Since(ts))
	r.logger.Info("loaded element data from disk cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
}

func (r *refresher) runPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.refresh(ctx); err != nil {
				r.logger.Warn("periodic element refresh failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func epochRange(entries []elements.OrbitalElements) elements.EpochRange {
	min := entries[0].Epoch()
	max := min
	for _, e := range entries[1:] {
		ep := e.Epoch()
		if ep.Before(min) {
			min = ep
		}
		if ep.After(max) {
			max = ep
		}
	}
	return elements.EpochRange{Min: min, Max: max}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("SATTRACK_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("SATTRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SATTRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SATTRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

// sourceConfig bundles everything about where element data comes from.
type sourceConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	RefreshInterval time.Duration
	TrustProxy      bool
}

func loadSourceConfig(logger *slog.Logger) sourceConfig {
	cfg := sourceConfig{
		EnableFetch:     true,
		CacheDir:        "/tmp/sattrack/elements",
		MaxFiles:        5,
		RefreshInterval: 6 * time.Hour,
		ExtraSourceURLs: []string{
			// ISS (NORAD 25544), a well-observed reference satellite.
			"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
		},
	}

	if v := os.Getenv("SATTRACK_ENABLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACK_ENABLE_FETCH value, defaulting to false", "value", v)
			cfg.EnableFetch = false
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("SATTRACK_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("SATTRACK_EXTRA_URLS"); v != "" {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.ExtraSourceURLs = urls
	}

	if v := os.Getenv("SATTRACK_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("SATTRACK_REFRESH_INTERVAL"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 60 {
			logger.Warn("invalid SATTRACK_REFRESH_INTERVAL value, using default", "value", v, "default_seconds", 21600)
		} else {
			cfg.RefreshInterval = time.Duration(seconds) * time.Second
		}
	}

	if v := os.Getenv("SATTRACK_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SATTRACK_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = trust
		}
	}

	logger.Info("element source config",
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
	)

	return cfg
}

func loadBatchConfig(logger *slog.Logger) batch.Config {
	cfg := batch.Config{
		Workers: runtime.NumCPU(),
		Step:    5 * time.Second,
		Horizon: 600 * time.Second,
	}

	if v := os.Getenv("SATTRACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("SATTRACK_KEYFRAME_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_KEYFRAME_STEP value, using default", "value", v, "default", 5)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATTRACK_KEYFRAME_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_KEYFRAME_HORIZON value, using default", "value", v, "default", 600)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	logger.Info("batch propagation config",
		"workers", cfg.Workers,
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger, batchCfg batch.Config) cache.Config {
	cfg := cache.Config{
		Step:        batchCfg.Step,
		Horizon:     batchCfg.Horizon,
		GracePeriod: 30 * time.Second,
		Buffer:      60 * time.Second,
	}

	if v := os.Getenv("SATTRACK_CACHE_STEP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_CACHE_STEP value, using batch step", "value", v)
		} else {
			cfg.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATTRACK_CACHE_HORIZON"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_CACHE_HORIZON value, using batch horizon", "value", v)
		} else {
			cfg.Horizon = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATTRACK_CACHE_GRACE_PERIOD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_CACHE_GRACE_PERIOD value, using default", "value", v, "default", 30)
		} else {
			cfg.GracePeriod = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("SATTRACK_CACHE_BUFFER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SATTRACK_CACHE_BUFFER value, using default", "value", v, "default", 60)
		} else {
			cfg.Buffer = time.Duration(n) * time.Second
		}
	}

	logger.Info("keyframe cache config",
		"step_seconds", cfg.Step.Seconds(),
		"horizon_seconds", cfg.Horizon.Seconds(),
		"grace_period_seconds", cfg.GracePeriod.Seconds(),
		"buffer_seconds", cfg.Buffer.Seconds(),
	)

	return cfg
}
