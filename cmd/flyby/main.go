package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/api"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/catalog"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/health"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/history"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/passes"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/predict"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/propagation"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/render"
	"github.com/bp458573737/Space-Station-Flyby-Plots/internal/tle"
	"github.com/bp458573737/Space-Station-Flyby-Plots/web"
)

type tleConfig struct {
	SourceURL string
	CacheDir  string
	MaxFiles  int
	MaxAge    time.Duration
}

type chartConfig struct {
	Dir      string
	MaxFiles int
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("FLYBY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	cat, err := loadCatalog(logger)
	if err != nil {
		logger.Error("invalid catalog", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	fetcher := tle.NewFetcher(tleCfg.SourceURL, logger)
	tleCache := tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles, logger)
	tles := tle.NewSource(fetcher, tleCache, tleCfg.MaxAge, logger)

	chartCfg := loadChartConfig(logger)
	charts := render.NewDir(render.NewRenderer(render.DefaultStyle()), chartCfg.Dir, chartCfg.MaxFiles, logger)

	ready := health.NewChecker()
	ready.Add("chart_dir", health.DirWritable(chartCfg.Dir))
	ready.Add("tle_cache_dir", health.DirWritable(tleCfg.CacheDir))

	deps := api.Deps{
		Catalog:  cat,
		ChartDir: chartCfg.Dir,
		Ready:    ready,
		Web:      web.Content,
	}

	if v := os.Getenv("FLYBY_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid FLYBY_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			deps.TrustProxy = trust
		}
	}

	// History is optional; the predictor and the API treat nil as disabled.
	var recorder predict.Recorder
	if path := os.Getenv("FLYBY_HISTORY_DB"); path != "" {
		store, err := history.Open(path, logger)
		if err != nil {
			logger.Error("failed to open history database", "path", path, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		recorder = store
		deps.History = store
		ready.Add("history", store.Ping)
		logger.Info("history enabled", "path", path)
	}

	predCfg := loadPredictConfig(logger)
	deps.Predictor = predict.New(predCfg, tles, charts, recorder, logger)

	srv, err := api.NewServer(addr, logger, deps)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"locations", len(cat.Locations),
			"spacecraft", len(cat.Spacecraft),
			"history_enabled", recorder != nil,
		)
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

func loadCatalog(logger *slog.Logger) (*catalog.Catalog, error) {
	path := os.Getenv("FLYBY_CATALOG_FILE")
	if path == "" {
		logger.Info("using built-in catalog")
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", "path", path, "locations", len(cat.Locations), "spacecraft", len(cat.Spacecraft))
	return cat, nil
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		CacheDir: "/tmp/flyby/tle",
		MaxFiles: 5,
		MaxAge:   24 * time.Hour,
	}

	if v := os.Getenv("FLYBY_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("FLYBY_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("FLYBY_TLE_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FLYBY_TLE_CACHE_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("FLYBY_TLE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 0 {
			logger.Warn("invalid FLYBY_TLE_MAX_AGE value, defaulting to 86400", "value", v)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("TLE config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)

	return cfg
}

func loadChartConfig(logger *slog.Logger) chartConfig {
	cfg := chartConfig{
		Dir:      "/tmp/flyby/charts",
		MaxFiles: 200,
	}

	if v := os.Getenv("FLYBY_CHART_DIR"); v != "" {
		cfg.Dir = v
	}

	if v := os.Getenv("FLYBY_CHART_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FLYBY_CHART_MAX_FILES value, using default", "value", v, "default", 200)
		} else {
			cfg.MaxFiles = n
		}
	}

	logger.Info("chart config", "dir", cfg.Dir, "max_files", cfg.MaxFiles)
	return cfg
}

func loadPredictConfig(logger *slog.Logger) predict.Config {
	cfg := predict.Config{
		Sampling: propagation.Config{
			Workers:    runtime.NumCPU(),
			Step:       time.Second,
			CoarseStep: 30 * time.Second,
			MaxSamples: 1_000_000,
		},
		MaxDays:         3,
		MinElevationDeg: 10,
		Mode:            passes.ModeEvent,
	}

	if v := os.Getenv("FLYBY_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FLYBY_WORKERS value, using default", "value", v, "default", cfg.Sampling.Workers)
		} else {
			cfg.Sampling.Workers = n
		}
	}

	if v := os.Getenv("FLYBY_STEP_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FLYBY_STEP_SECONDS value, using default", "value", v, "default", 1)
		} else {
			cfg.Sampling.Step = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("FLYBY_COARSE_STEP_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			logger.Warn("invalid FLYBY_COARSE_STEP_SECONDS value, using default", "value", v, "default", 30)
		} else {
			cfg.Sampling.CoarseStep = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("FLYBY_MAX_SAMPLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid FLYBY_MAX_SAMPLES value, using default", "value", v, "default", cfg.Sampling.MaxSamples)
		} else {
			cfg.Sampling.MaxSamples = n
		}
	}

	if v := os.Getenv("FLYBY_MIN_ELEVATION"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < -90 || f > 90 {
			logger.Warn("invalid FLYBY_MIN_ELEVATION value, using default", "value", v, "default", 10)
		} else {
			cfg.MinElevationDeg = f
		}
	}

	if v := os.Getenv("FLYBY_MAX_DAYS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid FLYBY_MAX_DAYS value, using default", "value", v, "default", 3)
		} else {
			cfg.MaxDays = f
		}
	}

	if v := os.Getenv("FLYBY_MODE"); v != "" {
		mode, err := passes.ParseMode(v)
		if err != nil {
			logger.Warn("invalid FLYBY_MODE value, using default", "value", v, "default", cfg.Mode.String())
		} else {
			cfg.Mode = mode
		}
	}

	logger.Info("prediction config",
		"workers", cfg.Sampling.Workers,
		"step_seconds", cfg.Sampling.Step.Seconds(),
		"coarse_step_seconds", cfg.Sampling.CoarseStep.Seconds(),
		"max_samples", cfg.Sampling.MaxSamples,
		"min_elevation_deg", cfg.MinElevationDeg,
		"max_days", cfg.MaxDays,
		"mode", cfg.Mode.String(),
	)

	return cfg
}
