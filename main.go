package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fileindex/internal/filesystem"
	"fileindex/internal/handlers"
	"fileindex/internal/indexer"
	"fileindex/internal/logging"
	"fileindex/internal/memory"
	"fileindex/internal/metrics"
	"fileindex/internal/middleware"
	"fileindex/internal/startup"

	"github.com/gorilla/mux"
)

const (
	collectorInterval = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	startTime := time.Now()

	// Memory limit first, so the build sizing sees it
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"media":    config.MediaDir,
		"database": config.DatabaseDir,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Open the index
	dbStart := time.Now()
	engine, err := indexer.New(ctx, config.Engine(monitor))
	if err != nil {
		startup.LogFatal("Failed to initialize index: %v", err)
	}
	startup.LogDatabaseInit(engine.Database().Path(), time.Since(dbStart))

	built := engine.IsBuilt(ctx)
	startup.LogIndexerInit(built, engine.Stats(ctx).LastBuilt, config.IndexInterval)

	if config.IndexOnStart && !built {
		if err := engine.TriggerBuild(ctx); err != nil {
			logging.Error("Failed to start initial build: %v", err)
		} else {
			startup.LogIndexerStarted()
		}
	}
	engine.StartPeriodic(ctx, config.IndexInterval)

	collector := metrics.NewCollector(engine, collectorInterval)
	collector.Start()

	h := handlers.New(ctx, engine)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	srv := newServer(":"+config.Port, middleware.Logger(middleware.LoggingConfig{
		SkipPaths:       []string{"/metrics"},
		LogHealthChecks: config.LogHealthChecks,
	})(router))

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = newMetricsServer(":"+config.MetricsPort, h)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(shutdownDeps{
		cancel:     cancel,
		srv:        srv,
		metricsSrv: metricsSrv,
		collector:  collector,
		monitor:    monitor,
		engine:     engine,
	})

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-shutdownDone
}

// setupRouter registers the API and instruments every matched route.
func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	return r
}

func newServer(addr string, handler http.Handler) *http.Server {
	// No write timeout: exports run as long as they need and
	// streaming.TimeoutWriter bounds stalled clients.
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// newMetricsServer serves /metrics on its own port so scrapes stay off the
// API listener.
func newMetricsServer(addr string, h *handlers.Handlers) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", h.MetricsHandler())
	return &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type shutdownDeps struct {
	cancel     context.CancelFunc
	srv        *http.Server
	metricsSrv *http.Server
	collector  *metrics.Collector
	monitor    *memory.Monitor
	engine     *indexer.Engine
}

var shutdownDone = make(chan struct{})

func handleShutdown(deps shutdownDeps) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	shutdown(deps)
	close(shutdownDone)
}

// shutdown stops servers first so no request races the database close.
func shutdown(deps shutdownDeps) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := deps.srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if deps.metricsSrv != nil {
		if err := deps.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Stopping indexer")
	deps.cancel()
	deps.collector.Stop()
	deps.monitor.Stop()
	if err := waitForBuild(ctx, deps.engine.Builder()); err != nil {
		logging.Warn("Build did not stop in time: %v", err)
	}
	startup.LogShutdownStepComplete("Indexer stopped")

	startup.LogShutdownStep("Closing database")
	if err := deps.engine.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}

// waitForBuild polls until a cancelled build has returned.
func waitForBuild(ctx context.Context, b *indexer.Builder) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for b.IsBuilding() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
