package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"asset-library/internal/autoimport"
	"asset-library/internal/handlers"
	"asset-library/internal/library"
	"asset-library/internal/logging"
	"asset-library/internal/metrics"
	"asset-library/internal/startup"
	"asset-library/internal/statcache"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()

	// Initialize the image stat cache
	cacheStart := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache, err := statcache.Open(ctx, config.StatCachePath)
	if err != nil {
		logging.Fatal("Failed to initialize stat cache: %v", err)
	}
	defer cache.Close()
	startup.LogStatCacheInit(time.Since(cacheStart))

	// Initialize the library
	lib, err := library.New(library.Options{
		LibraryDir:    config.LibraryDir,
		AutoDir:       config.AutoDir,
		DataDir:       config.DataDir,
		AssetsPerPage: config.AssetsPerPage,
	})
	if err != nil {
		logging.Fatal("Failed to initialize library: %v", err)
	}

	importer := autoimport.New(lib)
	lib.SetAutoImporter(importer)

	// Initial scan in the background so the server comes up immediately;
	// /readyz reports 503 until it finishes.
	startup.LogLibraryInit(lib.LibraryDir(), config.RescanInterval)
	go func() {
		scanStart := time.Now()
		if err := lib.UpdateLibrary(ctx); err != nil {
			logging.Error("Initial library scan failed: %v", err)
			return
		}
		startup.LogLibraryScanned(lib.Len(), time.Since(scanStart).Round(time.Millisecond))

		if err := lib.UpdateAuto(ctx); err != nil {
			logging.Error("Initial auto-import sweep failed: %v", err)
		}
	}()

	// Periodic rescans as a safety net behind the watcher.
	go rescanLoop(ctx, lib, config.RescanInterval)

	if config.WatchEnabled {
		go func() {
			if err := lib.Watch(ctx); err != nil && ctx.Err() == nil {
				logging.Error("Library watcher stopped: %v", err)
			}
		}()
	}

	// Gauge refresh loop
	collector := metrics.NewCollector(lib, 30*time.Second)
	collector.Start()

	// Initialize handlers and router
	h := handlers.New(lib, cache, importer)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:    ":" + config.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, collector, cancel)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime).Round(time.Millisecond),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func rescanLoop(ctx context.Context, lib *library.Library, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lib.UpdateAuto(ctx); err != nil {
				logging.Error("Scheduled auto-import sweep failed: %v", err)
			}
			if err := lib.UpdateLibrary(ctx); err != nil {
				logging.Error("Scheduled library rescan failed: %v", err)
			}
		}
	}
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	// Stops the watcher and any in-flight scans.
	cancel()

	collector.Stop()
	startup.LogShutdownStep("Metrics collector stopped")

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStep("Metrics server stopped")
		}
	}

	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStep("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
