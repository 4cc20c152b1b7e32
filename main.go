package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/events"
	"dataset-studio/internal/handlers"
	"dataset-studio/internal/index"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/memory"
	"dataset-studio/internal/metrics"
	"dataset-studio/internal/middleware"
	"dataset-studio/internal/scanner"
	"dataset-studio/internal/session"
	"dataset-studio/internal/startup"
	"dataset-studio/internal/thumbs"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Configure GOMEMLIMIT before the index and thumbnail cache allocate
	memResult := memory.ConfigureFromEnv()
	startup.LogMemoryConfig(startup.MemoryConfig{
		Configured:     memResult.Configured,
		Source:         memResult.Source,
		ContainerLimit: memResult.ContainerLimit,
		GoMemLimit:     memResult.GoMemLimit,
		Ratio:          memResult.Ratio,
	})

	metrics.InitializeMetrics()
	prometheus.MustRegister(metrics.NewRuntimeCollector())

	thumbs.InitVips()
	defer thumbs.ShutdownVips()

	// Open the dataset store
	store, err := dataset.Open(config.DatasetDir, dataset.Convention{
		Ext:           config.SidecarExt,
		TrailingComma: config.SidecarTrailingComma,
	})
	if err != nil {
		startup.LogFatal("Failed to open dataset: %v", err)
	}

	// Initialize the tag index
	idxStart := time.Now()
	idx, err := index.New(context.Background(), config.IndexPath)
	if err != nil {
		startup.LogFatal("Failed to initialize index: %v", err)
	}
	defer idx.Close()
	idx.SetLoader(store.Load)
	startup.LogIndexInit(time.Since(idxStart))

	hub := events.NewHub()

	cache := thumbs.NewCache(int64(config.ThumbnailCacheMB)*1024*1024, nil)

	// Memory backpressure for bulk thumbnail rendering
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	cache.SetMemoryMonitor(monitor)

	// Every store mutation flows into the index, the event hub and the
	// thumbnail cache from here; handlers never update those directly.
	store.SetOnChange(func(old, new *dataset.Item) {
		idx.OnItemChanged(old, new)
		if new == nil {
			hub.PublishItemDeleted(old.ID)
			cache.Invalidate(old.ID)
			return
		}
		hub.PublishItemChanged(new.ID)
	})

	// Edit sessions
	sessions := session.NewManager(store, config.UndoDepth)
	go func() {
		ticker := time.NewTicker(15 * time.Minute)
		for range ticker.C {
			if n := sessions.PruneIdle(config.SessionMaxIdle); n > 0 {
				logging.Info("Pruned %d idle edit sessions", n)
			}
		}
	}()

	// Scanner
	sc := scanner.New(store, idx, hub, config.ScanInterval)
	sc.SetPollInterval(config.PollInterval)
	if config.PrewarmThumbnails {
		sc.SetOnInitialScan(func(items []*dataset.Item) {
			cache.Prewarm(context.Background(), items, store.AbsImagePath)
		})
	}
	startup.LogScannerInit(config.ScanInterval, config.PollInterval)
	sc.Start()
	startup.LogScannerStarted()

	// Initialize handlers
	h := handlers.New(store, idx, sessions, cache, sc, hub)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Middleware chain: metrics → logging → compression. The WebSocket
	// endpoint bypasses the wrapping middlewares since the upgrade needs
	// the raw connection.
	metricsConfig := middleware.DefaultMetricsConfig()
	metricsConfig.SkipPaths = append(metricsConfig.SkipPaths, "/api/events")
	handler := middleware.Metrics(metricsConfig)(router)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggingConfig.SkipPaths = []string{"/api/events"}
	handler = middleware.Logger(loggingConfig)(handler)

	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	// Create server. WriteTimeout stays zero for the long-lived WebSocket
	// connections; per-message deadlines are set by the events handler.
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Separate metrics listener so scrapes never compete with API traffic
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, sc, hub, monitor)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.HealthCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadyCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Items. The {id} patterns are registered most-specific first since
	// item ids are relative paths and may contain slashes.
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.CreateItem).Methods("POST")
	api.HandleFunc("/items/{id:.+}/image", h.GetImage).Methods("GET")
	api.HandleFunc("/items/{id:.+}/thumbnail", h.GetThumbnail).Methods("GET")
	api.HandleFunc("/items/{id:.+}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id:.+}", h.DeleteItem).Methods("DELETE")

	// Edits
	api.HandleFunc("/edit", h.ApplyEdit).Methods("POST")
	api.HandleFunc("/edit/undo", h.Undo).Methods("POST")
	api.HandleFunc("/edit/redo", h.Redo).Methods("POST")
	api.HandleFunc("/bulk", h.BulkApply).Methods("POST")

	// Tags and dataset state
	api.HandleFunc("/tags", h.GetAllTags).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/resync", h.Resync).Methods("POST")

	// Change notifications (WebSocket)
	api.HandleFunc("/events", h.Events).Methods("GET")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, sc *scanner.Scanner, hub *events.Hub, monitor *memory.Monitor) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	sc.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	startup.LogShutdownStep("Closing event hub")
	hub.Stop()
	startup.LogShutdownStepComplete("Event hub closed")

	monitor.Stop()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
