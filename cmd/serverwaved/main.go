package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serverwave/serverwave/internal/docker"
	"github.com/serverwave/serverwave/internal/events"
	"github.com/serverwave/serverwave/internal/games"
	"github.com/serverwave/serverwave/internal/registry"
	"github.com/serverwave/serverwave/internal/service"
	"github.com/serverwave/serverwave/pkg/config"
	"github.com/serverwave/serverwave/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.NewLogger(logger.ParseLevel(cfg.LogLevel), os.Stdout, cfg.LogJSON)
	logger.SetDefault(appLogger)

	logger.Info("Starting application", map[string]interface{}{
		"app":        cfg.AppName,
		"debug":      cfg.Debug,
		"config_dir": cfg.ConfigDir,
		"data_dir":   cfg.DataDir,
	})

	// Initialize Docker service
	dockerService, err := docker.NewDockerService()
	if err != nil {
		logger.Fatal("Failed to initialize Docker service", err, nil)
	}
	defer dockerService.Close()

	// The runtime being down at startup is not fatal; commands report it
	// per-call
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := dockerService.Ping(pingCtx); err != nil {
		logger.Warn("Container runtime unreachable", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Docker service initialized", nil)
	}
	cancel()

	// Initialize server registry
	reg, err := registry.New(cfg.ConfigDir)
	if err != nil {
		logger.Fatal("Failed to initialize server registry", err, nil)
	}

	// Initialize game catalog
	catalog, err := games.NewManager(cfg.CustomGamesPath)
	if err != nil {
		logger.Fatal("Failed to load game catalog", err, nil)
	}
	logger.Info("Game catalog loaded", map[string]interface{}{
		"games": len(catalog.List()),
	})

	// Initialize event bus; lifecycle events and console lines are logged
	// until a transport layer subscribes
	bus := events.NewBus()
	bus.SubscribeAll(func(event events.Event) {
		if event.Type == events.EventServerLog {
			logger.Debug("Console output", map[string]interface{}{
				"server_id": event.ServerID,
				"line":      event.Line,
			})
			return
		}
		logger.Info("Event", map[string]interface{}{
			"type":      string(event.Type),
			"server_id": event.ServerID,
		})
	})

	// Initialize stream manager and lifecycle service
	streams := service.NewStreamManager(
		dockerService,
		bus,
		cfg.StreamTailLines,
		cfg.StreamMaxReconnects,
		time.Duration(cfg.StreamReconnectDelay)*time.Second,
	)
	serverService := service.NewServerService(
		reg,
		dockerService,
		dockerService,
		catalog,
		streams,
		bus,
		cfg,
		service.BrowserOpener{},
	)
	defer serverService.Shutdown()

	// Reconcile persisted servers against the live runtime state
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	servers, err := serverService.ListServers(startupCtx)
	cancel()
	if err != nil {
		logger.Warn("Failed to reconcile servers at startup", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		logger.Info("Servers reconciled", map[string]interface{}{
			"count": len(servers),
		})
	}

	// Background resource stats collection for Prometheus
	statsCtx, stopStats := context.WithCancel(context.Background())
	go collectStats(statsCtx, serverService, time.Duration(cfg.StatsIntervalSeconds)*time.Second)
	defer stopStats()

	// Prometheus metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Info("Metrics endpoint listening", map[string]interface{}{
			"addr": cfg.MetricsAddr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics endpoint failed", err, nil)
		}
	}()

	// Graceful shutdown. Servers are left running: the registry and the
	// container runtime carry all state across restarts.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics endpoint shutdown error", map[string]interface{}{
			"error": err.Error(),
		})
	}

	logger.Info("Shutdown complete", nil)
}

// collectStats periodically refreshes the per-server resource gauges.
func collectStats(ctx context.Context, svc *service.ServerService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			servers, err := svc.ListServers(ctx)
			if err != nil {
				continue
			}
			for _, server := range servers {
				if server.ContainerID == "" {
					continue
				}
				_, _ = svc.GetStats(ctx, server.ID)
			}
		}
	}
}
