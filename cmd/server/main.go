// Package main is the entry point for the LocusView server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/locusview/server/internal/api"
	"github.com/locusview/server/internal/cache"
	"github.com/locusview/server/internal/config"
	"github.com/locusview/server/internal/datasources"
	"github.com/locusview/server/internal/plot"
	"github.com/locusview/server/internal/render"
	"github.com/locusview/server/internal/service"
)

func main() {
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", "err", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})

	logger.Info("Starting LocusView server", "port", cfg.Server.Port)

	// Cache manager and renderer are shared across all plots.
	cacheManager, err := cache.NewManager(cache.Config{
		ImageCacheSizeMB: cfg.Cache.ImageSizeMB,
		ImageTTL:         time.Duration(cfg.Cache.ImageTTLMinutes) * time.Minute,
		DataCacheSize:    cfg.Cache.DataEntries,
	})
	if err != nil {
		logger.Fatal("Failed to initialize cache", "err", err)
	}
	defer cacheManager.Close()

	renderer := render.NewRenderer(render.Config{})
	sourceTypes := datasources.NewTypeRegistry()
	layouts := plot.NewRegistry()

	plotIDs := make([]string, 0, len(cfg.Plots))
	for _, pc := range cfg.Plots {
		plotIDs = append(plotIDs, pc.ID)
	}
	registry := api.NewPlotRegistry(plotIDs[0], plotIDs, cfg.Server.Title)

	logger.Info("Initializing plots", "count", len(cfg.Plots))

	for _, pc := range cfg.Plots {
		sources, err := datasources.FromConfig(sourceTypes, pc.Sources)
		if err != nil {
			logger.Fatal("Failed to build data sources", "plot", pc.ID, "err", err)
		}

		layoutCfg, err := layouts.Get(pc.Layout)
		if err != nil {
			logger.Fatal("Unknown layout", "plot", pc.ID, "err", err)
		}
		layoutCfg.State = pc.State

		p, err := plot.New(layoutCfg, sources, nil)
		if err != nil {
			logger.Fatal("Failed to build plot", "plot", pc.ID, "err", err)
		}

		svc := service.NewPlotService(service.PlotServiceConfig{
			PlotID:   pc.ID,
			Plot:     p,
			Cache:    cacheManager,
			Renderer: renderer,
			Logger:   logger,
		})
		registry.Register(pc.ID, pc.Layout, svc)

		logger.Info("Plot ready",
			"plot", pc.ID,
			"layout", pc.Layout,
			"region", p.State().Region().String(),
			"sources", len(pc.Sources))
	}

	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		Cache:       cacheManager,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening", "addr", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "err", err)
	}

	logger.Info("Server stopped")
}
