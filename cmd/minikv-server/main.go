// Package main provides the entry point for minikv-server.
//
// minikv-server is a small in-memory key-value store speaking a
// binary wire protocol over TCP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stefankamdem/minikv/internal/infra/buildinfo"
	"github.com/stefankamdem/minikv/internal/infra/confloader"
	"github.com/stefankamdem/minikv/internal/infra/shutdown"
	"github.com/stefankamdem/minikv/internal/server/config"
	"github.com/stefankamdem/minikv/internal/server/httpserver"
	"github.com/stefankamdem/minikv/internal/server/respserver"
	"github.com/stefankamdem/minikv/internal/store"
	"github.com/stefankamdem/minikv/internal/telemetry/logger"
	"github.com/stefankamdem/minikv/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command line flags
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("minikv-server %s\n", buildinfo.String())
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting minikv-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", *configFile)

	// Initialize metrics and the store
	registry := prometheus.NewRegistry()
	st := store.New()
	metrics := metric.New(registry, st.Len)

	// Create the wire protocol server
	srv := respserver.New(&respserver.Config{
		Addr:         cfg.Server.Addr,
		MaxClients:   cfg.Server.MaxClients,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		RateLimit:    cfg.Server.RateLimit,
	}, st, log, metrics)

	if err := srv.Start(context.Background()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("server listening", "addr", srv.Addr().String())

	// Setup graceful shutdown
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Register shutdown hooks (reverse order of startup)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})

	// Start the operational HTTP endpoint when enabled
	if cfg.Ops.Enabled {
		opsServer := httpserver.New(cfg.Ops.Addr, registry)

		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down ops endpoint")
			return opsServer.Shutdown(ctx)
		})

		go func() {
			log.Info("ops endpoint listening", "addr", cfg.Ops.Addr)
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops endpoint error", "error", err)
			}
		}()
	}

	// Reload the log level when the config file changes
	if *configFile != "" {
		watcher, err := startConfigWatcher(*configFile, log)
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	// Wait for shutdown signal
	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from defaults, file, and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	// Create loader with optional config file
	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)

	// Defaults form the lowest layer; file and environment override them.
	if err := loader.LoadMap(config.DefaultMap()); err != nil {
		return nil, err
	}

	// Load and unmarshal
	cfg := &config.ServerConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// startConfigWatcher watches the config file and applies log level
// changes at runtime. Other settings require a restart.
func startConfigWatcher(configFile string, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(log)
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg, err := loadConfig(path)
		if err != nil {
			log.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.Level() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})

	watcher.StartAsync()
	return watcher, nil
}
