package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fentz26/listsync/internal/audit"
	"github.com/fentz26/listsync/internal/config"
	"github.com/fentz26/listsync/internal/controlplane"
	"github.com/fentz26/listsync/internal/notify"
	"github.com/fentz26/listsync/internal/reconcile"
	"github.com/fentz26/listsync/internal/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	listenAddr string
	dbDSN      string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the listsync daemon",
	Long:  `Starts the listsync daemon which serves the sync API and real-time notifications.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbDSN, "db", "", "Database path or DSN: sqlite://, postgres://, memory:// (overrides config)")
}

// loadConfig loads the config file and applies the daemon flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if listenAddr != "" {
		cfg.Addr = listenAddr
	}
	if dbDSN != "" {
		cfg.Database = dbDSN
	}
	return cfg, cfg.Validate()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.TokenSecret == "" {
		return fmt.Errorf("%w: token_secret is required to run the daemon (set LISTSYNC_TOKEN_SECRET)", config.ErrInvalid)
	}

	logger := cfg.NewLogger(os.Stderr)
	logger.Info("starting listsync daemon")

	// Initialize store
	s, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database opened", "engine", s.Engine())

	// Initialize components
	clock := reconcile.SystemClock{}
	hub := notify.NewHub(&cfg.Notify, logger)
	dispatcher := notify.NewDispatcher(s, hub, &cfg.Notify, logger)
	recorder := audit.NewRecorder(s, clock, logger)
	engine := reconcile.NewEngine(s, dispatcher, reconcile.Options{
		Clock:   clock,
		Auditor: recorder,
		Logger:  logger,
	})

	// Create service and server
	service := controlplane.NewService(s, engine, dispatcher, clock, logger)
	server := controlplane.NewServer(service, hub, controlplane.Options{
		Addr:         cfg.Addr,
		TokenSecret:  cfg.TokenSecret,
		MaxBodyBytes: cfg.MaxBodyBytes,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)

	dispatcher.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			dispatcher.Stop()
			hub.Close()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("draining notifications", "dropped", dispatcher.Dropped())
	dispatcher.Stop()
	hub.Close()

	logger.Info("closing database connection")
	if err := s.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
