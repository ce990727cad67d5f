// Package main is the entry point for the printwatch fleet supervisor.
// It wires configuration, logging, metrics, the connection supervisor,
// and the HTTP surface, and manages the application lifecycle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/RussHewgill/printer-watcher-sub000/internal/adapter/config"
	"github.com/RussHewgill/printer-watcher-sub000/internal/health"
	"github.com/RussHewgill/printer-watcher-sub000/internal/metrics"
	"github.com/RussHewgill/printer-watcher-sub000/internal/service"
	"github.com/RussHewgill/printer-watcher-sub000/pkg/logging"
)

const (
	serviceName    = "printwatch"
	serviceVersion = "1.0.0"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     serviceName,
		Short:   "3D-printer fleet connection supervisor",
		Version: serviceVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the service config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format)
	logger.Info().Str("version", serviceVersion).Str("env", cfg.Service.Environment).Msg("Starting printwatch")

	metricsRegistry := metrics.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	supervisor := service.NewSupervisor(service.SupervisorConfig{
		BufferSize:   cfg.Fleet.BufferSize,
		CloudToken:   cfg.Cloud.Token,
		InitialDelay: cfg.Reconnect.InitialDelay,
		MaxDelay:     cfg.Reconnect.MaxDelay,
	}, logger, metricsRegistry)

	// Load the printer inventory and register the fleet
	printers, err := config.LoadPrinters(cfg.Fleet.PrintersFile)
	if err != nil {
		return fmt.Errorf("failed to load printers file: %w", err)
	}
	logger.Info().Int("count", len(printers)).Msg("Loaded printer configurations")

	for _, printer := range printers {
		if err := supervisor.AddPrinter(printer); err != nil {
			logger.Error().Err(err).Str("device_id", string(printer.ID)).Msg("Failed to register printer")
		}
	}

	// Run the merge loop
	runErr := make(chan error, 1)
	go func() {
		runErr <- supervisor.Run(ctx)
	}()

	// HTTP surface: health, metrics, and the read-only status snapshot
	healthChecker := health.NewChecker(supervisor, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LiveHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadyHandler)
	mux.HandleFunc("/printers", healthChecker.PrintersHandler)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal or a merge-loop failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, initiating graceful shutdown...")
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("Supervisor exited")
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	logger.Info().Msg("printwatch shutdown complete")
	return nil
}
