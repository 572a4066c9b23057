package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/hardwared/pkg/api"
	"github.com/cuemby/hardwared/pkg/config"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/metrics"
)

var serveAPICmd = &cobra.Command{
	Use:   "serve-api",
	Short: "Run the REST API server",
	RunE:  runServeAPI,
}

func init() {
	cfg := config.New()
	cfg.AddFlags(serveAPICmd.Flags())
	serveAPICmd.Flags().String("admin-token", "admin-token", "Bearer token granted the admin role")
	serveAPICmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Bind address for /metrics, /health, /ready")
}

func runServeAPI(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("serve-api")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rt, store, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	configPath, _ := cmd.Flags().GetString("config")
	if err := config.WatchAndReconfigure(configPath, rt.Registry); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	collector := metrics.NewCollector(rt)
	collector.Start()

	healthServer := api.NewHealthServer(rt)
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	go func() {
		if err := healthServer.Start(metricsAddr); err != nil {
			logger.Error().Err(err).Msg("health/metrics server exited")
		}
	}()
	logger.Info().Str("addr", metricsAddr).Msg("health/metrics server listening")

	adminToken, _ := cmd.Flags().GetString("admin-token")
	server, err := api.NewServer(rt, devTokenResolver(adminToken))
	if err != nil {
		return fmt.Errorf("build API server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("API server error")
		cancel()
		return err
	}

	cancel()
	collector.Stop()
	return nil
}
