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
	"github.com/cuemby/hardwared/pkg/reconciler"
)

var serveWorkerCmd = &cobra.Command{
	Use:   "serve-worker",
	Short: "Run the reconciler, dispatching Process to every pending worker task",
	RunE:  runServeWorker,
}

func init() {
	cfg := config.New()
	cfg.AddFlags(serveWorkerCmd.Flags())
	serveWorkerCmd.Flags().String("metrics-addr", "127.0.0.1:9091", "Bind address for /metrics, /health, /ready")
}

func runServeWorker(cmd *cobra.Command, args []string) error {
	logger := log.WithComponent("serve-worker")

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

	recon := reconciler.New(rt)
	ctx, cancel := context.WithCancel(context.Background())
	recon.Start(ctx)
	logger.Info().Msg("reconciler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down")

	recon.Stop()
	cancel()
	collector.Stop()
	return nil
}
