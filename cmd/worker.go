package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/fitness-content/internal/media"
	mediaPostgres "github.com/frahmantamala/fitness-content/internal/media/postgres"
	"github.com/frahmantamala/fitness-content/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the media garbage collector.`,
}

var mediaGCCmd = &cobra.Command{
	Use:   "media-gc",
	Short: "Start the media garbage collector",
	Long:  `Periodically remove stale pending uploads and finish deletions whose stored file could not be removed.`,
	Run: func(cmd *cobra.Command, args []string) {
		startMediaGC()
	},
}

var (
	gcSchedule    string
	gcConcurrency int
	gcOnce        bool
)

func startMediaGC() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(logger.Options{
		Env:       config.Env,
		Level:     config.Observability.Logging.Level,
		Format:    config.Observability.Logging.Format,
		SentryDSN: config.Observability.SentryDSN,
	})
	lg := logger.L()

	// Use command line flags if provided, otherwise use config values
	mediaConfig := config.Media
	mediaConfig.GCSchedule = getStringFlag(gcSchedule, mediaConfig.GCSchedule)
	mediaConfig.GCConcurrency = getIntFlag(gcConcurrency, mediaConfig.GCConcurrency)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := initGorm(config.Database)
	if err != nil {
		lg.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	storage, err := media.NewStorage(ctx, config.Storage)
	if err != nil {
		lg.Error("failed to initialize media storage", "error", err)
		os.Exit(1)
	}

	sweeper := media.NewSweeper(mediaPostgres.NewMediaRepository(db), storage, mediaConfig, lg)

	if gcOnce {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			lg.Error("media sweep failed", "error", err, "swept", n)
			os.Exit(1)
		}
		return
	}

	lg.Info("starting media garbage collector",
		"schedule", mediaConfig.GCSchedule,
		"concurrency", mediaConfig.GCConcurrency,
		"pending_ttl", mediaConfig.PendingTTL,
		"storage", storage.Name())

	c, err := sweeper.Schedule(ctx, mediaConfig.GCSchedule)
	if err != nil {
		lg.Error("invalid gc schedule", "schedule", mediaConfig.GCSchedule, "error", err)
		os.Exit(1)
	}
	c.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	lg.Info("media garbage collector is running. Press Ctrl+C to stop.")

	// wait for shutdown signal
	sig := <-sigChan
	lg.Info("received signal, shutting down media garbage collector", "signal", sig)
	cancel()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
		lg.Info("media garbage collector shutdown complete")
	case <-time.After(30 * time.Second):
		lg.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	mediaGCCmd.Flags().StringVar(&gcSchedule, "schedule", "", "Cron spec of the sweep (overrides config)")
	mediaGCCmd.Flags().IntVar(&gcConcurrency, "concurrency", 0, "Parallel file deletions per sweep (overrides config)")
	mediaGCCmd.Flags().BoolVar(&gcOnce, "once", false, "Run a single sweep and exit")

	workerCmd.AddCommand(mediaGCCmd)

	rootCmd.AddCommand(workerCmd)
}
