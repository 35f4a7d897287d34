package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/voicetime/internal/clock"
	"github.com/goodtune/voicetime/internal/config"
	"github.com/goodtune/voicetime/internal/gateway"
	"github.com/goodtune/voicetime/internal/metrics"
	"github.com/goodtune/voicetime/internal/report"
	"github.com/goodtune/voicetime/internal/scheduler"
	"github.com/goodtune/voicetime/internal/storage"
	boltstore "github.com/goodtune/voicetime/internal/storage/bolt"
	redisstore "github.com/goodtune/voicetime/internal/storage/redis"
	sqlitestore "github.com/goodtune/voicetime/internal/storage/sqlite"
	"github.com/goodtune/voicetime/internal/systemd"
	"github.com/goodtune/voicetime/internal/tracker"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start voicetime server",
	Long:  `Start the voicetime server with the presence gateway, midnight scheduler and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting voicetime")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	tz, err := cfg.Tracking.Location()
	if err != nil {
		return fmt.Errorf("failed to load timezone: %w", err)
	}

	clk := clock.RealClock{}

	// Initialize the tracker core
	core := tracker.New(store, tz, clk, logger)

	logger.Info().
		Str("timezone", tz.String()).
		Str("channel", cfg.Tracking.ChannelName).
		Msg("Tracker initialized")

	// Report layer: resolver, builder, poster, cooldown
	names := report.NewRegistry()
	resolver, err := report.NewCachedResolver(names, cfg.Report.NameCache)
	if err != nil {
		return fmt.Errorf("failed to create name resolver: %w", err)
	}

	builder := report.NewBuilder(core, resolver, cfg.Tracking.ChannelName, logger)
	poster, err := buildPoster(cfg.Report, logger)
	if err != nil {
		return err
	}
	cooldown := report.NewCooldown(store.Meta(), cfg.Report.CooldownDuration())

	// Midnight scheduler
	sched := scheduler.New(core, builder, poster, store.Meta(), tz, cfg.Tracking.Tick(), clk, logger)
	sched.Start()

	// Presence gateway
	gatewayServer := gateway.NewServer(
		gateway.Config{
			ListenAddr: fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.GatewayPort),
			AuthToken:  cfg.Server.AuthToken,
			RateLimit:  cfg.Server.RateLimit,
			RateBurst:  cfg.Server.RateBurst,
		},
		core, names, builder, poster, cooldown, clk, logger,
	)
	if sdListeners.Gateway != nil {
		gatewayServer.SetListener(sdListeners.Gateway)
	}
	if err := gatewayServer.Start(); err != nil {
		return fmt.Errorf("failed to start gateway server: %w", err)
	}

	// Metrics server
	metricsServer := metrics.NewServer(
		fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort),
		logger,
	)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if notified, err := systemd.NotifyReady(); err != nil {
		logger.Error().Err(err).Msg("Failed to notify systemd")
	} else if notified {
		logger.Debug().Msg("Notified systemd readiness")
	}

	logger.Info().Msg("voicetime startup complete")
	logger.Info().Msgf("Gateway: http://%s:%d", cfg.Server.BindAddress, cfg.Server.GatewayPort)
	logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	sched.Stop()

	if err := gatewayServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping gateway server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("voicetime stopped")
	return nil
}

// openStorage creates the configured storage backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "sqlite":
		return sqlitestore.Open(cfg.Path)
	case "bolt":
		return boltstore.Open(cfg.Path)
	case "redis":
		return redisstore.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// buildPoster creates the configured report sink.
func buildPoster(cfg config.ReportConfig, logger zerolog.Logger) (report.Poster, error) {
	switch cfg.Poster {
	case "log":
		return report.LogPoster{Logger: logger}, nil
	case "webhook":
		return report.NewWebhookPoster(cfg.WebhookURL), nil
	default:
		return nil, fmt.Errorf("unknown report poster: %s", cfg.Poster)
	}
}
