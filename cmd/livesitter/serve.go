package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/livesitter/livesitter/internal/api"
	"github.com/livesitter/livesitter/internal/api/middleware"
	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/config"
	"github.com/livesitter/livesitter/internal/coordinator"
	"github.com/livesitter/livesitter/internal/domain/session/manager"
	"github.com/livesitter/livesitter/internal/health"
	"github.com/livesitter/livesitter/internal/hls"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/overlay"
	"github.com/livesitter/livesitter/internal/platform/httpx"
	"github.com/livesitter/livesitter/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *flags)
		},
	}
}

func loadConfig(flags globalFlags) (config.AppConfig, error) {
	cfg, err := config.NewLoader(flags.configPath, flags.envFile, version).Load()
	if err != nil {
		return cfg, err
	}
	log.Reconfigure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	return cfg, nil
}

func retryPolicy(rc config.RetryConfig) hls.RetryPolicy {
	budget := func(b config.RetryBudget) hls.Budget {
		return hls.Budget{MaxAttempts: b.MaxAttempts, Delay: b.Delay, Timeout: b.Timeout, MaxElapsed: b.MaxElapsed}
	}
	return hls.RetryPolicy{
		Manifest: budget(rc.Manifest),
		Level:    budget(rc.Level),
		Segment:  budget(rc.Segment),
	}
}

func runServe(parent context.Context, flags globalFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := log.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	backendClient := backend.New(cfg.Backend.BaseURL, httpx.NewTracedClient(cfg.Backend.Timeout))

	policy := retryPolicy(cfg.Playback.Retry)
	fetchTimeout := max(policy.Manifest.Timeout, policy.Level.Timeout, policy.Segment.Timeout)
	player := hls.NewClient(httpx.NewTracedClient(fetchTimeout),
		hls.WithRetryPolicy(policy),
		hls.WithSurfaceFactory(hls.ProbeSurfaceFactory(cfg.Playback.Autoplay)),
	)
	engine := manager.NewEngine(player)

	availability := health.NewSignal()
	poller := health.NewPoller(backendClient, availability, cfg.Health.Interval, cfg.Health.Timeout)
	healthManager := health.NewManager(version)
	healthManager.RegisterChecker(health.NewBackendChecker(availability))

	boardOpts := []overlay.BoardOption{}
	if cfg.Overlay.ProbeImages {
		boardOpts = append(boardOpts, overlay.WithProber(overlay.NewHTTPProber(httpx.NewClient(cfg.Overlay.ProbeTimeout), cfg.Overlay.ProbeRPS)))
	}
	board := overlay.NewBoard(backendClient, boardOpts...)

	coord := coordinator.New(backendClient, engine, cfg.EffectiveManifestBase(), coordinator.WithHealth(availability))

	srv := api.New(api.Config{
		Stack: middleware.StackConfig{
			EnableMetrics:  true,
			TracingService: tracingService(cfg),
			EnableLogging:  true,
			RateLimit:      cfg.Server.RateLimit,
		},
		FrameInterval: cfg.Server.FrameInterval,
	}, api.Deps{
		Streams:  coord,
		Sessions: engine,
		Overlays: board,
		Settings: backendClient,
		Health:   healthManager,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logger.Info().
		Str(log.FieldEvent, "daemon.starting").
		Str("listen", cfg.Server.ListenAddr).
		Str(log.FieldBaseURL, cfg.Backend.BaseURL).
		Str("version", version).
		Msg("starting livesitter")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		board.Run(gctx, cfg.Overlay.RefreshInterval)
		return nil
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
		if err := engine.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("session engine: %w", err))
		}
		board.Close()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	if err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped with errors")
		return err
	}
	logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped")
	return nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.LogService
}
