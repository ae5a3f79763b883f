package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the resolved configuration and joins every problem found.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if err := validateHTTPURL(cfg.Backend.BaseURL); err != nil {
		add("backend.baseUrl: %v", err)
	}
	if cfg.Playback.ManifestBaseURL != "" {
		if err := validateHTTPURL(cfg.Playback.ManifestBaseURL); err != nil {
			add("playback.manifestBaseUrl: %v", err)
		}
	}
	if cfg.Backend.Timeout <= 0 {
		add("backend.timeout must be positive")
	}

	for name, b := range map[string]RetryBudget{
		"manifest": cfg.Playback.Retry.Manifest,
		"level":    cfg.Playback.Retry.Level,
		"segment":  cfg.Playback.Retry.Segment,
	} {
		if b.MaxAttempts < 1 {
			add("playback.retry.%s.maxAttempts must be >= 1", name)
		}
		if b.Delay < 0 || b.Timeout <= 0 || b.MaxElapsed < 0 {
			add("playback.retry.%s has non-positive timing", name)
		}
	}

	if cfg.Health.Interval <= 0 {
		add("health.interval must be positive")
	}
	if cfg.Health.Timeout <= 0 {
		add("health.timeout must be positive")
	}
	if cfg.Overlay.RefreshInterval < 0 {
		add("overlay.refreshInterval must not be negative")
	}
	if cfg.Overlay.ProbeImages && (cfg.Overlay.ProbeTimeout <= 0 || cfg.Overlay.ProbeRPS <= 0) {
		add("overlay probing requires positive probeTimeout and probeRps")
	}

	if cfg.Server.ListenAddr == "" {
		add("server.listenAddr is required")
	}
	if cfg.Server.RateLimit < 0 {
		add("server.rateLimit must not be negative")
	}
	if cfg.Server.FrameInterval <= 0 {
		add("server.frameInterval must be positive")
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ExporterType != "grpc" && cfg.Telemetry.ExporterType != "http" {
			add("telemetry.exporter must be grpc or http, got %q", cfg.Telemetry.ExporterType)
		}
		if cfg.Telemetry.Endpoint == "" {
			add("telemetry.endpoint is required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		add("telemetry.samplingRate must be within [0,1]")
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
