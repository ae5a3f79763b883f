package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/livesitter/livesitter/internal/log"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	envFile         string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. envFile is an optional dotenv
// file loaded before the environment is read; a missing file is ignored.
func NewLoader(configPath, envFile, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		envFile:         envFile,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load resolves the configuration: defaults, then the strict YAML file, then
// environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	if l.envFile != "" {
		// godotenv never overrides variables already present in the process.
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	logger := log.WithComponent("config")
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("file", l.configPath).
		Str(log.FieldBaseURL, cfg.Backend.BaseURL).
		Str("listen", cfg.Server.ListenAddr).
		Msg("configuration loaded")
	return cfg, nil
}

// loadFile decodes a YAML file on top of cfg with STRICT parsing.
// Unknown fields are rejected to prevent silent misconfiguration.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) key(name string) string {
	k := EnvPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)
	cfg.LogService = ParseString(l.key("LOG_SERVICE"), cfg.LogService)

	cfg.Backend.BaseURL = ParseString(l.key("BACKEND_URL"), cfg.Backend.BaseURL)
	cfg.Backend.Timeout = ParseDuration(l.key("BACKEND_TIMEOUT"), cfg.Backend.Timeout)

	cfg.Playback.ManifestBaseURL = ParseString(l.key("MANIFEST_BASE_URL"), cfg.Playback.ManifestBaseURL)
	cfg.Playback.Autoplay = ParseBool(l.key("AUTOPLAY"), cfg.Playback.Autoplay)
	cfg.Playback.Retry.Manifest.MaxAttempts = ParseInt(l.key("MANIFEST_MAX_ATTEMPTS"), cfg.Playback.Retry.Manifest.MaxAttempts)
	cfg.Playback.Retry.Level.MaxAttempts = ParseInt(l.key("LEVEL_MAX_ATTEMPTS"), cfg.Playback.Retry.Level.MaxAttempts)
	cfg.Playback.Retry.Segment.MaxAttempts = ParseInt(l.key("SEGMENT_MAX_ATTEMPTS"), cfg.Playback.Retry.Segment.MaxAttempts)

	cfg.Health.Interval = ParseDuration(l.key("HEALTH_INTERVAL"), cfg.Health.Interval)
	cfg.Health.Timeout = ParseDuration(l.key("HEALTH_TIMEOUT"), cfg.Health.Timeout)

	cfg.Overlay.RefreshInterval = ParseDuration(l.key("OVERLAY_REFRESH_INTERVAL"), cfg.Overlay.RefreshInterval)
	cfg.Overlay.ProbeImages = ParseBool(l.key("OVERLAY_PROBE_IMAGES"), cfg.Overlay.ProbeImages)
	cfg.Overlay.ProbeTimeout = ParseDuration(l.key("OVERLAY_PROBE_TIMEOUT"), cfg.Overlay.ProbeTimeout)
	cfg.Overlay.ProbeRPS = ParseFloat(l.key("OVERLAY_PROBE_RPS"), cfg.Overlay.ProbeRPS)

	cfg.Server.ListenAddr = ParseString(l.key("LISTEN_ADDR"), cfg.Server.ListenAddr)
	cfg.Server.RateLimit = ParseInt(l.key("RATE_LIMIT"), cfg.Server.RateLimit)
	cfg.Server.FrameInterval = ParseDuration(l.key("FRAME_INTERVAL"), cfg.Server.FrameInterval)

	cfg.Telemetry.Enabled = ParseBool(l.key("TELEMETRY_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.ExporterType = ParseString(l.key("OTLP_EXPORTER"), cfg.Telemetry.ExporterType)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTLP_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("TRACE_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)
}
