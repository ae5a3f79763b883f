package config

import "time"

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version    string          `yaml:"-"`
	LogLevel   string          `yaml:"logLevel"`
	LogService string          `yaml:"logService"`
	Backend    BackendConfig   `yaml:"backend"`
	Playback   PlaybackConfig  `yaml:"playback"`
	Health     HealthConfig    `yaml:"health"`
	Overlay    OverlayConfig   `yaml:"overlay"`
	Server     ServerConfig    `yaml:"server"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// BackendConfig points at the converter/storage service.
type BackendConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Timeout time.Duration `yaml:"timeout"`
}

// PlaybackConfig controls the segment-stream client.
type PlaybackConfig struct {
	// ManifestBaseURL is the prefix for {base}/streams/{id}/playlist.m3u8.
	// Empty means Backend.BaseURL.
	ManifestBaseURL string      `yaml:"manifestBaseUrl"`
	Autoplay        bool        `yaml:"autoplay"`
	Retry           RetryConfig `yaml:"retry"`
}

// RetryConfig groups the per-category fetch budgets.
type RetryConfig struct {
	Manifest RetryBudget `yaml:"manifest"`
	Level    RetryBudget `yaml:"level"`
	Segment  RetryBudget `yaml:"segment"`
}

// RetryBudget bounds the retries of one fetch category. A zero MaxElapsed
// disables the total ceiling.
type RetryBudget struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxElapsed  time.Duration `yaml:"maxElapsed"`
}

// HealthConfig controls the backend availability poller.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// OverlayConfig controls overlay refetching and image probing.
type OverlayConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	ProbeImages     bool          `yaml:"probeImages"`
	ProbeTimeout    time.Duration `yaml:"probeTimeout"`
	ProbeRPS        float64       `yaml:"probeRps"`
}

// ServerConfig controls the control/presentation API listener.
type ServerConfig struct {
	ListenAddr    string        `yaml:"listenAddr"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	RateLimit     int           `yaml:"rateLimit"`
	FrameInterval time.Duration `yaml:"frameInterval"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// EffectiveManifestBase returns the base used to derive manifest locators.
func (c AppConfig) EffectiveManifestBase() string {
	if c.Playback.ManifestBaseURL != "" {
		return c.Playback.ManifestBaseURL
	}
	return c.Backend.BaseURL
}
