package config

import "time"

// Defaults returns the baseline configuration before file and environment
// overrides are applied.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		LogService: "livesitter",
		Backend: BackendConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 30 * time.Second,
		},
		Playback: PlaybackConfig{
			Autoplay: true,
			Retry: RetryConfig{
				Manifest: RetryBudget{MaxAttempts: 6, Delay: time.Second, Timeout: 10 * time.Second, MaxElapsed: 64 * time.Second},
				Level:    RetryBudget{MaxAttempts: 4, Delay: time.Second, Timeout: 10 * time.Second},
				Segment:  RetryBudget{MaxAttempts: 6, Delay: time.Second, Timeout: 20 * time.Second},
			},
		},
		Health: HealthConfig{
			Interval: 30 * time.Second,
			Timeout:  5 * time.Second,
		},
		Overlay: OverlayConfig{
			RefreshInterval: 15 * time.Second,
			ProbeImages:     true,
			ProbeTimeout:    5 * time.Second,
			ProbeRPS:        4,
		},
		Server: ServerConfig{
			ListenAddr:    ":8088",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   120 * time.Second,
			RateLimit:     300,
			FrameInterval: 250 * time.Millisecond,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
