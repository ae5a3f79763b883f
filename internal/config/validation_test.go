package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*AppConfig) {}},
		{
			name:    "backend url scheme",
			mutate:  func(c *AppConfig) { c.Backend.BaseURL = "ftp://backend" },
			wantErr: "backend.baseUrl",
		},
		{
			name:    "backend url host",
			mutate:  func(c *AppConfig) { c.Backend.BaseURL = "http://" },
			wantErr: "missing host",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *AppConfig) { c.Playback.Retry.Segment.MaxAttempts = 0 },
			wantErr: "playback.retry.segment.maxAttempts",
		},
		{
			name:    "health interval",
			mutate:  func(c *AppConfig) { c.Health.Interval = 0 },
			wantErr: "health.interval",
		},
		{
			name: "telemetry exporter",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.ExporterType = "zipkin"
			},
			wantErr: "telemetry.exporter",
		},
		{
			name:    "sampling rate",
			mutate:  func(c *AppConfig) { c.Telemetry.SamplingRate = 2 },
			wantErr: "samplingRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
