package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test", ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "test", ExporterType: "invalid"})
	require.EqualError(t, err, "unsupported exporter type: invalid (supported: grpc, http)")
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: "AlwaysOnSampler"},
		{rate: 0.0, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		assert.Contains(t, samplerFor(tt.rate).Description(), tt.want)
	}
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSessionAttributesOmitsEmpty(t *testing.T) {
	attrs := SessionAttributes("stream_1", "", "http://x/streams/stream_1/playlist.m3u8")
	require.Len(t, attrs, 2)
	assert.Equal(t, SessionIDKey, string(attrs[0].Key))
	assert.Equal(t, "stream_1", attrs[0].Value.AsString())
	assert.Equal(t, ManifestKey, string(attrs[1].Key))
}
