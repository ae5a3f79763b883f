package backend

import (
	"time"

	"github.com/livesitter/livesitter/internal/overlay"
)

// StartStreamRequest asks the converter to begin producing HLS for a source.
type StartStreamRequest struct {
	RTSPURL  string `json:"rtsp_url"`
	StreamID string `json:"stream_id"`
}

// StartStreamResponse acknowledges a started conversion.
type StartStreamResponse struct {
	PlaylistURL string `json:"playlist_url"`
	StreamID    string `json:"stream_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type stopStreamRequest struct {
	StreamID string `json:"stream_id"`
}

// StreamInfo describes one conversion known to the backend.
type StreamInfo struct {
	StreamID    string    `json:"stream_id"`
	RTSPURL     string    `json:"rtsp_url"`
	StartedAt   time.Time `json:"started_at"`
	Status      string    `json:"status"`
	PlaylistURL string    `json:"playlist_url"`
}

// StreamStatus is the converter-wide status report.
type StreamStatus struct {
	ActiveStreams []StreamInfo `json:"active_streams"`
	TotalStreams  int          `json:"total_streams"`
	Status        string       `json:"status"`
}

// Settings are the application-wide preferences kept by the backend.
type Settings struct {
	AutoStartStreams     bool   `json:"auto_start_streams"`
	DefaultStreamQuality string `json:"default_stream_quality"`
	MaxConcurrentStreams int    `json:"max_concurrent_streams"`
	RetentionDays        int    `json:"retention_days"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// DefaultSettings mirrors what the backend serves before anything was saved.
func DefaultSettings() Settings {
	return Settings{
		DefaultStreamQuality: "720p",
		MaxConcurrentStreams: 5,
		RetentionDays:        7,
		NotificationsEnabled: true,
	}
}

// SettingsUpdate is a partial settings change.
type SettingsUpdate struct {
	AutoStartStreams     *bool   `json:"auto_start_streams,omitempty"`
	DefaultStreamQuality *string `json:"default_stream_quality,omitempty"`
	MaxConcurrentStreams *int    `json:"max_concurrent_streams,omitempty"`
	RetentionDays        *int    `json:"retention_days,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
}

// Apply merges u into s.
func (u SettingsUpdate) Apply(s Settings) Settings {
	if u.AutoStartStreams != nil {
		s.AutoStartStreams = *u.AutoStartStreams
	}
	if u.DefaultStreamQuality != nil {
		s.DefaultStreamQuality = *u.DefaultStreamQuality
	}
	if u.MaxConcurrentStreams != nil {
		s.MaxConcurrentStreams = *u.MaxConcurrentStreams
	}
	if u.RetentionDays != nil {
		s.RetentionDays = *u.RetentionDays
	}
	if u.NotificationsEnabled != nil {
		s.NotificationsEnabled = *u.NotificationsEnabled
	}
	return s
}

type messageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type createOverlayResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type overlaysResponse struct {
	Overlays []overlay.Overlay `json:"overlays"`
	Count    int               `json:"count"`
}

type overlayResponse struct {
	Overlay overlay.Overlay `json:"overlay"`
}

type settingsResponse struct {
	Settings Settings `json:"settings"`
}

type healthResponse struct {
	Status string `json:"status"`
}
