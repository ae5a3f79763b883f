// Package api serves the control and presentation HTTP API of the daemon.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/livesitter/livesitter/internal/api/middleware"
	"github.com/livesitter/livesitter/internal/backend"
	"github.com/livesitter/livesitter/internal/coordinator"
	"github.com/livesitter/livesitter/internal/domain/session/model"
	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/overlay"
)

// Streams starts and stops streams across backend and local playback.
type Streams interface {
	RequestStart(ctx context.Context, source, streamID string) (model.SessionRecord, error)
	RequestStop(ctx context.Context, streamID string) (coordinator.StopResult, error)
	Status(ctx context.Context) (backend.StreamStatus, error)
}

// Sessions controls local playback sessions.
type Sessions interface {
	Retry(ctx context.Context, id string) (model.SessionRecord, error)
	Reset(ctx context.Context, id string) (model.SessionRecord, error)
	Play(ctx context.Context, id string) (model.SessionRecord, error)
	Pause(ctx context.Context, id string) (model.SessionRecord, error)
	Get(id string) (model.SessionRecord, error)
	List() []model.SessionRecord
}

// Overlays is the overlay set and its compositor.
type Overlays interface {
	Overlays() []overlay.Overlay
	Get(id string) (overlay.Overlay, bool)
	Errors() overlay.Errors
	Create(ctx context.Context, req overlay.CreateRequest) (string, error)
	Update(ctx context.Context, id string, req overlay.UpdateRequest) error
	Delete(ctx context.Context, id string) error
	MarkImageFailed(id, content, reason string) error
	Frame(tick uint64, at time.Time, vp overlay.Viewport, clock *overlay.Clock) overlay.Frame
}

// SettingsStore reads and updates the backend's application settings.
type SettingsStore interface {
	Settings(ctx context.Context) (backend.Settings, error)
	UpdateSettings(ctx context.Context, u backend.SettingsUpdate) error
}

// Prober serves liveness and readiness.
type Prober interface {
	ServeHealth(w http.ResponseWriter, r *http.Request)
	ServeReady(w http.ResponseWriter, r *http.Request)
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Streams  Streams
	Sessions Sessions
	Overlays Overlays
	Settings SettingsStore
	Health   Prober
}

// Config tunes the HTTP surface.
type Config struct {
	Stack middleware.StackConfig
	// FrameInterval is the push period of the frame WebSocket.
	FrameInterval time.Duration
	// PongWait bounds the silence tolerated on the frame WebSocket. Pings are
	// sent at 9/10 of it.
	PongWait time.Duration
}

// Server is the HTTP API.
type Server struct {
	deps     Deps
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	tick     atomic.Uint64
	upgrader websocket.Upgrader
	handler  http.Handler
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaultPongWait
	}
	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: log.WithComponent("api"),
		now:    time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := middleware.NewRouter(s.cfg.Stack)

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.ServeHealth)
		r.Get("/readyz", s.deps.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/streams", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleStartStream)
			r.Get("/status", s.handleStreamStatus)
			r.Get("/{id}", s.handleGetSession)
			r.Post("/{id}/stop", s.handleStopStream)
			r.Post("/{id}/retry", s.handleSessionCommand(s.deps.Sessions.Retry))
			r.Post("/{id}/reset", s.handleSessionCommand(s.deps.Sessions.Reset))
			r.Post("/{id}/play", s.handleSessionCommand(s.deps.Sessions.Play))
			r.Post("/{id}/pause", s.handleSessionCommand(s.deps.Sessions.Pause))
		})
		r.Route("/overlays", func(r chi.Router) {
			r.Get("/", s.handleListOverlays)
			r.Post("/", s.handleCreateOverlay)
			r.Get("/{id}", s.handleGetOverlay)
			r.Put("/{id}", s.handleUpdateOverlay)
			r.Delete("/{id}", s.handleDeleteOverlay)
			r.Post("/{id}/image-failed", s.handleImageFailed)
		})
		r.Get("/frame", s.handleFrame)
		r.Get("/frames/ws", s.handleFrameSocket)
		if s.deps.Settings != nil {
			r.Get("/settings", s.handleGetSettings)
			r.Post("/settings", s.handleUpdateSettings)
		}
	})
	return r
}
