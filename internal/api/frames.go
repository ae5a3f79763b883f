package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livesitter/livesitter/internal/log"
	"github.com/livesitter/livesitter/internal/metrics"
	"github.com/livesitter/livesitter/internal/overlay"
)

const (
	defaultWidth    = 1280
	defaultHeight   = 720
	wsWriteWait     = 5 * time.Second
	defaultPongWait = 60 * time.Second
)

var errBadViewport = &overlay.ValidationError{Field: "viewport", Reason: "width and height must be positive numbers"}

// frameQuery parses ?width=&height=&session=.
func frameQuery(r *http.Request) (overlay.Viewport, string, error) {
	q := r.URL.Query()
	vp := overlay.Viewport{Width: defaultWidth, Height: defaultHeight}
	for _, dim := range []struct {
		key string
		dst *float64
	}{{"width", &vp.Width}, {"height", &vp.Height}} {
		raw := q.Get(dim.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return vp, "", errBadViewport
		}
		*dim.dst = v
	}
	return vp, q.Get("session"), nil
}

// frame renders the next tick. An unknown session leaves the clock out.
func (s *Server) frame(vp overlay.Viewport, sessionID string) overlay.Frame {
	var clock *overlay.Clock
	if sessionID != "" {
		if rec, err := s.deps.Sessions.Get(sessionID); err == nil {
			clock = overlay.NewClock(rec.SessionID, string(rec.State), rec.Position, rec.Duration)
		}
	}
	return s.deps.Overlays.Frame(s.tick.Add(1), s.now(), vp, clock)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	vp, sessionID, err := frameQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sessionID != "" {
		if _, err := s.deps.Sessions.Get(sessionID); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.frame(vp, sessionID))
	metrics.IncFrameServed("http")
}

// handleFrameSocket pushes a frame every FrameInterval until the client
// disconnects or the request context ends.
func (s *Server) handleFrameSocket(w http.ResponseWriter, r *http.Request) {
	vp, sessionID, err := frameQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client.
		return
	}
	defer conn.Close()
	logger := log.WithContext(log.ContextWithSessionID(r.Context(), sessionID), s.logger)

	pongWait := s.cfg.PongWait
	// The reader only notices pongs and the close frame; clients send nothing else.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()
	pinger := time.NewTicker(pongWait * 9 / 10)
	defer pinger.Stop()
	send := func() bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(s.frame(vp, sessionID)); err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug().Err(err).Str(log.FieldEvent, "frames.write_failed").Msg("frame push stopped")
			}
			return false
		}
		metrics.IncFrameServed("ws")
		return true
	}

	if !send() {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if !send() {
				return
			}
		case <-pinger.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				logger.Debug().Err(err).Str(log.FieldEvent, "frames.ping_failed").Msg("frame push stopped")
				return
			}
		}
	}
}
