package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livesitter/livesitter/internal/domain/session/model"
)

type startStreamRequest struct {
	RTSPURL  string `json:"rtsp_url"`
	StreamID string `json:"stream_id"`
}

type stopStreamResponse struct {
	Message string              `json:"message,omitempty"`
	Warning string              `json:"warning,omitempty"`
	Session *model.SessionRecord `json:"session,omitempty"`
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	var req startStreamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.deps.Streams.RequestStart(r.Context(), req.RTSPURL, req.StreamID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Streams.RequestStop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := stopStreamResponse{Message: res.Message}
	if res.RemoteErr != nil {
		out.Warning = res.RemoteErr.Error()
	}
	if res.Found {
		out.Session = &res.Session
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Streams.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.deps.Sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type sessionCommand func(ctx context.Context, id string) (model.SessionRecord, error)

func (s *Server) handleSessionCommand(cmd sessionCommand) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := cmd(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}
