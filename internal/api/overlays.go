package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/livesitter/livesitter/internal/overlay"
)

type overlaysResponse struct {
	Overlays []overlay.Overlay `json:"overlays"`
	Errors   overlay.Errors    `json:"errors"`
}

type imageFailedRequest struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

func (s *Server) handleListOverlays(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, overlaysResponse{
		Overlays: s.deps.Overlays.Overlays(),
		Errors:   s.deps.Overlays.Errors(),
	})
}

func (s *Server) handleGetOverlay(w http.ResponseWriter, r *http.Request) {
	o, ok := s.deps.Overlays.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, r, overlay.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCreateOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlay.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, err := s.deps.Overlays.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleUpdateOverlay(w http.ResponseWriter, r *http.Request) {
	var req overlay.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Overlays.Update(r.Context(), chi.URLParam(r, "id"), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteOverlay(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Overlays.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImageFailed lets a presentation client report an image it could not
// load. The body is optional.
func (s *Server) handleImageFailed(w http.ResponseWriter, r *http.Request) {
	var req imageFailedRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := s.deps.Overlays.MarkImageFailed(chi.URLParam(r, "id"), req.Content, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
