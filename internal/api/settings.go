package api

import (
	"net/http"

	"github.com/livesitter/livesitter/internal/backend"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Settings.Settings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var u backend.SettingsUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Settings.UpdateSettings(r.Context(), u); err != nil {
		writeError(w, r, err)
		return
	}
	s.handleGetSettings(w, r)
}
