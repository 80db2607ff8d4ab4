package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tournevent/integrations/internal/provider"
	"github.com/tournevent/integrations/internal/store"
	"github.com/tournevent/integrations/pkg/integration"
)

func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	category := store.Category(strings.ToUpper(r.URL.Query().Get("category")))
	if category != "" && !category.Valid() {
		s.writeError(w, r, integration.Validation("", "unknown category %q", category))
		return
	}
	views, err := s.admin.List(r.Context(), category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": nonNilSlice(views)})
}

func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var in provider.CreateInput
	if !s.decode(w, r, &in) {
		return
	}
	view, err := s.admin.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	view, err := s.admin.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	var in provider.UpdateInput
	if !s.decode(w, r, &in) {
		return
	}
	view, err := s.admin.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTestIntegration answers 200 for failed probes too; the outcome is
// in the body.
func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	result, err := s.admin.TestConnection(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.admin.SetActive(r.Context(), chi.URLParam(r, "id"), active); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleRotateWebhookSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := s.admin.RotateWebhookSecret(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"webhookSecret": secret})
}

func (s *Server) handleIntegrationLogs(w http.ResponseWriter, r *http.Request) {
	view, err := s.admin.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.logs.Recent(r.Context(), view.Provider, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": nonNilSlice(entries)})
}
