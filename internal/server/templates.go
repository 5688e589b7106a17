package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
)

// templateRequest is the body of template create and update requests.
// HeaderSignature may be omitted when Headers is given. ColumnMappings
// accepts every mapping shape DecodeMappings does.
type templateRequest struct {
	Vendor          string          `json:"vendor"`
	Name            string          `json:"name"`
	HeaderSignature string          `json:"header_signature"`
	Headers         []string        `json:"headers"`
	ColumnMappings  json.RawMessage `json:"column_mappings"`
	IsDefault       bool            `json:"is_default"`
}

type templateResponse struct {
	manifest.Template
	Warnings []string `json:"warnings,omitempty"`
}

func (req templateRequest) template() (manifest.Template, []string, error) {
	t := manifest.Template{
		Vendor:          strings.TrimSpace(req.Vendor),
		Name:            strings.TrimSpace(req.Name),
		HeaderSignature: strings.TrimSpace(req.HeaderSignature),
		IsDefault:       req.IsDefault,
	}
	if t.HeaderSignature == "" && len(req.Headers) > 0 {
		t.HeaderSignature = manifest.HeaderSignature(req.Headers)
	}

	var warnings []string
	if len(req.ColumnMappings) > 0 {
		mappings, w, err := manifest.DecodeMappings(req.ColumnMappings)
		if err != nil {
			return t, nil, err
		}
		// Keep one mapping per target, last one winning.
		t.ColumnMappings = manifest.NewMappingSet(mappings).Mappings()
		warnings = w
	}
	if t.ColumnMappings == nil {
		t.ColumnMappings = []manifest.ColumnMapping{}
	}
	return t, warnings, nil
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	vendor := strings.TrimSpace(r.URL.Query().Get("vendor"))
	templates, err := s.store.ListTemplates(r.Context(), vendor)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if templates == nil {
		templates = []manifest.Template{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t, warnings, err := req.template()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.store.CreateTemplate(r.Context(), &t); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.TemplatesSaved.Inc()
	s.logger.Debug("created template",
		slog.String("id", t.ID),
		slog.String("vendor", t.Vendor),
		slog.String("name", t.Name))

	writeJSON(w, http.StatusCreated, templateResponse{Template: t, Warnings: warnings})
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req templateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	existing, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	t, warnings, err := req.template()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	t.ID = id
	t.CreatedAt = existing.CreatedAt
	if len(req.ColumnMappings) == 0 {
		t.ColumnMappings = existing.ColumnMappings
	}
	if t.HeaderSignature == "" {
		t.HeaderSignature = existing.HeaderSignature
	}

	if err := s.store.UpdateTemplate(r.Context(), &t); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.metrics.TemplatesSaved.Inc()

	writeJSON(w, http.StatusOK, templateResponse{Template: t, Warnings: warnings})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
