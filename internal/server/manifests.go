package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/manifestkit/internal/intake"
	"github.com/leapstack-labs/manifestkit/internal/standardize"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
)

type inspectResponse struct {
	Headers        []string                 `json:"headers"`
	Signature      string                   `json:"signature"`
	Encoding       intake.Encoding          `json:"encoding"`
	TemplateID     string                   `json:"template_id,omitempty"`
	TemplateName   string                   `json:"template_name,omitempty"`
	MappingSource  manifest.MappingSource   `json:"mapping_source"`
	ColumnMappings []manifest.ColumnMapping `json:"column_mappings"`
	RowCount       int                      `json:"row_count"`
	Search         string                   `json:"search,omitempty"`
	MatchedRows    int                      `json:"matched_rows"`
	Rows           []manifest.RawRow        `json:"rows"`
	Warnings       []intake.Warning         `json:"warnings,omitempty"`
}

type saveTemplateRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type standardizeRequest struct {
	Vendor             string               `json:"vendor"`
	Headers            []string             `json:"headers"`
	Rows               []manifest.RawRow    `json:"rows"`
	TemplateID         string               `json:"template_id"`
	ColumnMappings     json.RawMessage      `json:"column_mappings"`
	SelectedRowNumbers []int                `json:"selected_row_numbers"`
	Search             string               `json:"search"`
	SaveTemplate       *saveTemplateRequest `json:"save_template"`
}

type standardizeResponse struct {
	Signature      string                   `json:"signature"`
	MappingSource  manifest.MappingSource   `json:"mapping_source"`
	TemplateID     string                   `json:"template_id,omitempty"`
	ColumnMappings []manifest.ColumnMapping `json:"column_mappings"`
	manifest.BatchResult
	Warnings []string `json:"warnings"`
}

// readUpload returns the CSV bytes of an inspect request: the "file" part of
// a multipart form, or the raw body otherwise.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var src io.Reader = r.Body
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(s.maxBody); err != nil {
			return nil, fmt.Errorf("invalid multipart upload: %w", err)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("no file provided")
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	data, err := io.ReadAll(src)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("upload exceeds %d bytes", maxErr.Limit)
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("no file provided")
	}
	return data, nil
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	m, err := intake.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	query := r.URL.Query()
	vendor := strings.TrimSpace(query.Get("vendor"))
	search := strings.TrimSpace(query.Get("search"))
	templates, err := s.vendorTemplates(r, vendor)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	res, err := manifest.Resolve(manifest.ResolveInput{
		Headers:   m.Headers,
		Vendor:    vendor,
		Templates: templates,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp := inspectResponse{
		Headers:        m.Headers,
		Signature:      m.Signature,
		Encoding:       m.Encoding,
		MappingSource:  res.Source,
		ColumnMappings: res.Set.Mappings(),
		RowCount:       len(m.Rows),
		Search:         search,
		Warnings:       m.Warnings,
	}
	matched := m.Search(search)
	resp.MatchedRows = len(matched)
	resp.Rows = intake.Preview(matched, s.previewRows)
	if resp.Rows == nil {
		resp.Rows = []manifest.RawRow{}
	}
	if resp.ColumnMappings == nil {
		resp.ColumnMappings = []manifest.ColumnMapping{}
	}
	if res.Template != nil {
		resp.TemplateID = res.Template.ID
		resp.TemplateName = res.Template.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStandardize(w http.ResponseWriter, r *http.Request) {
	var req standardizeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sreq := standardize.Request{
		Vendor:     req.Vendor,
		Headers:    req.Headers,
		Rows:       req.Rows,
		TemplateID: req.TemplateID,
		Payload:    req.ColumnMappings,
		Selected:   req.SelectedRowNumbers,
		Search:     req.Search,
		Workers:    s.workers,
	}
	if req.SaveTemplate != nil {
		sreq.Save = &standardize.SaveOptions{Name: req.SaveTemplate.Name, IsDefault: req.SaveTemplate.IsDefault}
	}

	res, err := standardize.Run(r.Context(), s.store, sreq, s.logger.With(
		slog.String("request_id", middleware.GetReqID(r.Context()))))
	if err != nil {
		if errors.Is(err, standardize.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeStoreError(w, r, err)
		return
	}

	if res.Saved {
		s.metrics.TemplatesSaved.Inc()
	}
	s.metrics.Standardizations.WithLabelValues(string(res.Resolution.Source)).Inc()
	s.metrics.RowsNormalized.Add(float64(res.Batch.SelectedRows))
	s.metrics.DegradedFields.Add(float64(res.Batch.DegradedFields))

	writeJSON(w, http.StatusOK, standardizeResponse{
		Signature:      res.Resolution.Signature,
		MappingSource:  res.Resolution.Source,
		TemplateID:     res.TemplateID,
		ColumnMappings: res.Mappings(),
		BatchResult:    res.Batch,
		Warnings:       res.Warnings,
	})
}

func (s *Server) vendorTemplates(r *http.Request, vendor string) ([]manifest.Template, error) {
	if vendor == "" {
		return nil, nil
	}
	return s.store.ListTemplates(r.Context(), vendor)
}
