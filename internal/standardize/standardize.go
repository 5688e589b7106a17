// Package standardize runs mapping resolution and batch normalization for one
// manifest upload, optionally saving the resolved mappings as a template.
// The API server and the CLI share it.
package standardize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/manifestkit/internal/state"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
)

// ErrInvalidRequest marks problems with the request itself.
var ErrInvalidRequest = errors.New("invalid request")

// SaveOptions asks for the resolved mappings to be saved as a template.
type SaveOptions struct {
	Name      string
	IsDefault bool
}

// Request describes one standardization.
type Request struct {
	Vendor     string
	Headers    []string
	Rows       []manifest.RawRow
	TemplateID string
	// Payload is a JSON mapping array in any shape DecodeMappings accepts.
	Payload json.RawMessage
	// Mappings are already decoded explicit mappings.
	Mappings []manifest.ColumnMapping
	Selected []int
	Search   string
	Workers  int
	Save     *SaveOptions
}

// Result is the outcome of a standardization.
type Result struct {
	Resolution *manifest.Resolution
	Batch      manifest.BatchResult
	// TemplateID is the matched or newly saved template, if any.
	TemplateID string
	// Saved is set when a new template was created.
	Saved    bool
	Warnings []string
}

// Mappings returns the effective mappings, never nil.
func (r *Result) Mappings() []manifest.ColumnMapping {
	m := r.Resolution.Set.Mappings()
	if m == nil {
		return []manifest.ColumnMapping{}
	}
	return m
}

// Run resolves mappings for req and normalizes its rows. Templates are read
// from store when a vendor is given. A template is saved only when req.Save
// is set and no saved template already matches the headers; otherwise a
// warning explains why nothing was saved.
func Run(ctx context.Context, store state.Store, req Request, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if len(req.Headers) == 0 {
		return nil, fmt.Errorf("%w: headers are required", ErrInvalidRequest)
	}
	vendor := strings.TrimSpace(req.Vendor)
	if req.Save != nil && (vendor == "" || strings.TrimSpace(req.Save.Name) == "") {
		return nil, fmt.Errorf("%w: saving a template needs a vendor and a name", ErrInvalidRequest)
	}

	var templates []manifest.Template
	if vendor != "" && store != nil {
		var err error
		templates, err = store.ListTemplates(ctx, vendor)
		if err != nil {
			return nil, err
		}
	}

	res, err := manifest.Resolve(manifest.ResolveInput{
		Headers:    req.Headers,
		Vendor:     vendor,
		TemplateID: req.TemplateID,
		Payload:    req.Payload,
		Mappings:   req.Mappings,
		Templates:  templates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	batch := manifest.Normalize(req.Rows, res.Set, manifest.BatchOptions{
		Selected: req.Selected,
		Search:   req.Search,
		Workers:  req.Workers,
	})
	if batch.Rows == nil {
		batch.Rows = []manifest.NormalizedRow{}
	}

	out := &Result{
		Resolution: res,
		Batch:      batch,
		Warnings:   append([]string{}, res.Warnings...),
	}
	if res.Template != nil {
		out.TemplateID = res.Template.ID
	}

	if req.Save != nil {
		switch {
		case res.Template != nil:
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("template not saved: %q already matches these headers", res.Template.Name))
		case store == nil:
			out.Warnings = append(out.Warnings, "template not saved: no template store")
		default:
			t := manifest.Template{
				Vendor:          vendor,
				Name:            strings.TrimSpace(req.Save.Name),
				HeaderSignature: res.Signature,
				ColumnMappings:  out.Mappings(),
				IsDefault:       req.Save.IsDefault,
			}
			if err := store.CreateTemplate(ctx, &t); err != nil {
				return nil, err
			}
			out.TemplateID = t.ID
			out.Saved = true
			logger.Debug("saved template",
				slog.String("id", t.ID),
				slog.String("vendor", t.Vendor),
				slog.String("name", t.Name))
		}
	}

	logger.Debug("standardized manifest",
		slog.String("vendor", vendor),
		slog.String("source", string(res.Source)),
		slog.Int("rows", batch.SelectedRows),
		slog.Int("degraded_fields", batch.DegradedFields))

	return out, nil
}
