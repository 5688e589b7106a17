// Package templatefile reads and writes template files and imports them into
// a template store.
package templatefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/manifestkit/internal/state"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"gopkg.in/yaml.v3"
)

// Format is a template file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension. Anything that is not
// .json is treated as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// IsTemplateFile reports whether path has a template file extension.
func IsTemplateFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// document is the file layout: a list of templates under "templates".
type document struct {
	Templates []manifest.Template `json:"templates" yaml:"templates"`
}

// Marshal encodes templates as a template file.
func Marshal(templates []manifest.Template, format Format) ([]byte, error) {
	doc := document{Templates: templates}
	if doc.Templates == nil {
		doc.Templates = []manifest.Template{}
	}

	if format == FormatJSON {
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode templates: %w", err)
		}
		return append(b, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode templates: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode templates: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a template file. Besides the {templates: [...]} layout it
// accepts a bare list of templates or a single template.
func Unmarshal(data []byte, format Format) ([]manifest.Template, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if format == FormatJSON {
		return unmarshalJSON(data)
	}
	return unmarshalYAML(data)
}

func unmarshalJSON(data []byte) ([]manifest.Template, error) {
	trimmed := bytes.TrimSpace(data)
	switch trimmed[0] {
	case '[':
		var list []manifest.Template
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("invalid template list: %w", err)
		}
		return list, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("invalid template file: %w", err)
		}
		if _, ok := probe["templates"]; ok {
			var doc document
			if err := json.Unmarshal(trimmed, &doc); err != nil {
				return nil, fmt.Errorf("invalid template file: %w", err)
			}
			return doc.Templates, nil
		}
		var t manifest.Template
		if err := json.Unmarshal(trimmed, &t); err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		return []manifest.Template{t}, nil
	}
	return nil, errors.New("template file must be a JSON object or array")
}

func unmarshalYAML(data []byte) ([]manifest.Template, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid template file: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, nil
	}
	node := root.Content[0]

	switch node.Kind {
	case yaml.SequenceNode:
		var list []manifest.Template
		if err := node.Decode(&list); err != nil {
			return nil, fmt.Errorf("invalid template list: %w", err)
		}
		return list, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "templates" {
				var doc document
				if err := node.Decode(&doc); err != nil {
					return nil, fmt.Errorf("invalid template file: %w", err)
				}
				return doc.Templates, nil
			}
		}
		var t manifest.Template
		if err := node.Decode(&t); err != nil {
			return nil, fmt.Errorf("invalid template: %w", err)
		}
		return []manifest.Template{t}, nil
	}
	return nil, errors.New("template file must be a YAML mapping or sequence")
}

// ImportResult counts what an import did.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Import saves templates into store. A template whose ID already exists is
// updated. A template without an ID updates the vendor's template with the
// same name and header signature, so re-importing a file is idempotent. The
// rest are created, keeping any ID they carry.
func Import(ctx context.Context, store state.Store, templates []manifest.Template, logger *slog.Logger) (ImportResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var res ImportResult
	for i := range templates {
		t := templates[i]
		if t.ID != "" {
			_, err := store.GetTemplate(ctx, t.ID)
			switch {
			case err == nil:
				if err := store.UpdateTemplate(ctx, &t); err != nil {
					return res, fmt.Errorf("template %d (%s): %w", i, t.ID, err)
				}
				res.Updated++
				logger.Debug("updated template", slog.String("id", t.ID), slog.String("vendor", t.Vendor))
				continue
			case !errors.Is(err, state.ErrTemplateNotFound):
				return res, fmt.Errorf("template %d (%s): %w", i, t.ID, err)
			}
		}
		if t.ID == "" && t.Vendor != "" {
			existing, err := store.ListTemplates(ctx, t.Vendor)
			if err != nil {
				return res, fmt.Errorf("template %d (%s): %w", i, t.Name, err)
			}
			if match := findByName(existing, t.Name, t.HeaderSignature); match != nil {
				t.ID = match.ID
				t.CreatedAt = match.CreatedAt
				if err := store.UpdateTemplate(ctx, &t); err != nil {
					return res, fmt.Errorf("template %d (%s): %w", i, t.Name, err)
				}
				res.Updated++
				logger.Debug("updated template", slog.String("id", t.ID), slog.String("vendor", t.Vendor))
				continue
			}
		}
		if err := store.CreateTemplate(ctx, &t); err != nil {
			return res, fmt.Errorf("template %d (%s): %w", i, t.Name, err)
		}
		res.Created++
		logger.Debug("created template", slog.String("id", t.ID), slog.String("vendor", t.Vendor))
	}
	return res, nil
}

func findByName(templates []manifest.Template, name, signature string) *manifest.Template {
	for i := range templates {
		if templates[i].Name == name && templates[i].HeaderSignature == signature {
			return &templates[i]
		}
	}
	return nil
}

// ImportFile reads a template file and imports its templates into store.
func ImportFile(ctx context.Context, store state.Store, path string, logger *slog.Logger) (ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	templates, err := Unmarshal(data, FormatFromPath(path))
	if err != nil {
		return ImportResult{}, fmt.Errorf("%s: %w", path, err)
	}
	return Import(ctx, store, templates, logger)
}
