// Package manifest standardizes vendor manifest rows.
//
// A manifest is a CSV whose header layout varies by vendor. Each of the fixed
// target fields (see Fields) is derived from a raw row by a ColumnMapping:
// either a formula (see package formula) or a source column followed by a
// chain of transforms. Resolve decides which mappings apply to an upload;
// Normalize and NormalizeRow turn raw rows into NormalizedRows.
//
// Normalization is a pure function of the row and the mapping set. It never
// fails: formula errors, absent columns and unparsable numbers degrade to the
// field's default value.
package manifest

import (
	"encoding/json"
	"fmt"
)

// MappingSource records where the resolved mappings came from.
type MappingSource string

// Mapping sources.
const (
	SourceExplicit MappingSource = "explicit"
	SourceTemplate MappingSource = "template"
	SourceAuto     MappingSource = "auto"
)

// ResolveInput carries everything mapping resolution looks at.
type ResolveInput struct {
	Headers []string
	Vendor  string
	// TemplateID optionally names the template to use.
	TemplateID string
	// Payload is a caller-supplied JSON mapping array, in any accepted shape.
	Payload json.RawMessage
	// Mappings are caller-supplied mappings that are already decoded. They
	// come before the Payload mappings.
	Mappings []ColumnMapping
	// Templates are the saved templates to consider. They are read, never
	// modified.
	Templates []Template
}

// Resolution is the outcome of mapping resolution.
type Resolution struct {
	Signature string
	// Template is the candidate template, if one matched, even when explicit
	// mappings took precedence over its saved mappings.
	Template *Template
	Source   MappingSource
	Mappings []ColumnMapping
	Set      *MappingSet
	Warnings []string
}

// Resolve determines the mappings for a manifest:
//
//  1. compute the header signature
//  2. use the template named by TemplateID, if it belongs to the vendor
//  3. otherwise pick the vendor's best template with a matching signature
//  4. normalize the explicit mapping payload
//  5. with no explicit mappings, use the template's saved mappings
//  6. with nothing else, auto-map headers through the alias table
//
// Only a malformed Payload is an error.
func Resolve(in ResolveInput) (*Resolution, error) {
	res := &Resolution{Signature: HeaderSignature(in.Headers)}
	res.Template = SelectTemplate(in.Templates, in.Vendor, in.TemplateID, res.Signature)

	explicit := append([]ColumnMapping(nil), in.Mappings...)
	if len(in.Payload) > 0 {
		decoded, warnings, err := DecodeMappings(in.Payload)
		if err != nil {
			return nil, fmt.Errorf("invalid mapping payload: %w", err)
		}
		explicit = append(explicit, decoded...)
		res.Warnings = append(res.Warnings, warnings...)
	}

	switch {
	case len(explicit) > 0:
		res.Source = SourceExplicit
		res.Mappings = explicit
	case res.Template != nil && len(res.Template.ColumnMappings) > 0:
		res.Source = SourceTemplate
		res.Mappings = append([]ColumnMapping(nil), res.Template.ColumnMappings...)
	default:
		res.Source = SourceAuto
		res.Mappings = AutoMap(in.Headers)
	}

	res.Set = NewMappingSet(res.Mappings)
	formulaErrs := res.Set.FormulaErrors()
	for _, f := range Fields {
		if err, ok := formulaErrs[f]; ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", f, err))
		}
	}

	return res, nil
}
