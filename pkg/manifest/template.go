package manifest

import (
	"crypto/md5" //nolint:gosec // G501: signatures identify header shapes, not secrets
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Template is a saved mapping configuration for one vendor's manifest
// layout, recognized by its header signature.
type Template struct {
	ID              string          `json:"id" yaml:"id"`
	Vendor          string          `json:"vendor" yaml:"vendor"`
	Name            string          `json:"name" yaml:"name"`
	HeaderSignature string          `json:"header_signature" yaml:"header_signature"`
	ColumnMappings  []ColumnMapping `json:"column_mappings" yaml:"column_mappings"`
	IsDefault       bool            `json:"is_default" yaml:"is_default"`
	CreatedAt       time.Time       `json:"created_at" yaml:"created_at"`
}

// HeaderSignature returns a stable digest of a header list: the MD5 hex of
// the lowercased, trimmed headers joined with commas, in file order.
func HeaderSignature(headers []string) string {
	parts := make([]string, len(headers))
	for i, h := range headers {
		parts[i] = normalizeHeader(h)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ","))) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// SelectTemplate picks the candidate template for a manifest.
//
// A templateID naming one of the vendor's templates wins outright. Otherwise
// the vendor's templates with a matching signature are considered, preferring
// the default one, then the most recently created; ties fall back to ID
// order. It returns nil when nothing matches.
func SelectTemplate(templates []Template, vendor, templateID, signature string) *Template {
	if templateID != "" {
		for i := range templates {
			if templates[i].ID == templateID && templates[i].Vendor == vendor {
				t := templates[i]
				return &t
			}
		}
	}

	var matches []Template
	for _, t := range templates {
		if t.Vendor == vendor && t.HeaderSignature == signature {
			matches = append(matches, t)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return &matches[0]
}
