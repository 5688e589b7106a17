package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/manifestkit/pkg/formula"
	"gopkg.in/yaml.v3"
)

// ColumnMapping describes how one target field is derived. It is either a
// formula mapping (Formula set) or a source mapping (Source column plus an
// ordered transform chain). When both are present the formula wins.
type ColumnMapping struct {
	Target     Field
	Source     string
	Transforms []Transform
	Formula    string
}

// IsFormula reports whether the mapping is driven by a non-empty formula.
func (m ColumnMapping) IsFormula() bool {
	return strings.TrimSpace(m.Formula) != ""
}

type mappingJSON struct {
	Target     Field        `json:"target" yaml:"target"`
	Source     *string      `json:"source,omitempty" yaml:"source,omitempty"`
	Transforms *[]Transform `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Formula    string       `json:"formula,omitempty" yaml:"formula,omitempty"`
}

func (m ColumnMapping) wire() mappingJSON {
	out := mappingJSON{Target: m.Target, Formula: m.Formula}
	if !m.IsFormula() || m.Source != "" || len(m.Transforms) > 0 {
		source := m.Source
		transforms := m.Transforms
		if transforms == nil {
			transforms = []Transform{}
		}
		out.Source = &source
		out.Transforms = &transforms
	}
	return out
}

// MarshalJSON encodes the persisted shape: {target, formula} for formula
// mappings and {target, source, transforms} for source mappings.
func (m ColumnMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.wire())
}

// UnmarshalJSON accepts the canonical shape and the legacy shapes handled by
// NormalizeMappings. Unlike NormalizeMappings it fails on any problem.
func (m *ColumnMapping) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return m.fromValue(v)
}

// MarshalYAML encodes the same shape as MarshalJSON.
func (m ColumnMapping) MarshalYAML() (any, error) {
	return m.wire(), nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (m *ColumnMapping) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return m.fromValue(v)
}

func (m *ColumnMapping) fromValue(v any) error {
	parsed, warnings, err := mappingFromValue(v)
	if err != nil {
		return err
	}
	if len(warnings) > 0 {
		return errors.New(warnings[0])
	}
	*m = parsed
	return nil
}

// DecodeMappings parses a JSON mapping payload and normalizes it with
// NormalizeMappings. An empty payload or JSON null yields no mappings. Only
// malformed JSON or a non-array payload is an error.
func DecodeMappings(data []byte) ([]ColumnMapping, []string, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil, nil
	}

	var entries []any
	if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
		return nil, nil, fmt.Errorf("column mappings must be a JSON array: %w", err)
	}

	mappings, warnings := NormalizeMappings(entries)
	return mappings, warnings, nil
}

// NormalizeMappings converts decoded mapping entries into canonical
// ColumnMappings, in payload order. Besides the canonical
// {target, source, transforms} and {target, formula} shapes it accepts:
//
//   - "transform": a single transform (name or object) instead of a list
//   - "functions": an alias for "transforms"
//   - transform list entries given as bare names ("trim")
//
// Entries that cannot be used (not an object, unknown target) are dropped and
// reported as warnings, as are unknown transforms within a chain.
func NormalizeMappings(entries []any) ([]ColumnMapping, []string) {
	var (
		mappings []ColumnMapping
		warnings []string
	)
	for i, entry := range entries {
		m, entryWarnings, err := mappingFromValue(entry)
		for _, w := range entryWarnings {
			warnings = append(warnings, fmt.Sprintf("mapping %d: %s", i, w))
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("mapping %d dropped: %v", i, err))
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, warnings
}

// mappingFromValue decodes one generic mapping entry. It returns an error
// when the entry is unusable and warnings for recoverable problems.
func mappingFromValue(v any) (ColumnMapping, []string, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return ColumnMapping{}, nil, fmt.Errorf("expected an object, got %T", v)
	}

	targetName, _ := obj["target"].(string)
	target, ok := ParseField(targetName)
	if !ok {
		return ColumnMapping{}, nil, fmt.Errorf("unknown target %q", targetName)
	}

	m := ColumnMapping{
		Target:  target,
		Source:  stringValue(obj["source"]),
		Formula: stringValue(obj["formula"]),
	}

	var raw []any
	switch {
	case obj["transforms"] != nil:
		raw = asList(obj["transforms"])
	case obj["functions"] != nil:
		raw = asList(obj["functions"])
	case obj["transform"] != nil:
		raw = []any{obj["transform"]}
	}

	var warnings []string
	for _, rt := range raw {
		t, err := transformFromValue(rt)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		m.Transforms = append(m.Transforms, t)
	}

	return m, warnings, nil
}

// asList wraps a non-list value so a lone transform is accepted where a list
// is expected.
func asList(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// MappingSet is the resolved per-target lookup used for row normalization.
// Formulas are compiled once when the set is built. A MappingSet is
// read-only after construction and safe for concurrent use.
type MappingSet struct {
	entries [numFields]compiledMapping
}

type compiledMapping struct {
	mapping ColumnMapping
	set     bool
	program *formula.Program
	err     error
}

// NewMappingSet builds the lookup from a mapping list. When several mappings
// name the same target, the last one in the list wins.
func NewMappingSet(mappings []ColumnMapping) *MappingSet {
	s := &MappingSet{}
	for _, m := range mappings {
		if !m.Target.Valid() {
			continue
		}
		cm := compiledMapping{mapping: m, set: true}
		if m.IsFormula() {
			cm.program, cm.err = formula.Compile(m.Formula)
		}
		s.entries[m.Target] = cm
	}
	return s
}

// Mapping returns the effective mapping for a target.
func (s *MappingSet) Mapping(f Field) (ColumnMapping, bool) {
	if !f.Valid() {
		return ColumnMapping{}, false
	}
	e := s.entries[f]
	return e.mapping, e.set
}

// Mappings returns the effective mappings in canonical field order.
func (s *MappingSet) Mappings() []ColumnMapping {
	var out []ColumnMapping
	for _, f := range Fields {
		if e := s.entries[f]; e.set {
			out = append(out, e.mapping)
		}
	}
	return out
}

// FormulaErrors returns the compile errors of formulas in the set, keyed by
// target. Fields listed here normalize to empty values on every row.
func (s *MappingSet) FormulaErrors() map[Field]error {
	errs := make(map[Field]error)
	for _, f := range Fields {
		if e := s.entries[f]; e.err != nil {
			errs[f] = e.err
		}
	}
	return errs
}

// Len returns the number of targets with a mapping.
func (s *MappingSet) Len() int {
	n := 0
	for _, e := range s.entries {
		if e.set {
			n++
		}
	}
	return n
}

// value derives the raw (pre-coercion) value of one field. degraded is true
// when a formula failed and the value fell back to "".
func (s *MappingSet) value(f Field, row map[string]string) (v string, degraded bool) {
	e := s.entries[f]
	if !e.set {
		return "", false
	}
	if e.mapping.IsFormula() {
		if e.err != nil {
			return "", true
		}
		out, err := e.program.Eval(row)
		if err != nil {
			return "", true
		}
		return out, false
	}
	if e.mapping.Source == "" {
		return "", false
	}
	return ApplyTransforms(row[e.mapping.Source], e.mapping.Transforms), false
}
