package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/leapstack-labs/manifestkit/pkg/formula"
)

// TransformKind identifies a transform in a source mapping's chain.
type TransformKind int

// Transform kinds.
const (
	TransformTrim TransformKind = iota + 1
	TransformTitleCase
	TransformUpper
	TransformLower
	TransformRemoveSpecialChars
	TransformReplace
)

// String returns the wire name of the kind.
func (k TransformKind) String() string {
	switch k {
	case TransformTrim:
		return "trim"
	case TransformTitleCase:
		return "title_case"
	case TransformUpper:
		return "upper"
	case TransformLower:
		return "lower"
	case TransformRemoveSpecialChars:
		return "remove_special_chars"
	case TransformReplace:
		return "replace"
	}
	return fmt.Sprintf("transform(%d)", int(k))
}

// ParseTransformKind accepts the wire names plus a few spellings seen in
// older saved templates.
func ParseTransformKind(name string) (TransformKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trim", "strip":
		return TransformTrim, true
	case "title_case", "titlecase", "title":
		return TransformTitleCase, true
	case "upper", "uppercase", "upper_case":
		return TransformUpper, true
	case "lower", "lowercase", "lower_case":
		return TransformLower, true
	case "remove_special_chars", "remove_special", "removespecialchars":
		return TransformRemoveSpecialChars, true
	case "replace":
		return TransformReplace, true
	}
	return 0, false
}

// Transform is one step of a source mapping's chain. From and To are only
// meaningful for TransformReplace.
type Transform struct {
	Kind TransformKind
	From string
	To   string
}

// Apply runs the transform over s.
func (t Transform) Apply(s string) string {
	switch t.Kind {
	case TransformTrim:
		return strings.TrimSpace(s)
	case TransformTitleCase:
		return formula.Title(s)
	case TransformUpper:
		return formula.Upper(s)
	case TransformLower:
		return formula.Lower(s)
	case TransformRemoveSpecialChars:
		return removeSpecialChars(s)
	case TransformReplace:
		return strings.ReplaceAll(s, t.From, t.To)
	}
	return s
}

// removeSpecialChars keeps letters, digits and whitespace.
func removeSpecialChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// ApplyTransforms runs a transform chain in order.
func ApplyTransforms(s string, chain []Transform) string {
	for _, t := range chain {
		s = t.Apply(s)
	}
	return s
}

type transformJSON struct {
	Type string  `json:"type"`
	From *string `json:"from,omitempty"`
	To   *string `json:"to,omitempty"`
}

// MarshalJSON encodes the transform as {type, from?, to?}.
func (t Transform) MarshalJSON() ([]byte, error) {
	out := transformJSON{Type: t.Kind.String()}
	if t.Kind == TransformReplace {
		out.From = &t.From
		out.To = &t.To
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts {type, from?, to?} or a bare type name.
func (t *Transform) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := transformFromValue(v)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes the transform the same way as JSON.
func (t Transform) MarshalYAML() (any, error) {
	out := map[string]string{"type": t.Kind.String()}
	if t.Kind == TransformReplace {
		out["from"] = t.From
		out["to"] = t.To
	}
	return out, nil
}

// transformFromValue decodes a generic (JSON or YAML) transform value.
func transformFromValue(v any) (Transform, error) {
	switch v := v.(type) {
	case string:
		kind, ok := ParseTransformKind(v)
		if !ok {
			return Transform{}, fmt.Errorf("unknown transform %q", v)
		}
		return Transform{Kind: kind}, nil
	case map[string]any:
		name, _ := v["type"].(string)
		kind, ok := ParseTransformKind(name)
		if !ok {
			return Transform{}, fmt.Errorf("unknown transform %q", name)
		}
		t := Transform{Kind: kind}
		if kind == TransformReplace {
			t.From = stringValue(v["from"])
			t.To = stringValue(v["to"])
		}
		return t, nil
	}
	return Transform{}, fmt.Errorf("invalid transform value %v", v)
}

// stringValue renders a scalar from decoded JSON/YAML as a string.
func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
