package manifest

import (
	"fmt"
	"slices"
	"strings"
)

// Field is one of the fixed standardized target fields of a manifest row.
type Field int

// Target fields, in their canonical order.
const (
	FieldQuantity Field = iota
	FieldDescription
	FieldTitle
	FieldBrand
	FieldModel
	FieldCategory
	FieldCondition
	FieldRetailValue
	FieldUPC
	FieldVendorItemNumber
	FieldNotes

	numFields
)

// Fields lists every target field in canonical order. Downstream record
// creation depends on this order and on the names returned by String.
var Fields = []Field{
	FieldQuantity,
	FieldDescription,
	FieldTitle,
	FieldBrand,
	FieldModel,
	FieldCategory,
	FieldCondition,
	FieldRetailValue,
	FieldUPC,
	FieldVendorItemNumber,
	FieldNotes,
}

var fieldNames = [numFields]string{
	FieldQuantity:         "quantity",
	FieldDescription:      "description",
	FieldTitle:            "title",
	FieldBrand:            "brand",
	FieldModel:            "model",
	FieldCategory:         "category",
	FieldCondition:        "condition",
	FieldRetailValue:      "retail_value",
	FieldUPC:              "upc",
	FieldVendorItemNumber: "vendor_item_number",
	FieldNotes:            "notes",
}

// String returns the wire name of the field.
func (f Field) String() string {
	if f >= 0 && f < numFields {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Valid reports whether f is a known target field.
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

// ParseField returns the field for a wire name. Matching ignores case and
// surrounding whitespace.
func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (f Field) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid target field %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Field) UnmarshalText(b []byte) error {
	v, ok := ParseField(string(b))
	if !ok {
		return fmt.Errorf("unknown target field %q", string(b))
	}
	*f = v
	return nil
}

// headerAliases lists, per target field, the header names that auto-mapping
// binds to it. Comparison is against the lowercased, trimmed header.
var headerAliases = [numFields][]string{
	FieldQuantity:         {"quantity", "qty", "units", "count", "qnty"},
	FieldDescription:      {"description", "item description", "desc", "title", "product", "item"},
	FieldTitle:            {"title", "product title", "item title", "product name", "item name", "name"},
	FieldBrand:            {"brand", "brand name", "manufacturer", "mfr", "mfg", "make"},
	FieldModel:            {"model", "model number", "model #", "model no", "mpn"},
	FieldCategory:         {"category", "department", "dept", "class", "product type", "subcategory"},
	FieldCondition:        {"condition", "grade", "item condition", "cond"},
	FieldRetailValue:      {"retail value", "retail", "retail price", "msrp", "unit retail", "price", "cost", "unit cost", "value"},
	FieldUPC:              {"upc", "upc code", "barcode", "ean", "gtin"},
	FieldVendorItemNumber: {"vendor item number", "item number", "item #", "item no", "sku", "vendor sku", "lpn", "asin"},
	FieldNotes:            {"notes", "note", "comments", "comment", "remarks"},
}

// Aliases returns a copy of the header aliases recognized for a field.
func Aliases(f Field) []string {
	if !f.Valid() {
		return nil
	}
	return append([]string(nil), headerAliases[f]...)
}

// normalizeHeader lowercases and trims a header for alias comparison.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// AutoMap binds each target field to the first header, in file order, that
// matches one of its aliases. Fields without a match get an empty source and
// normalize to empty values. One header may serve several fields.
func AutoMap(headers []string) []ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	mappings := make([]ColumnMapping, 0, len(Fields))
	for _, f := range Fields {
		m := ColumnMapping{Target: f}
		for i, h := range normalized {
			if slices.Contains(headerAliases[f], h) {
				m.Source = headers[i]
				break
			}
		}
		mappings = append(mappings, m)
	}
	return mappings
}
