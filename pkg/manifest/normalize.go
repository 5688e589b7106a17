package manifest

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Row maps raw column headers to raw cell values.
type Row = map[string]string

// RawRow is a parsed manifest row with the 1-based row number assigned when
// the file was read.
type RawRow struct {
	RowNumber int `json:"row_number"`
	Raw       Row `json:"raw"`
}

// Amount is a retail value. It keeps the scale it was written with, so
// "12.50" renders as "12.50" rather than "12.5".
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps d.
func NewAmount(d decimal.Decimal) *Amount {
	return &Amount{Decimal: d}
}

// String renders the amount with its original number of decimal places.
func (a Amount) String() string {
	if exp := a.Exponent(); exp < 0 {
		return a.StringFixed(-exp)
	}
	return a.Decimal.String()
}

// MarshalJSON renders the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// NormalizedRow is the standardized record produced for one raw row.
type NormalizedRow struct {
	RowNumber        int     `json:"row_number"`
	Quantity         int     `json:"quantity"`
	Description      string  `json:"description"`
	Title            string  `json:"title"`
	Brand            string  `json:"brand"`
	Model            string  `json:"model"`
	Category         string  `json:"category"`
	Condition        string  `json:"condition"`
	RetailValue      *Amount `json:"retail_value"`
	UPC              string  `json:"upc"`
	VendorItemNumber string  `json:"vendor_item_number"`
	Notes            string  `json:"notes"`
}

// Value returns a field's value as a string; RetailValue is "" when null.
func (r NormalizedRow) Value(f Field) string {
	switch f {
	case FieldQuantity:
		return strconv.Itoa(r.Quantity)
	case FieldDescription:
		return r.Description
	case FieldTitle:
		return r.Title
	case FieldBrand:
		return r.Brand
	case FieldModel:
		return r.Model
	case FieldCategory:
		return r.Category
	case FieldCondition:
		return r.Condition
	case FieldRetailValue:
		if r.RetailValue == nil {
			return ""
		}
		return r.RetailValue.String()
	case FieldUPC:
		return r.UPC
	case FieldVendorItemNumber:
		return r.VendorItemNumber
	case FieldNotes:
		return r.Notes
	}
	return ""
}

// NormalizeRow standardizes one raw row. It never fails: formula errors,
// absent columns and unparsable numbers degrade to the field's default.
func NormalizeRow(raw RawRow, set *MappingSet) NormalizedRow {
	out, _ := normalizeRow(raw, set)
	return out
}

// normalizeRow also reports how many fields degraded because of formula
// errors.
func normalizeRow(raw RawRow, set *MappingSet) (NormalizedRow, int) {
	out := NormalizedRow{RowNumber: raw.RowNumber}
	degraded := 0

	for _, f := range Fields {
		v, bad := set.value(f, raw.Raw)
		if bad {
			degraded++
		}

		switch f {
		case FieldQuantity:
			out.Quantity = parseQuantity(v)
		case FieldRetailValue:
			out.RetailValue = parseRetailValue(v)
		case FieldDescription:
			out.Description = strings.TrimSpace(v)
		case FieldTitle:
			out.Title = strings.TrimSpace(v)
		case FieldBrand:
			out.Brand = strings.TrimSpace(v)
		case FieldModel:
			out.Model = strings.TrimSpace(v)
		case FieldCategory:
			out.Category = strings.TrimSpace(v)
		case FieldCondition:
			out.Condition = strings.TrimSpace(v)
		case FieldUPC:
			out.UPC = strings.TrimSpace(v)
		case FieldVendorItemNumber:
			out.VendorItemNumber = strings.TrimSpace(v)
		case FieldNotes:
			out.Notes = strings.TrimSpace(v)
		}
	}

	return out, degraded
}

// parseQuantity keeps digits and '-', then reads an optional leading sign
// followed by digits. Anything unparsable or not positive becomes 1.
func parseQuantity(s string) int {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)

	end := 0
	if end < len(cleaned) && cleaned[end] == '-' {
		end++
	}
	digitsStart := end
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 1
	}

	n, err := strconv.Atoi(cleaned[:end])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// parseRetailValue keeps digits, '.' and '-' and parses the rest as a
// decimal. Empty or unparsable input yields nil.
func parseRetailValue(s string) *Amount {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return NewAmount(d)
}
