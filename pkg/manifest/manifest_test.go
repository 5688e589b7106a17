package manifest_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ---------- Auto-mapping ----------

func TestAutoMap(t *testing.T) {
	mappings := manifest.AutoMap([]string{"Qty", "Desc", "Cost"})
	require.Len(t, mappings, len(manifest.Fields))

	sources := map[manifest.Field]string{}
	for _, m := range mappings {
		assert.Empty(t, m.Transforms)
		assert.Empty(t, m.Formula)
		sources[m.Target] = m.Source
	}

	assert.Equal(t, "Qty", sources[manifest.FieldQuantity])
	assert.Equal(t, "Desc", sources[manifest.FieldDescription])
	assert.Equal(t, "Cost", sources[manifest.FieldRetailValue])
	for _, f := range []manifest.Field{
		manifest.FieldTitle, manifest.FieldBrand, manifest.FieldModel, manifest.FieldCategory,
		manifest.FieldCondition, manifest.FieldUPC, manifest.FieldVendorItemNumber, manifest.FieldNotes,
	} {
		assert.Empty(t, sources[f], "field %s should not be mapped", f)
	}
}

func TestAutoMapFirstHeaderWins(t *testing.T) {
	mappings := manifest.AutoMap([]string{" ITEM DESCRIPTION ", "Title", "Units", "Quantity"})
	set := manifest.NewMappingSet(mappings)

	desc, _ := set.Mapping(manifest.FieldDescription)
	assert.Equal(t, " ITEM DESCRIPTION ", desc.Source)

	title, _ := set.Mapping(manifest.FieldTitle)
	assert.Equal(t, "Title", title.Source)

	qty, _ := set.Mapping(manifest.FieldQuantity)
	assert.Equal(t, "Units", qty.Source)
}

func TestFieldOrder(t *testing.T) {
	names := make([]string, len(manifest.Fields))
	for i, f := range manifest.Fields {
		names[i] = f.String()
	}
	assert.Equal(t, []string{
		"quantity", "description", "title", "brand", "model", "category",
		"condition", "retail_value", "upc", "vendor_item_number", "notes",
	}, names)
}

// ---------- Row normalization ----------

func TestNormalizeRowCoercion(t *testing.T) {
	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldQuantity, Source: "Qty"},
		{Target: manifest.FieldRetailValue, Source: "Retail"},
		{Target: manifest.FieldBrand, Source: "Brand"},
	})

	tests := []struct {
		name     string
		raw      manifest.Row
		wantQty  int
		wantRet  string // "" means null
		wantBrnd string
	}{
		{"plain", manifest.Row{"Qty": "3", "Retail": "19.99", "Brand": " Sony "}, 3, "19.99", "Sony"},
		{"formatted", manifest.Row{"Qty": "1,200 units", "Retail": "$1,299.99"}, 1200, "1299.99", ""},
		{"zero quantity", manifest.Row{"Qty": "0", "Retail": ""}, 1, "", ""},
		{"negative quantity", manifest.Row{"Qty": "-4"}, 1, "", ""},
		{"range quantity", manifest.Row{"Qty": "5-10"}, 5, "", ""},
		{"garbage", manifest.Row{"Qty": "n/a", "Retail": "n/a"}, 1, "", ""},
		{"bad decimal", manifest.Row{"Retail": "1.2.3"}, 1, "", ""},
		{"negative retail", manifest.Row{"Retail": "-5.00"}, 1, "-5.00", ""},
		{"trailing zero kept", manifest.Row{"Retail": "$12.50"}, 1, "12.50", ""},
		{"whole retail", manifest.Row{"Retail": "40"}, 1, "40", ""},
		{"missing columns", manifest.Row{}, 1, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := manifest.NormalizeRow(manifest.RawRow{RowNumber: 7, Raw: tt.raw}, set)
			assert.Equal(t, 7, out.RowNumber)
			assert.Equal(t, tt.wantQty, out.Quantity)
			if tt.wantRet == "" {
				assert.Nil(t, out.RetailValue)
			} else {
				require.NotNil(t, out.RetailValue)
				assert.Equal(t, tt.wantRet, out.RetailValue.String())
			}
			assert.Equal(t, tt.wantBrnd, out.Brand)
		})
	}
}

func TestNormalizeRowFormulaAndTransforms(t *testing.T) {
	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldTitle, Formula: `TITLE([Desc]) + " (" + UPPER([Brand]) + ")"`},
		{Target: manifest.FieldModel, Source: "Model", Transforms: []manifest.Transform{
			{Kind: manifest.TransformTrim},
			{Kind: manifest.TransformRemoveSpecialChars},
			{Kind: manifest.TransformUpper},
		}},
		{Target: manifest.FieldCategory, Source: "Cat", Transforms: []manifest.Transform{
			{Kind: manifest.TransformReplace, From: "/", To: " - "},
			{Kind: manifest.TransformTitleCase},
		}},
		// Formula takes precedence over the source when both are present.
		{Target: manifest.FieldNotes, Source: "Desc", Formula: `"from formula"`},
	})

	raw := manifest.RawRow{RowNumber: 1, Raw: manifest.Row{
		"Desc":  "usb cable",
		"Brand": "anker",
		"Model": " a-81.3 ",
		"Cat":   "electronics/cables",
	}}

	out := manifest.NormalizeRow(raw, set)
	assert.Equal(t, "Usb Cable (ANKER)", out.Title)
	assert.Equal(t, "A813", out.Model)
	assert.Equal(t, "Electronics - Cables", out.Category)
	assert.Equal(t, "from formula", out.Notes)
	assert.Equal(t, "", out.Description)
	assert.Equal(t, 1, out.Quantity)
}

func TestRetailValueJSON(t *testing.T) {
	row := manifest.NormalizeRow(manifest.RawRow{RowNumber: 1, Raw: manifest.Row{"Retail": "12.50"}},
		manifest.NewMappingSet([]manifest.ColumnMapping{{Target: manifest.FieldRetailValue, Source: "Retail"}}))

	data, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"retail_value":"12.50"`)

	var back manifest.NormalizedRow
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.RetailValue)
	assert.Equal(t, "12.50", back.RetailValue.String())
	assert.Equal(t, "12.50", back.Value(manifest.FieldRetailValue))

	data, err = json.Marshal(manifest.NormalizedRow{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"retail_value":null`)
}

func TestTransformApply(t *testing.T) {
	tests := []struct {
		name string
		t    manifest.Transform
		in   string
		want string
	}{
		{"replace", manifest.Transform{Kind: manifest.TransformReplace, From: "Inc.", To: ""}, "Acme Inc.", "Acme "},
		{"replace empty from", manifest.Transform{Kind: manifest.TransformReplace, From: "", To: "-"}, "abc", "-a-b-c-"},
		{"replace empty from and to", manifest.Transform{Kind: manifest.TransformReplace}, "abc", "abc"},
		{"title after digit and apostrophe", manifest.Transform{Kind: manifest.TransformTitleCase}, "x900abc o'neil", "X900Abc O'Neil"},
		{"upper full mapping", manifest.Transform{Kind: manifest.TransformUpper}, "straße", "STRASSE"},
		{"lower", manifest.Transform{Kind: manifest.TransformLower}, "ÉCOLE", "école"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.t.Apply(tt.in))
		})
	}
}

func TestLastMappingWins(t *testing.T) {
	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldBrand, Source: "A"},
		{Target: manifest.FieldBrand, Source: "B"},
	})
	out := manifest.NormalizeRow(manifest.RawRow{Raw: manifest.Row{"A": "first", "B": "second"}}, set)
	assert.Equal(t, "second", out.Brand)
	assert.Equal(t, 1, set.Len())
}

// ---------- Batch normalization ----------

func rawRows(n int) []manifest.RawRow {
	rows := make([]manifest.RawRow, n)
	for i := range rows {
		rows[i] = manifest.RawRow{RowNumber: i + 1, Raw: manifest.Row{
			"Name": fmt.Sprintf("item %d", i+1),
			"N":    "2",
			"Qty":  fmt.Sprintf("%d", i%3),
		}}
	}
	return rows
}

func TestNormalizeDegradedFormulaKeepsBatch(t *testing.T) {
	rows := rawRows(100)
	rows[41].Raw["N"] = "not a number"

	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldTitle, Formula: "LEFT([Name], [N])"},
		{Target: manifest.FieldDescription, Source: "Name"},
	})

	result := manifest.Normalize(rows, set, manifest.BatchOptions{})
	require.Len(t, result.Rows, 100)
	assert.Equal(t, 100, result.TotalRows)
	assert.Equal(t, 100, result.SelectedRows)
	assert.Equal(t, 1, result.DegradedFields)

	for i, r := range result.Rows {
		if i == 41 {
			assert.Equal(t, "", r.Title)
		} else {
			assert.Equal(t, "it", r.Title)
		}
		assert.Equal(t, fmt.Sprintf("item %d", i+1), r.Description)
	}
}

func TestNormalizeBrokenFormulaDegradesEveryRow(t *testing.T) {
	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldTitle, Formula: "UPPER([Name]"},
		{Target: manifest.FieldDescription, Source: "Name"},
	})
	require.Contains(t, set.FormulaErrors(), manifest.FieldTitle)

	result := manifest.Normalize(rawRows(5), set, manifest.BatchOptions{})
	require.Len(t, result.Rows, 5)
	assert.Equal(t, 5, result.DegradedFields)
	for _, r := range result.Rows {
		assert.Empty(t, r.Title)
		assert.NotEmpty(t, r.Description)
	}
}

func TestNormalizeSelection(t *testing.T) {
	set := manifest.NewMappingSet(manifest.AutoMap([]string{"Name", "Qty"}))

	result := manifest.Normalize(rawRows(5), set, manifest.BatchOptions{Selected: []int{2}})
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 2, result.Rows[0].RowNumber)
	assert.Equal(t, "item 2", result.Rows[0].Title)
	assert.Equal(t, 5, result.TotalRows)
	assert.Equal(t, 1, result.SelectedRows)

	result = manifest.Normalize(rawRows(5), set, manifest.BatchOptions{Selected: []int{99}})
	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, result.SelectedRows)
}

func TestNormalizeSearch(t *testing.T) {
	set := manifest.NewMappingSet(manifest.AutoMap([]string{"Name", "Qty"}))

	result := manifest.Normalize(rawRows(12), set, manifest.BatchOptions{Search: "ITEM 1"})
	// item 1, item 10, item 11, item 12
	assert.Equal(t, 4, result.MatchedRows)
	assert.Equal(t, 12, result.SelectedRows)
	for _, r := range result.Rows {
		assert.Contains(t, r.Title, "item 1")
	}
}

func TestNormalizeIdempotentAndParallel(t *testing.T) {
	rows := rawRows(1000)
	set := manifest.NewMappingSet([]manifest.ColumnMapping{
		{Target: manifest.FieldTitle, Formula: `UPPER([Name]) + "/" + [N]`},
		{Target: manifest.FieldQuantity, Source: "Qty"},
		{Target: manifest.FieldRetailValue, Source: "N"},
	})

	first, err := json.Marshal(manifest.Normalize(rows, set, manifest.BatchOptions{}))
	require.NoError(t, err)
	second, err := json.Marshal(manifest.Normalize(rows, set, manifest.BatchOptions{}))
	require.NoError(t, err)
	parallel, err := json.Marshal(manifest.Normalize(rows, set, manifest.BatchOptions{Workers: 8}))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, string(first), string(parallel))
}

// ---------- Search predicates ----------

func TestMatchesRaw(t *testing.T) {
	r := manifest.RawRow{RowNumber: 12, Raw: manifest.Row{"Brand": "Sony", "Model": "X900"}}
	assert.True(t, manifest.MatchesRaw(r, "sony x9"))
	assert.True(t, manifest.MatchesRaw(r, ""))
	assert.False(t, manifest.MatchesRaw(r, "12"))

	filtered := manifest.FilterRaw([]manifest.RawRow{r, {RowNumber: 13, Raw: manifest.Row{"Brand": "LG"}}}, "lg")
	require.Len(t, filtered, 1)
	assert.Equal(t, 13, filtered[0].RowNumber)
}

func TestMatchesNormalizedIgnoresRowNumber(t *testing.T) {
	r := manifest.NormalizedRow{RowNumber: 4242, Quantity: 1, Brand: "Anker"}
	assert.True(t, manifest.MatchesNormalized(r, "anker"))
	assert.False(t, manifest.MatchesNormalized(r, "4242"))
}

// ---------- Mapping payloads ----------

func TestDecodeMappingsShapes(t *testing.T) {
	payload := `[
		{"target": "brand", "source": "Mfr", "transforms": [{"type": "trim"}, {"type": "upper"}]},
		{"target": "model", "source": "Model", "transform": "lower"},
		{"target": "category", "source": "Dept", "transform": {"type": "replace", "from": "&", "to": "and"}},
		{"target": "condition", "source": "Grade", "functions": ["trim", "title_case"]},
		{"target": "title", "formula": "TITLE([Desc])"},
		{"target": "bogus", "source": "X"},
		{"target": "notes", "source": "Notes", "transforms": ["sparkle", "trim"]},
		"not an object"
	]`

	mappings, warnings, err := manifest.DecodeMappings([]byte(payload))
	require.NoError(t, err)
	require.Len(t, mappings, 6)
	assert.Len(t, warnings, 3)

	assert.Equal(t, manifest.ColumnMapping{
		Target: manifest.FieldBrand, Source: "Mfr",
		Transforms: []manifest.Transform{{Kind: manifest.TransformTrim}, {Kind: manifest.TransformUpper}},
	}, mappings[0])
	assert.Equal(t, []manifest.Transform{{Kind: manifest.TransformLower}}, mappings[1].Transforms)
	assert.Equal(t, []manifest.Transform{{Kind: manifest.TransformReplace, From: "&", To: "and"}}, mappings[2].Transforms)
	assert.Equal(t, []manifest.Transform{{Kind: manifest.TransformTrim}, {Kind: manifest.TransformTitleCase}}, mappings[3].Transforms)
	assert.Equal(t, "TITLE([Desc])", mappings[4].Formula)
	assert.True(t, mappings[4].IsFormula())
	assert.Equal(t, []manifest.Transform{{Kind: manifest.TransformTrim}}, mappings[5].Transforms)
}

func TestDecodeMappingsInvalid(t *testing.T) {
	_, _, err := manifest.DecodeMappings([]byte(`{"target": "brand"}`))
	assert.Error(t, err)

	mappings, warnings, err := manifest.DecodeMappings([]byte("null"))
	require.NoError(t, err)
	assert.Nil(t, mappings)
	assert.Nil(t, warnings)
}

func TestMappingJSONRoundTrip(t *testing.T) {
	in := []manifest.ColumnMapping{
		{Target: manifest.FieldBrand, Source: "Mfr", Transforms: []manifest.Transform{
			{Kind: manifest.TransformReplace, From: "Inc.", To: ""},
		}},
		{Target: manifest.FieldTitle, Formula: `TITLE([Desc])`},
		{Target: manifest.FieldUPC},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"target": "brand", "source": "Mfr", "transforms": [{"type": "replace", "from": "Inc.", "to": ""}]},
		{"target": "title", "formula": "TITLE([Desc])"},
		{"target": "upc", "source": "", "transforms": []}
	]`, string(data))

	var out []manifest.ColumnMapping
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, manifest.FieldUPC, out[2].Target)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
	assert.Empty(t, out[2].Source)
}

func TestMappingYAMLRoundTrip(t *testing.T) {
	in := []manifest.ColumnMapping{
		{Target: manifest.FieldCategory, Source: "Dept", Transforms: []manifest.Transform{{Kind: manifest.TransformTrim}}},
		{Target: manifest.FieldTitle, Formula: `UPPER([Desc])`},
	}

	data, err := yaml.Marshal(in)
	require.NoError(t, err)

	var out []manifest.ColumnMapping
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestColumnMappingUnmarshalRejectsUnknownTarget(t *testing.T) {
	var m manifest.ColumnMapping
	err := json.Unmarshal([]byte(`{"target": "price", "source": "P"}`), &m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target")
}

// ---------- Templates & resolution ----------

func TestHeaderSignature(t *testing.T) {
	a := manifest.HeaderSignature([]string{"Qty", " Description "})
	b := manifest.HeaderSignature([]string{"qty", "description"})
	c := manifest.HeaderSignature([]string{"description", "qty"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// md5("qty,description")
	assert.Len(t, a, 32)
}

func TestSelectTemplate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sig := manifest.HeaderSignature([]string{"a", "b"})
	templates := []manifest.Template{
		{ID: "old", Vendor: "acme", HeaderSignature: sig, CreatedAt: now.Add(-time.Hour)},
		{ID: "new", Vendor: "acme", HeaderSignature: sig, CreatedAt: now},
		{ID: "other-vendor", Vendor: "globex", HeaderSignature: sig, IsDefault: true, CreatedAt: now},
		{ID: "other-shape", Vendor: "acme", HeaderSignature: "x", CreatedAt: now},
	}

	got := manifest.SelectTemplate(templates, "acme", "", sig)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)

	templates[0].IsDefault = true
	got = manifest.SelectTemplate(templates, "acme", "", sig)
	require.NotNil(t, got)
	assert.Equal(t, "old", got.ID)

	got = manifest.SelectTemplate(templates, "acme", "other-shape", sig)
	require.NotNil(t, got)
	assert.Equal(t, "other-shape", got.ID)

	// A template id from another vendor is ignored.
	got = manifest.SelectTemplate(templates, "acme", "other-vendor", sig)
	require.NotNil(t, got)
	assert.Equal(t, "old", got.ID)

	assert.Nil(t, manifest.SelectTemplate(templates, "initech", "", sig))
}

func TestResolve(t *testing.T) {
	headers := []string{"Qty", "Desc", "Cost"}
	sig := manifest.HeaderSignature(headers)
	tmpl := manifest.Template{
		ID: "t1", Vendor: "acme", HeaderSignature: sig,
		ColumnMappings: []manifest.ColumnMapping{{Target: manifest.FieldTitle, Formula: "UPPER([Desc])"}},
	}

	t.Run("auto", func(t *testing.T) {
		res, err := manifest.Resolve(manifest.ResolveInput{Headers: headers, Vendor: "acme"})
		require.NoError(t, err)
		assert.Equal(t, manifest.SourceAuto, res.Source)
		assert.Nil(t, res.Template)
		assert.Equal(t, sig, res.Signature)
		assert.Len(t, res.Mappings, len(manifest.Fields))
	})

	t.Run("template", func(t *testing.T) {
		res, err := manifest.Resolve(manifest.ResolveInput{
			Headers: headers, Vendor: "acme", Templates: []manifest.Template{tmpl},
		})
		require.NoError(t, err)
		assert.Equal(t, manifest.SourceTemplate, res.Source)
		require.NotNil(t, res.Template)
		assert.Equal(t, "t1", res.Template.ID)
		assert.Equal(t, tmpl.ColumnMappings, res.Mappings)
	})

	t.Run("explicit beats template", func(t *testing.T) {
		res, err := manifest.Resolve(manifest.ResolveInput{
			Headers:   headers,
			Vendor:    "acme",
			Templates: []manifest.Template{tmpl},
			Payload:   json.RawMessage(`[{"target": "brand", "formula": "[Desc"}]`),
		})
		require.NoError(t, err)
		assert.Equal(t, manifest.SourceExplicit, res.Source)
		require.NotNil(t, res.Template)
		require.Len(t, res.Mappings, 1)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "brand")
	})

	t.Run("empty template falls back to auto", func(t *testing.T) {
		empty := tmpl
		empty.ColumnMappings = nil
		res, err := manifest.Resolve(manifest.ResolveInput{
			Headers: headers, Vendor: "acme", Templates: []manifest.Template{empty},
		})
		require.NoError(t, err)
		assert.Equal(t, manifest.SourceAuto, res.Source)
		require.NotNil(t, res.Template)
	})

	t.Run("bad payload", func(t *testing.T) {
		_, err := manifest.Resolve(manifest.ResolveInput{Headers: headers, Payload: json.RawMessage(`{`)})
		assert.Error(t, err)
	})
}
