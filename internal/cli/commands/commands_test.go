package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/manifestkit/internal/cli/testutil"
	"github.com/leapstack-labs/manifestkit/internal/intake"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormulaCommand(t *testing.T) {
	cmd := NewFormulaCommand()

	assert.Equal(t, "formula", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"eval", "check"}, names)

	eval, _, err := cmd.Find([]string{"eval"})
	require.NoError(t, err)
	for _, flag := range []string{"row", "row-file"} {
		assert.NotNil(t, eval.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewInspectCommand(t *testing.T) {
	cmd := NewInspectCommand()

	assert.Equal(t, "inspect <file.csv>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
}

func TestNewStandardizeCommand(t *testing.T) {
	cmd := NewStandardizeCommand()

	assert.Equal(t, "standardize <file.csv>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"template", "mappings", "rows", "search", "save-template", "default", "out", "limit"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewTemplateCommand(t *testing.T) {
	cmd := NewTemplateCommand()

	assert.Equal(t, "template", cmd.Use)
	assert.Equal(t, "templates", cmd.Aliases[0])

	names := []string{}
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "export", "import", "delete", "set-default"}, names)
}

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()

	assert.Equal(t, "serve", cmd.Use)
	assert.NotEmpty(t, cmd.Long, "Long should not be empty")
	for _, flag := range []string{"addr", "templates-dir"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewInitCommand(t *testing.T) {
	cmd := NewInitCommand()

	assert.Equal(t, "init [directory]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("force"), "--force flag should exist")
}

func TestBuildRow(t *testing.T) {
	rowFile := filepath.Join(t.TempDir(), "row.json")
	require.NoError(t, os.WriteFile(rowFile, []byte(`{"Brand":"Sony","Model":"X900"}`), 0o600))

	row, err := buildRow(&FormulaOptions{
		RowFile: rowFile,
		Values:  []string{"Model=A1", " Grade =B=C"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Brand": "Sony", "Model": "A1", "Grade": "B=C"}, row)

	_, err = buildRow(&FormulaOptions{RowFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestLoadMappingsFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    int
		wantErr string
	}{
		{"yaml list", "m.yaml", "- target: quantity\n  source: Qty\n", 1, ""},
		{"yaml object", "m.yml", "column_mappings:\n  - target: title\n    formula: TITLE([Desc])\n  - target: brand\n    source: Mfr\n", 2, ""},
		{"json list", "m.json", `[{"target":"upc","source":"UPC","transform":"trim"}]`, 1, ""},
		{"json object without mappings", "bad.json", `{"mappings":[]}`, 0, "column_mappings"},
		{"malformed yaml", "bad.yaml", "- [", 0, "invalid mappings file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			payload, err := loadMappingsFile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			mappings, warnings, err := manifest.DecodeMappings(payload)
			require.NoError(t, err)
			assert.Empty(t, warnings)
			assert.Len(t, mappings, tt.want)
		})
	}
}

func TestWriteRecords(t *testing.T) {
	price := manifest.NewAmount(decimal.RequireFromString("12.50"))
	rows := []manifest.NormalizedRow{
		{RowNumber: 2, Quantity: 3, Title: "Desk Lamp, Brass", RetailValue: price},
		{RowNumber: 5, Quantity: 1},
	}

	var b strings.Builder
	require.NoError(t, writeRecords(&b, rows))

	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "row_number,quantity,description,title,brand,model,category,condition,retail_value,upc,vendor_item_number,notes", lines[0])
	assert.Equal(t, `2,3,,"Desk Lamp, Brass",,,,,12.50,,,`, lines[1])
	assert.Equal(t, "5,1,,,,,,,,,,", lines[2])
}

func TestDescribeMapping(t *testing.T) {
	tests := []struct {
		mapping manifest.ColumnMapping
		want    string
	}{
		{manifest.ColumnMapping{Target: manifest.FieldTitle, Formula: "TITLE([Desc])"}, "= TITLE([Desc])"},
		{manifest.ColumnMapping{Target: manifest.FieldBrand}, "(unmapped)"},
		{manifest.ColumnMapping{Target: manifest.FieldBrand, Source: "Mfr", Transforms: []manifest.Transform{
			{Kind: manifest.TransformTrim},
			{Kind: manifest.TransformReplace, From: "&", To: "and"},
		}}, `[Mfr] | trim | replace("&", "and")`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, describeMapping(tt.mapping))
	}
}

func TestRenderInspectMarkdown(t *testing.T) {
	tr := testutil.NewTestRendererMarkdown()
	renderInspect(tr.Renderer, &InspectOutput{
		File:          "pallet.csv",
		Headers:       []string{"Qty", "Desc"},
		Signature:     manifest.HeaderSignature([]string{"Qty", "Desc"}),
		Encoding:      intake.EncodingUTF8,
		MappingSource: manifest.SourceAuto,
		ColumnMappings: []manifest.ColumnMapping{
			{Target: manifest.FieldQuantity, Source: "Qty"},
		},
		RowCount: 1,
		Rows:     []manifest.RawRow{{RowNumber: 1, Raw: manifest.Row{"Qty": "2", "Desc": "lamp"}}},
		Warnings: []intake.Warning{{Row: 1, Message: "row has 1 columns"}},
	})

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Manifest pallet.csv")
	assert.Contains(t, out, "- **Mappings:** auto")
	assert.Contains(t, out, "lamp")
	assert.Contains(t, tr.ErrorOutput(), "row 1: row has 1 columns")
}

func TestRenderStandardizeText(t *testing.T) {
	tr := testutil.NewTestRendererText()
	out := &StandardizeOutput{
		File:          "pallet.csv",
		MappingSource: manifest.SourceTemplate,
		TemplateID:    "t-1",
		TemplateSaved: true,
		BatchResult: manifest.BatchResult{
			Rows: []manifest.NormalizedRow{
				{RowNumber: 1, Quantity: 1, Title: "First"},
				{RowNumber: 2, Quantity: 1, Title: "Second"},
			},
			TotalRows: 2, SelectedRows: 2, MatchedRows: 2,
		},
		Warnings: []string{"title: formula error"},
	}
	renderStandardize(tr.Renderer, out, 1)

	assert.Contains(t, tr.Output(), "First")
	assert.NotContains(t, tr.Output(), "Second")
	assert.Contains(t, tr.Output(), "saved template t-1")
	assert.Contains(t, tr.ErrorOutput(), "title: formula error")
}
