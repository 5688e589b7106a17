package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/leapstack-labs/manifestkit/internal/cli/output"
	"github.com/leapstack-labs/manifestkit/internal/intake"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/spf13/cobra"
)

// InspectOutput is the JSON output of the inspect command.
type InspectOutput struct {
	File           string                   `json:"file"`
	Headers        []string                 `json:"headers"`
	Signature      string                   `json:"signature"`
	Encoding       intake.Encoding          `json:"encoding"`
	TemplateID     string                   `json:"template_id,omitempty"`
	TemplateName   string                   `json:"template_name,omitempty"`
	MappingSource  manifest.MappingSource   `json:"mapping_source"`
	ColumnMappings []manifest.ColumnMapping `json:"column_mappings"`
	RowCount       int                      `json:"row_count"`
	Search         string                   `json:"search,omitempty"`
	MatchedRows    int                      `json:"matched_rows"`
	Rows           []manifest.RawRow        `json:"rows"`
	Warnings       []intake.Warning         `json:"warnings,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var (
		limit  int
		search string
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.csv>",
		Short: "Preview a manifest and the mappings that would apply",
		Long: `Read a manifest CSV and show its headers, header signature, detected
encoding, the first rows, and the column mappings that standardize would use.

With --vendor, saved templates of that vendor whose header signature matches
the file are considered before falling back to header auto-mapping.
With --search, only rows containing the text in any cell are previewed.
Use - to read the manifest from standard input.`,
		Example: `  # Preview a manifest
  manifestkit inspect pallet-0142.csv

  # Check which saved template matches
  manifestkit inspect pallet-0142.csv --vendor acme -o json

  # Preview only rows mentioning a brand
  manifestkit inspect pallet-0142.csv --search anker`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], limit, search)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Rows to preview (default: preview_rows)")
	cmd.Flags().StringVar(&search, "search", "", "Preview only rows containing this text (case-insensitive)")
	return cmd
}

// readManifest parses a manifest file, or standard input for "-".
func readManifest(cmd *cobra.Command, path string) (*intake.Manifest, error) {
	var src io.Reader
	if path == "-" {
		src = cmd.InOrStdin()
	} else {
		f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied CLI argument
		if err != nil {
			return nil, fmt.Errorf("failed to open manifest: %w", err)
		}
		defer func() { _ = f.Close() }()
		src = f
	}

	m, err := intake.Read(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func runInspect(cmd *cobra.Command, path string, limit int, search string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	vendor := cmdCtx.Cfg.Vendor
	if limit <= 0 {
		limit = cmdCtx.Cfg.PreviewRows
	}

	m, err := readManifest(cmd, path)
	if err != nil {
		return err
	}

	var templates []manifest.Template
	if vendor != "" {
		templates, err = cmdCtx.Store.ListTemplates(cmd.Context(), vendor)
		if err != nil {
			return err
		}
	}

	res, err := manifest.Resolve(manifest.ResolveInput{
		Headers:   m.Headers,
		Vendor:    vendor,
		Templates: templates,
	})
	if err != nil {
		return err
	}

	out := InspectOutput{
		File:           path,
		Headers:        m.Headers,
		Signature:      m.Signature,
		Encoding:       m.Encoding,
		MappingSource:  res.Source,
		ColumnMappings: res.Set.Mappings(),
		RowCount:       len(m.Rows),
		Search:         strings.TrimSpace(search),
		Warnings:       m.Warnings,
	}
	matched := m.Search(out.Search)
	out.MatchedRows = len(matched)
	out.Rows = intake.Preview(matched, limit)
	if out.Rows == nil {
		out.Rows = []manifest.RawRow{}
	}
	if out.ColumnMappings == nil {
		out.ColumnMappings = []manifest.ColumnMapping{}
	}
	if res.Template != nil {
		out.TemplateID = res.Template.ID
		out.TemplateName = res.Template.Name
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderInspect(r, &out)
	return nil
}

func renderInspect(r *output.Renderer, out *InspectOutput) {
	r.Header(1, "Manifest "+out.File)
	r.KeyValue("Rows", out.RowCount)
	r.KeyValue("Encoding", out.Encoding)
	r.KeyValue("Signature", out.Signature)
	mapping := string(out.MappingSource)
	if out.TemplateID != "" {
		mapping += fmt.Sprintf(" (%s, %s)", out.TemplateName, out.TemplateID)
	}
	r.KeyValue("Mappings", mapping)
	r.Println()

	r.Header(2, "Column mappings")
	renderMappings(r, out.ColumnMappings)
	r.Println()

	if out.Search != "" {
		r.Header(2, fmt.Sprintf("Preview (%d of %d rows matching %q, %d total)", len(out.Rows), out.MatchedRows, out.Search, out.RowCount))
	} else {
		r.Header(2, fmt.Sprintf("Preview (%d of %d rows)", len(out.Rows), out.RowCount))
	}
	headers := append([]string{"#"}, out.Headers...)
	rows := make([][]string, 0, len(out.Rows))
	for _, row := range out.Rows {
		cells := []string{strconv.Itoa(row.RowNumber)}
		for _, h := range out.Headers {
			cells = append(cells, row.Raw[h])
		}
		rows = append(rows, cells)
	}
	r.Table(headers, rows)

	for _, w := range out.Warnings {
		r.Warning(fmt.Sprintf("row %d: %s", w.Row, w.Message))
	}
}

// renderMappings writes one line per mapping in field order.
func renderMappings(r *output.Renderer, mappings []manifest.ColumnMapping) {
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{m.Target.String(), describeMapping(m)})
	}
	r.Table([]string{"Field", "Mapping"}, rows)
}

func describeMapping(m manifest.ColumnMapping) string {
	if m.IsFormula() {
		return "= " + m.Formula
	}
	if m.Source == "" {
		return "(unmapped)"
	}
	parts := []string{"[" + m.Source + "]"}
	for _, t := range m.Transforms {
		if t.Kind == manifest.TransformReplace {
			parts = append(parts, fmt.Sprintf("replace(%q, %q)", t.From, t.To))
			continue
		}
		parts = append(parts, t.Kind.String())
	}
	return strings.Join(parts, " | ")
}
