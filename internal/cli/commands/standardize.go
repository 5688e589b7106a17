package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/leapstack-labs/manifestkit/internal/cli/output"
	"github.com/leapstack-labs/manifestkit/internal/standardize"
	"github.com/leapstack-labs/manifestkit/internal/templatefile"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// StandardizeOptions holds options for the standardize command.
type StandardizeOptions struct {
	TemplateID   string
	MappingsFile string
	Rows         []int
	Search       string
	SaveTemplate string
	Default      bool
	Out          string
	Limit        int
}

// StandardizeOutput is the JSON output of the standardize command.
type StandardizeOutput struct {
	File           string                   `json:"file"`
	Signature      string                   `json:"signature"`
	MappingSource  manifest.MappingSource   `json:"mapping_source"`
	TemplateID     string                   `json:"template_id,omitempty"`
	TemplateSaved  bool                     `json:"template_saved"`
	ColumnMappings []manifest.ColumnMapping `json:"column_mappings"`
	manifest.BatchResult
	Warnings []string `json:"warnings"`
}

// NewStandardizeCommand creates the standardize command.
func NewStandardizeCommand() *cobra.Command {
	opts := &StandardizeOptions{}
	cmd := &cobra.Command{
		Use:   "standardize <file.csv>",
		Short: "Normalize manifest rows into the standard record layout",
		Long: `Normalize the rows of a manifest CSV into standardized records.

Mappings are resolved in this order:
  1. explicit mappings from --mappings
  2. the template named by --template, or the vendor's saved template whose
     header signature matches the file
  3. header auto-mapping

Formula errors never fail a row: the affected field falls back to its default
and is counted in degraded_fields. Use --out to write the records as CSV.`,
		Example: `  # Standardize with auto-mapped headers
  manifestkit standardize pallet-0142.csv

  # Use explicit mappings and save them as the vendor's default template
  manifestkit standardize pallet-0142.csv --vendor acme \
    --mappings mappings.yaml --save-template "Acme weekly" --default

  # Only rows 2, 5 and 9, written as CSV
  manifestkit standardize pallet-0142.csv --rows 2,5,9 --out records.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStandardize(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.TemplateID, "template", "", "ID of the saved template to use")
	cmd.Flags().StringVarP(&opts.MappingsFile, "mappings", "m", "", "JSON or YAML file with explicit column mappings")
	cmd.Flags().IntSliceVar(&opts.Rows, "rows", nil, "Row numbers to normalize (default: all)")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Only show normalized rows containing this text")
	cmd.Flags().StringVar(&opts.SaveTemplate, "save-template", "", "Save the mappings as a template with this name")
	cmd.Flags().BoolVar(&opts.Default, "default", false, "Make the saved template the vendor's default")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write normalized records to this CSV file")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "Rows to display (default: preview_rows)")
	return cmd
}

// loadMappingsFile reads explicit mappings as a JSON payload. The file holds
// a mapping list, or an object with a column_mappings list.
func loadMappingsFile(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a user-supplied CLI argument
	if err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}

	var v any
	if templatefile.FormatFromPath(path) == templatefile.FormatJSON {
		err = json.Unmarshal(data, &v)
	} else {
		err = yaml.Unmarshal(data, &v)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid mappings file %s: %w", path, err)
	}

	if obj, ok := v.(map[string]any); ok {
		list, ok := obj["column_mappings"]
		if !ok {
			return nil, fmt.Errorf("invalid mappings file %s: expected a list or column_mappings", path)
		}
		v = list
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("invalid mappings file %s: %w", path, err)
	}
	return payload, nil
}

func runStandardize(cmd *cobra.Command, path string, opts *StandardizeOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg

	m, err := readManifest(cmd, path)
	if err != nil {
		return err
	}

	req := standardize.Request{
		Vendor:     cfg.Vendor,
		Headers:    m.Headers,
		Rows:       m.Rows,
		TemplateID: opts.TemplateID,
		Selected:   opts.Rows,
		Search:     opts.Search,
		Workers:    cfg.Workers,
	}
	if opts.MappingsFile != "" {
		if req.Payload, err = loadMappingsFile(opts.MappingsFile); err != nil {
			return err
		}
	}
	if opts.SaveTemplate != "" {
		req.Save = &standardize.SaveOptions{Name: opts.SaveTemplate, IsDefault: opts.Default}
	}

	res, err := standardize.Run(cmd.Context(), cmdCtx.Store, req, cmdCtx.Logger)
	if err != nil {
		return err
	}

	if opts.Out != "" {
		if err := writeRecordsFile(opts.Out, res.Batch.Rows); err != nil {
			return err
		}
	}

	out := StandardizeOutput{
		File:           path,
		Signature:      res.Resolution.Signature,
		MappingSource:  res.Resolution.Source,
		TemplateID:     res.TemplateID,
		TemplateSaved:  res.Saved,
		ColumnMappings: res.Mappings(),
		BatchResult:    res.Batch,
		Warnings:       res.Warnings,
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = cfg.PreviewRows
	}
	renderStandardize(r, &out, limit)
	if opts.Out != "" {
		r.Success(fmt.Sprintf("wrote %d records to %s", len(out.Rows), opts.Out))
	}
	return nil
}

func renderStandardize(r *output.Renderer, out *StandardizeOutput, limit int) {
	r.Header(1, "Standardized "+out.File)
	r.KeyValue("Rows", fmt.Sprintf("%d selected of %d, %d shown by search", out.SelectedRows, out.TotalRows, out.MatchedRows))
	r.KeyValue("Mappings", out.MappingSource)
	if out.TemplateID != "" {
		r.KeyValue("Template", out.TemplateID)
	}
	r.KeyValue("Degraded fields", out.DegradedFields)
	r.Println()

	shown := out.Rows
	if len(shown) > limit {
		shown = shown[:limit]
	}
	r.Header(2, fmt.Sprintf("Records (%d of %d)", len(shown), len(out.Rows)))
	r.Table(recordHeader(), recordCells(shown))

	if out.TemplateSaved {
		r.Success("saved template " + out.TemplateID)
	}
	for _, w := range out.Warnings {
		r.Warning(w)
	}
}

// recordHeader is the column layout of normalized records: the row number
// followed by every field in canonical order.
func recordHeader() []string {
	header := make([]string, 0, len(manifest.Fields)+1)
	header = append(header, "row_number")
	for _, f := range manifest.Fields {
		header = append(header, f.String())
	}
	return header
}

func recordCells(rows []manifest.NormalizedRow) [][]string {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		record := make([]string, 0, len(manifest.Fields)+1)
		record = append(record, strconv.Itoa(row.RowNumber))
		for _, f := range manifest.Fields {
			record = append(record, row.Value(f))
		}
		cells = append(cells, record)
	}
	return cells
}

// writeRecords writes normalized rows as CSV with a header line.
func writeRecords(w io.Writer, rows []manifest.NormalizedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader()); err != nil {
		return err
	}
	if err := cw.WriteAll(recordCells(rows)); err != nil {
		return err
	}
	return cw.Error()
}

func writeRecordsFile(path string, rows []manifest.NormalizedRow) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is a user-supplied CLI argument
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeRecords(f, rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
