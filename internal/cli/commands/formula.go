package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/manifestkit/internal/cli/output"
	"github.com/leapstack-labs/manifestkit/pkg/formula"
	"github.com/spf13/cobra"
)

// FormulaOptions holds options for the formula eval command.
type FormulaOptions struct {
	Values  []string // column=value pairs
	RowFile string   // JSON object file with row values
}

// NewFormulaCommand creates the formula command group.
func NewFormulaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formula",
		Short: "Evaluate and check mapping formulas",
		Long: `Work with the formula language used by column mappings.

Formulas reference row columns with [Column Name], string literals with
double quotes, and combine values with + or the built-in functions:
UPPER, LOWER, TITLE, TRIM, REPLACE, CONCAT, LEFT and RIGHT.`,
	}

	cmd.AddCommand(newFormulaEvalCommand())
	cmd.AddCommand(newFormulaCheckCommand())
	return cmd
}

func newFormulaEvalCommand() *cobra.Command {
	opts := &FormulaOptions{}
	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a formula against a row",
		Example: `  # Combine two columns
  manifestkit formula eval 'TRIM([Brand]) + " " + [Model]' --row Brand=" Sony " --row Model=X900

  # Read the row from a JSON file
  manifestkit formula eval 'LEFT([SKU], 3)' --row-file row.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormulaEval(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Values, "row", nil, "Row value as column=value (repeatable)")
	cmd.Flags().StringVar(&opts.RowFile, "row-file", "", "JSON file with the row as an object of column values")
	return cmd
}

func newFormulaCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <formula>",
		Short: "Check a formula for syntax and arity errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormulaCheck(cmd, args[0])
		},
	}
}

// buildRow merges the row file with --row pairs, pairs taking precedence.
func buildRow(opts *FormulaOptions) (map[string]string, error) {
	row := make(map[string]string)

	if opts.RowFile != "" {
		data, err := os.ReadFile(opts.RowFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read row file: %w", err)
		}
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("row file must be a JSON object of strings: %w", err)
		}
	}

	for _, pair := range opts.Values {
		col, val, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --row %q: expected column=value", pair)
		}
		row[strings.TrimSpace(col)] = val
	}
	return row, nil
}

func runFormulaEval(cmd *cobra.Command, expr string, opts *FormulaOptions) error {
	r := NewCommandContextWithoutStore(cmd).Renderer

	row, err := buildRow(opts)
	if err != nil {
		return err
	}

	value, err := formula.Evaluate(expr, row)
	if err != nil {
		renderFormulaError(r, expr, err)
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]string{"value": value})
	}
	r.Println(value)
	return nil
}

func runFormulaCheck(cmd *cobra.Command, expr string) error {
	r := NewCommandContextWithoutStore(cmd).Renderer

	err := formula.Validate(expr)
	if r.EffectiveMode() == output.ModeJSON {
		out := map[string]any{"valid": err == nil}
		if err != nil {
			out["error"] = err.Error()
			var ferr *formula.Error
			if errors.As(err, &ferr) && ferr.Pos >= 0 {
				out["position"] = ferr.Pos
			}
		}
		if jerr := r.JSON(out); jerr != nil {
			return jerr
		}
		return err
	}

	if err != nil {
		renderFormulaError(r, expr, err)
		return err
	}
	r.Success("formula is valid")
	return nil
}

// renderFormulaError points at the failing position under the formula.
func renderFormulaError(r *output.Renderer, expr string, err error) {
	var ferr *formula.Error
	if r.EffectiveMode() == output.ModeJSON || !errors.As(err, &ferr) || ferr.Pos < 0 {
		return
	}
	trimmed := strings.TrimSpace(expr)
	if ferr.Pos > len(trimmed) {
		return
	}
	r.Muted("  " + trimmed)
	r.Muted("  " + strings.Repeat(" ", ferr.Pos) + "^")
}
