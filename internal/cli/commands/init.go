package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/manifestkit/internal/cli/config"
	"github.com/leapstack-labs/manifestkit/internal/templatefile"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/spf13/cobra"
)

const starterConfig = `# manifestkit configuration
# Environment variables (MANIFESTKIT_*) and flags override these values.

# SQLite database holding saved templates
state_path: %s

# Default vendor for inspect, standardize and template commands
# vendor: acme

# Output format: auto, text, markdown or json
output: %s

# Parallel normalization workers for large manifests
workers: %d

# Rows shown by inspect and standardize previews
preview_rows: %d

server:
  addr: "%s"
  read_header_timeout: %s
  shutdown_timeout: %s
  max_body_bytes: %d
`

// exampleTemplate shows every mapping shape in a starter template file.
var exampleTemplate = manifest.Template{
	Vendor:          "example",
	Name:            "Example pallet manifest",
	HeaderSignature: manifest.HeaderSignature([]string{"Qty", "Item Description", "Brand", "Model", "Grade", "Retail", "UPC", "SKU"}),
	ColumnMappings: []manifest.ColumnMapping{
		{Target: manifest.FieldQuantity, Source: "Qty"},
		{Target: manifest.FieldDescription, Source: "Item Description", Transforms: []manifest.Transform{
			{Kind: manifest.TransformTrim},
		}},
		{Target: manifest.FieldTitle, Formula: `TITLE(TRIM([Brand]) + " " + [Model])`},
		{Target: manifest.FieldBrand, Source: "Brand", Transforms: []manifest.Transform{
			{Kind: manifest.TransformTrim},
			{Kind: manifest.TransformTitleCase},
		}},
		{Target: manifest.FieldModel, Source: "Model", Transforms: []manifest.Transform{
			{Kind: manifest.TransformUpper},
		}},
		{Target: manifest.FieldCondition, Source: "Grade", Transforms: []manifest.Transform{
			{Kind: manifest.TransformReplace, From: "A", To: "Like New"},
		}},
		{Target: manifest.FieldRetailValue, Source: "Retail"},
		{Target: manifest.FieldUPC, Source: "UPC", Transforms: []manifest.Transform{
			{Kind: manifest.TransformRemoveSpecialChars},
		}},
		{Target: manifest.FieldVendorItemNumber, Source: "SKU"},
	},
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter configuration and template file",
		Long: `Create a manifestkit configuration file with default values and a
templates/ directory holding an example template file.

The example template can be imported with 'manifestkit template import' or
kept in sync with 'manifestkit serve --templates-dir templates'.`,
		Example: `  # Initialize in current directory
  manifestkit init

  # Initialize in a new directory
  manifestkit init receiving

  # Force overwrite existing files
  manifestkit init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContextWithoutStore(cmd).Renderer

	configPath := filepath.Join(dir, config.ConfigFileName)
	templatePath := filepath.Join(dir, "templates", "example.yaml")

	if !force {
		for _, p := range []string{configPath, templatePath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists. Use --force to overwrite", p)
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(templatePath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(templatePath), err)
	}

	def := config.Default()
	cfgData := fmt.Sprintf(starterConfig,
		def.StatePath, def.OutputFormat, def.Workers, def.PreviewRows,
		def.Server.Addr, def.Server.ReadHeaderTimeout, def.Server.ShutdownTimeout, def.Server.MaxBodyBytes)
	if err := os.WriteFile(configPath, []byte(cfgData), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.Success("created " + configPath)

	tmplData, err := templatefile.Marshal([]manifest.Template{exampleTemplate}, templatefile.FormatYAML)
	if err != nil {
		return err
	}
	if err := os.WriteFile(templatePath, tmplData, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", templatePath, err)
	}
	r.Success("created " + templatePath)

	r.Println()
	r.Println("Next steps:")
	r.Println("  manifestkit inspect manifest.csv          Preview a manifest")
	r.Println("  manifestkit template import templates/*   Load the example template")
	r.Println("  manifestkit standardize manifest.csv      Normalize rows")
	return nil
}
