package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/manifestkit/internal/cli/output"
	"github.com/leapstack-labs/manifestkit/internal/templatefile"
	"github.com/leapstack-labs/manifestkit/pkg/manifest"
	"github.com/spf13/cobra"
)

// NewTemplateCommand creates the template command group.
func NewTemplateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "template",
		Aliases: []string{"templates"},
		Short:   "Manage saved vendor mapping templates",
		Long: `Manage the mapping templates saved in the state database.

A template stores the column mappings for one vendor's manifest layout,
recognized by the signature of the manifest headers. Templates can be
exported to and imported from YAML or JSON files.`,
	}

	cmd.AddCommand(newTemplateListCommand())
	cmd.AddCommand(newTemplateShowCommand())
	cmd.AddCommand(newTemplateExportCommand())
	cmd.AddCommand(newTemplateImportCommand())
	cmd.AddCommand(newTemplateDeleteCommand())
	cmd.AddCommand(newTemplateDefaultCommand())
	return cmd
}

func newTemplateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved templates",
		Example: `  # All templates
  manifestkit template list

  # One vendor's templates as JSON
  manifestkit template list --vendor acme -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			templates, err := cmdCtx.Store.ListTemplates(cmd.Context(), cmdCtx.Cfg.Vendor)
			if err != nil {
				return err
			}
			if templates == nil {
				templates = []manifest.Template{}
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(templates)
			}

			r.Header(1, fmt.Sprintf("Templates (%d total)", len(templates)))
			rows := make([][]string, 0, len(templates))
			for _, t := range templates {
				def := ""
				if t.IsDefault {
					def = "yes"
				}
				rows = append(rows, []string{
					t.ID, t.Vendor, t.Name, shortSignature(t.HeaderSignature),
					fmt.Sprintf("%d", len(t.ColumnMappings)), def, t.CreatedAt.Format(time.DateTime),
				})
			}
			r.Table([]string{"ID", "Vendor", "Name", "Signature", "Mappings", "Default", "Created"}, rows)
			return nil
		},
	}
}

func shortSignature(sig string) string {
	if len(sig) > 12 {
		return sig[:12]
	}
	return sig
}

func newTemplateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a template and its column mappings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := cmdCtx.Store.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(t)
			}

			r.Header(1, t.Name)
			r.KeyValue("ID", t.ID)
			r.KeyValue("Vendor", t.Vendor)
			r.KeyValue("Signature", t.HeaderSignature)
			r.KeyValue("Default", t.IsDefault)
			r.KeyValue("Created", t.CreatedAt.Format(time.RFC3339))
			r.Println()
			r.Header(2, "Column mappings")
			renderMappings(r, t.ColumnMappings)
			return nil
		},
	}
}

func newTemplateExportCommand() *cobra.Command {
	var outPath string
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export templates to a YAML or JSON file",
		Example: `  # Export every template as YAML to stdout
  manifestkit template export

  # Export one vendor's templates to a JSON file
  manifestkit template export --vendor acme --file acme.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			templates, err := cmdCtx.Store.ListTemplates(cmd.Context(), cmdCtx.Cfg.Vendor)
			if err != nil {
				return err
			}

			f := templatefile.Format(format)
			if format == "" {
				f = templatefile.FormatFromPath(outPath)
			}
			if f != templatefile.FormatYAML && f != templatefile.FormatJSON {
				return fmt.Errorf("unsupported format %q: use yaml or json", format)
			}

			data, err := templatefile.Marshal(templates, f)
			if err != nil {
				return err
			}

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("exported %d templates to %s", len(templates), outPath))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "", "File format: yaml or json (default: from file extension)")
	return cmd
}

func newTemplateImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import templates from YAML or JSON files",
		Long: `Import templates from YAML or JSON files.

Templates with an ID that already exists are updated. Templates without an ID
update the vendor's template with the same name and header signature, so
importing the same file twice does not create duplicates.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var total templatefile.ImportResult
			for _, path := range args {
				res, err := templatefile.ImportFile(cmd.Context(), cmdCtx.Store, path, cmdCtx.Logger)
				if err != nil {
					return err
				}
				total.Created += res.Created
				total.Updated += res.Updated
			}

			r := cmdCtx.Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(total)
			}
			r.Success(fmt.Sprintf("imported templates: %d created, %d updated", total.Created, total.Updated))
			return nil
		},
	}
}

func newTemplateDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete templates",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			for _, id := range args {
				if err := cmdCtx.Store.DeleteTemplate(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				cmdCtx.Renderer.Success("deleted template " + id)
			}
			return nil
		},
	}
}

func newTemplateDefaultCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <id>",
		Short: "Make a template the default for its vendor and header layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := cmdCtx.Store.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			t.IsDefault = true
			if err := cmdCtx.Store.UpdateTemplate(cmd.Context(), t); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("%s is now the default template for %s", t.Name, t.Vendor))
			return nil
		},
	}
}
