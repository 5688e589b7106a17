package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/manifestkit/internal/metrics"
	"github.com/leapstack-labs/manifestkit/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var templatesDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API server",
		Long: `Start the HTTP API for formula evaluation, manifest standardization and
template management. Prometheus metrics are served at /metrics.

With --templates-dir, template files in that directory are imported at
startup and re-imported whenever they change.`,
		Example: `  # Serve on the default address
  manifestkit serve

  # Serve on another port and keep templates in sync with a directory
  manifestkit serve --addr :9000 --templates-dir ./templates`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, templatesDir)
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().StringVar(&templatesDir, "templates-dir", "", "Directory of template files to import and watch")
	return cmd
}

func runServe(cmd *cobra.Command, templatesDir string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := cmdCtx.Cfg
	srv := server.New(server.Config{
		Store:             cmdCtx.Store,
		Logger:            cmdCtx.Logger,
		Metrics:           metrics.NewRegistry(),
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		Workers:           cfg.Workers,
		PreviewRows:       cfg.PreviewRows,
		TemplatesDir:      templatesDir,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx.Renderer.Success("API server listening on " + cfg.Server.Addr)
	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil && cmd.Context().Err() == nil {
		cmdCtx.Renderer.Muted("shutting down")
	}
	return nil
}

