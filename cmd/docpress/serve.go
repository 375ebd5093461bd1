package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docpress/internal/app"
)

func newServeCmd(opts *options) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docpress HTTP server",
		Long: `Start the docpress HTTP API.

The server accepts uploads for asynchronous compression and archives every
finished report in SQLite. DOCPRESS_SERVER_API_KEY must be set.

The server provides:
  - /health  - Basic server health check
  - /metrics - Prometheus metrics
  - /api/... - Compression jobs and stored reports (bearer auth)

Examples:
  docpress serve                 # Start on the configured port (default 8090)
  docpress serve --port 3000     # Start on custom port`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

			a, err := app.New(cfg, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			// Blocks until shutdown
			return a.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (overrides config)")
	return cmd
}
