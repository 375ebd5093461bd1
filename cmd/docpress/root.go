package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docpress/internal/config"
)

// options are the persistent flags shared by every command.
type options struct {
	cfgFile string
	format  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docpress",
		Short: "Hierarchical compression for long documents",
		Long: `Docpress compresses long documents into a traceable hierarchy of summaries.

A run moves through four levels:
  - raw pages parsed from PDF, DOCX, Markdown, HTML, CSV or text
  - semantic chunks that respect headers and keep critical text whole
  - per-section summaries
  - one document summary within a word budget

Every summary records why content was kept, and critical facts (risks,
exceptions, contradictions) are exported alongside the report.`,
		Version:      version,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVar(
		&opts.cfgFile, "config", "", "config file (default: $DOCPRESS_CONFIG)",
	)
	cmd.PersistentFlags().StringVarP(
		&opts.format, "format", "f", string(formatYAML), "output format: yaml or json",
	)
	cmd.PersistentFlags().BoolVarP(
		&opts.verbose, "verbose", "v", false, "log pipeline events to stderr",
	)

	// Check output format before any command runs
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		_, err := parseFormat(opts.format)
		return err
	}

	cmd.AddCommand(
		newCompressCmd(opts),
		newWatchCmd(opts),
		newServeCmd(opts),
		newValidateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *options) loadConfig() (config.Config, error) {
	return config.Load(o.cfgFile)
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *options) print(w io.Writer, data any) error {
	f, err := parseFormat(o.format)
	if err != nil {
		return err
	}
	return printTo(w, f, data)
}
