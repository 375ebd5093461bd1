package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "docpress %s\n", version)
			fmt.Fprintf(w, "  Go:     %s\n", runtime.Version())
			fmt.Fprintf(w, "  Commit: %s\n", commit)
			fmt.Fprintf(w, "  Date:   %s\n", date)
		},
	}
}
