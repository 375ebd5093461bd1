package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docpress/internal/report"
)

type validation struct {
	File  string `json:"file" yaml:"file"`
	Valid bool   `json:"valid" yaml:"valid"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate REPORT...",
		Short: "Check report files against the report schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]validation, 0, len(args))
			invalid := 0
			for _, path := range args {
				v := validation{File: path, Valid: true}
				b, err := os.ReadFile(path)
				if err == nil {
					err = report.Validate(b)
				}
				if err != nil {
					v.Valid = false
					v.Error = err.Error()
					invalid++
				}
				results = append(results, v)
			}
			if err := opts.print(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d reports invalid", invalid, len(args))
			}
			return nil
		},
	}
}
