/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cristianoliveira/maildirwatch/internal/config"
	"github.com/cristianoliveira/maildirwatch/internal/format"
	"github.com/cristianoliveira/maildirwatch/internal/scanner"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List maildirs and whether they would be watched",
		Long: `List maildirs and whether they would be watched.

Scans the configured root once, applying the ignore and whitelist patterns,
and prints each maildir as WATCH or IGNORE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := config.Root()
			if err != nil {
				return err
			}
			s := scanner.New(root, scanner.Options{
				Patterns: config.Patterns(),
				Nested:   config.GetBool("nested_maildirs", false),
			})
			res, err := s.Scan()
			if err != nil {
				return err
			}
			format.ScanResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}
