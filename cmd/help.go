/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/maildirwatch/internal/version"
)

// commandOrder is the order commands are listed in the help text.
var commandOrder = []string{
	"watch",
	"scan",
	"history",
	"help",
	"version",
}

func newHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "help",
		Short:       "Show this help message",
		Long:        `Show this help message.`,
		Annotations: map[string]string{skipSetup: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			PrintHelp(cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// PrintHelp writes the help text for root to w.
func PrintHelp(root *cobra.Command, w io.Writer) {
	var cmdLines []string
	for _, name := range commandOrder {
		var found *cobra.Command
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = c
				break
			}
		}
		if found == nil {
			continue
		}
		cmdLines = append(cmdLines, fmt.Sprintf("    %-16s %s", found.Use, found.Short))
	}

	fmt.Fprintf(w, `maildirwatch v%s

%s

USAGE:
    maildirwatch [COMMAND] [OPTIONS]

COMMANDS:
%s

OPTIONS:
    -c, --config <path>     Configuration file
    -d, --debug             Log debug messages
    -q, --quiet             Log errors only
        --notifier <name>   Notification backend: dbus, tmux or log
    -h, --help              Show help message
    -v, --version           Show version
`, version.String(), root.Short, strings.Join(cmdLines, "\n"))
}
