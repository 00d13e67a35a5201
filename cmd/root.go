/*
Copyright © 2026 Cristian Oliveira <license@cristianoliveira.dev>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cristianoliveira/maildirwatch/internal/config"
	mwerrors "github.com/cristianoliveira/maildirwatch/internal/errors"
	"github.com/cristianoliveira/maildirwatch/internal/logging"
	"github.com/cristianoliveira/maildirwatch/internal/version"
)

// skipSetup marks commands that run without configuration or logging.
const skipSetup = "skip-setup"

type rootOptions struct {
	configPath string
	debug      bool
	quiet      bool
	notifier   string
}

// NewRootCmd creates the maildirwatch command tree. Without a subcommand it watches.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "maildirwatch",
		Short: "Get notified when new mail arrives in a Maildir tree.",
		Long: `Get notified when new mail arrives in a Maildir tree.

Every maildir under the configured root is watched. A burst of deliveries to
one maildir produces a single notification once the maildir has been quiet
for the debounce period.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return opts.setup(cmd)
		},
		RunE: runWatch,
	}
	rootCmd.Version = version.String()
	rootCmd.CompletionOptions.HiddenDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/maildirwatch/config.toml)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "log debug messages")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "log errors only")
	flags.StringVar(&opts.notifier, "notifier", "", "notification backend: dbus, tmux or log")

	rootCmd.AddCommand(NewWatchCmd(), NewScanCmd(), NewHistoryCmd(), NewVersionCmd())
	rootCmd.SetHelpCommand(newHelpCmd())
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		PrintHelp(cmd.Root(), cmd.OutOrStdout())
	})
	return rootCmd
}

// RootCmd is the command run by main.
var RootCmd = NewRootCmd()

// Execute runs RootCmd and reports any error on stderr.
func Execute() error {
	err := RootCmd.ExecuteContext(context.Background())
	if err != nil {
		reportError(os.Stderr, err)
	}
	if shutdownErr := logging.ShutdownGlobal(); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}

// reportError prints err. Startup failures also say that nothing was started.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "maildirwatch: %v\n", err)
	if mwerrors.IsFatal(err) {
		fmt.Fprintln(w, "maildirwatch: not started, fix the configuration or the maildir root and run again")
	}
}

// setup loads configuration, applies flag overrides and installs the global logger.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if err := config.Load(o.configPath); err != nil {
		return err
	}
	if o.debug {
		config.Set("debug", "true")
	}
	if o.quiet {
		config.Set("quiet", "true")
	}
	if o.notifier != "" {
		config.Set("notifier", o.notifier)
	}

	cfg := logging.DefaultConfig()
	cfg.Level = config.Get("logging_level", "info")
	switch {
	case config.GetBool("debug", false):
		cfg.Level = "debug"
	case config.GetBool("quiet", false):
		cfg.Level = "error"
	}
	cfg.Console = cmd.ErrOrStderr()
	cfg.FileEnabled = config.GetBool("logging_enabled", false)
	cfg.StateDir = config.Get("state_dir", "")
	cfg.MaxFiles = config.GetInt("logging_max_files", 10)
	cfg.Command = "maildirwatch"
	logger, err := logging.Init(cfg)
	if err != nil {
		return err
	}
	if prev := logging.SetGlobal(logger); prev != nil {
		_ = prev.Shutdown()
	}
	if path := config.Path(); path != "" {
		logger.Debug("configuration loaded", "path", path)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
