package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/kostore/internal/app"
	"github.com/felixgeelhaar/kostore/internal/config"
)

var (
	// Global flags
	cfgFile     string
	installRoot string
	verbose     bool
	plain       bool
)

var rootCmd = &cobra.Command{
	Use:   "kostore",
	Short: "Install KOReader plugins and patches from GitHub",
	Long: `kostore downloads KOReader plugins and user patches from GitHub and
installs them into a KOReader data directory.

Plugins are unpacked, located by their main.lua and _meta.lua files, and
installed as plugins/{name}.koplugin, replacing any previous copy.
Patch repositories have their .lua files copied into patches/.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printErrorTo(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/kostore/kostore.yaml)")
	rootCmd.PersistentFlags().StringVar(&installRoot, "install-root", "", "KOReader data directory (overrides install_root)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "print progress as plain lines instead of the interactive view")

	_ = rootCmd.RegisterFlagCompletionFunc("config", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "yml", "toml"}, cobra.ShellCompDirectiveFilterFileExt
	})
	_ = rootCmd.MarkPersistentFlagDirname("install-root")

	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if installRoot != "" {
		cfg.InstallRoot = installRoot
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newApp builds the application with a console logger on stderr.
func newApp(ctx context.Context, cmd *cobra.Command) (*app.Kostore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg, cmd.ErrOrStderr(), verbose)
	return app.New(ctx, cfg, app.WithLogger(logger))
}

// formatError returns a user-friendly error message.
// With verbose=false: shows only the user message and suggestion.
// With verbose=true: also shows the underlying technical error.
func formatError(err error) string {
	var userErr *config.UserError
	if errors.As(err, &userErr) {
		msg := userErr.Message
		if userErr.Context != "" {
			msg += fmt.Sprintf(" (at %s)", userErr.Context)
		}
		if userErr.Suggestion != "" {
			msg += fmt.Sprintf("\n\nSuggestion: %s", userErr.Suggestion)
		}
		if verbose && userErr.Underlying != nil {
			msg += fmt.Sprintf("\n\nTechnical details: %v", userErr.Underlying)
		}
		return msg
	}
	return err.Error()
}

// printErrorTo prints an error message to the given writer.
func printErrorTo(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %s\n", formatError(err))
}
