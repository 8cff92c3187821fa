package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/algfetch/config"
	"github.com/unkn0wn-root/algfetch/internal/bootstrap"
)

// Handler carries the library built from --config across one command run.
type Handler struct {
	configPath string
	app        *bootstrap.App
}

// NewRootCmd returns the root command with every subcommand registered.
func NewRootCmd() *cobra.Command {
	h := &Handler{}
	rootCmd := &cobra.Command{
		Use:   "algfetch",
		Short: "Algorithm provider registry and fetch tool",
		Long: `algfetch resolves algorithm names and property queries against the
configured providers and runs one-shot operations through the result.

Without --config a single built-in provider is used with the standard
legacy fallback and an in-process resolution cache.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&h.configPath, "config", "", "Path to a TOML config file")

	initListCommand(rootCmd, h)
	initDigestCommand(rootCmd, h)
	initKDFCommand(rootCmd, h)
	initRandCommand(rootCmd, h)
	initMatchCommand(rootCmd)
	return rootCmd
}

// withLibrary builds the library before fn and closes it afterwards, whether
// or not fn fails.
func (h *Handler) withLibrary(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := h.open(cmd); err != nil {
			return err
		}
		defer func() {
			if cerr := h.app.Close(cmd.Context()); err == nil {
				err = cerr
			}
			h.app = nil
		}()
		return fn(cmd, args)
	}
}

func (h *Handler) open(cmd *cobra.Command) error {
	settings := config.Default()
	if h.configPath != "" {
		s, err := config.Load(h.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		settings = s
	}
	app, err := bootstrap.Build(cmd.Context(), settings, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to build library: %w", err)
	}
	h.app = app
	return nil
}
