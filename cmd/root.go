// Package cmd implements CLI commands using cobra.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uozer7050/coopad/internal/config"
	logpkg "github.com/uozer7050/coopad/internal/log"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coopad",
	Short: "CooPad - Stream gamepad input to a remote host over UDP",
	Long: `CooPad streams physical controller input from a client machine to a
host machine over an unreliable network and reconstructs it as a virtual
controller the host's games can consume.

The host side is an adversarial-input-facing UDP server: fixed-size
binary packets, per-client and per-address rate limiting, replay and
duplicate defenses, automatic blocking, and a single-owner or co-op
slot model deciding which inbound stream drives which controller.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (built-in defaults when empty)")
}

// loadConfig loads the configured file, or the built-in defaults when no
// file was given, and initializes logging.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile == "" {
		cfg = config.Default()
	} else {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := logpkg.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}
