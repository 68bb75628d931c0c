package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/Syracusa/ce-ef/pkg/config"
	"github.com/Syracusa/ce-ef/pkg/observability"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "avsync",
	Short: "avsync connects the air-vehicle map client to the network simulation backend.",
	Long: `avsync holds the framed stream connection to the network simulation backend, ` +
		`reports node distances, tracks the routing tables the backend announces and ` +
		`exposes them to the renderer over HTTP and WebSocket.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exit hooks registered with atexit run on every path out.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
}

// setup loads the configuration and installs the global logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	atexit.Register(func() { _ = logger.Sync() })
	return cfg, nil
}
