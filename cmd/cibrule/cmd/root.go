package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solatis/cibrule/internal/core/config"
	"github.com/solatis/cibrule/internal/core/logging"
)

// Version is the cibrule release version.
const Version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "cibrule",
	Short: "Pacemaker CIB rule compiler",
	Long: `cibrule compiles textual rule expressions into Pacemaker CIB <rule> elements,
exports stored rules back to text, and serves the compiler over gRPC.`,
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("cib", "", "CIB XML file (default cib.xml)")
	rootCmd.PersistentFlags().String("db-url", "", "journal database URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup loads configuration for cmd and builds its logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
