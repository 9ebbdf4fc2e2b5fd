package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global flag values.
var (
	flagConfig string
)

var (
	// cfg is the merged configuration, loaded by PersistentPreRunE.
	cfg *viper.Viper

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:          "tripahead",
	Short:        "TripAhead trip planner",
	SilenceUsage: true,
	Long: `TripAhead keeps trips, their timeline days and activities in a
relational store and serves them over a REST API. The plan commands drive a
planning session against that API, or directly against the database with
--local.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig(flagConfig, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = v

		l, err := newLogger(cfg.GetString(cfgKeyLogLevel))
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: ./tripahead.yaml or ~/.config/tripahead/tripahead.yaml)")
	pf.String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	pf.String("db-driver", defaultDBDriver, "database driver (sqlite or postgres)")
	pf.String("db-dsn", defaultDBDSN, "database file (sqlite) or connection string (postgres)")
	pf.Int("max-days", 0, "maximum days per trip (default 14)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
}

// newLogger builds a production zap logger at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}
