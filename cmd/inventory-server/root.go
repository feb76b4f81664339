package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-inventory-cache/pkg/config"
	"github.com/goliatone/go-inventory-cache/pkg/di"
)

// rootFlags holds the flags shared by every command.
type rootFlags struct {
	config string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "inventory-server",
		Short: "Car inventory API with a response cache",
		Long: `inventory-server serves the car inventory over HTTP.

Listings, details and reference data are cached in process and purged
whenever a write commits. Configuration comes from a YAML file and
INVENTORY_* environment variables.`,
		Version:       versionString(),
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "path to the YAML configuration file (default $"+config.EnvConfig+")")

	cmd.AddCommand(
		newServeCmd(flags),
		newMigrateCmd(flags),
		newSeedCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration and builds the process logger.
func (f *rootFlags) loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// openContainer loads the configuration and builds a migrated container.
// The caller closes the container and syncs the logger.
func (f *rootFlags) openContainer(ctx context.Context) (*di.Container, *zap.Logger, error) {
	cfg, logger, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	c, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	if err := c.Migrate(ctx); err != nil {
		_ = c.Close()
		_ = logger.Sync()
		return nil, nil, err
	}
	return c, logger, nil
}
