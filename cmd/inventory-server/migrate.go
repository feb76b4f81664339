package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, logger, err := flags.openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", c.Config().Database.Driver)
			return nil
		},
	}
}
