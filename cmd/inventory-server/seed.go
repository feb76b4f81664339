package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-inventory-cache/catalog"
)

func newSeedCmd(flags *rootFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import cars from a JSON file",
		Long: `Import every car in a JSON array in one transaction. Nothing is
written when any car fails validation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cars, err := readCars(file)
			if err != nil {
				return err
			}

			c, logger, err := flags.openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			defer c.Close()

			n, err := c.Service().Import(cmd.Context(), cars)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d cars\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file holding an array of cars")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readCars(path string) ([]*catalog.Car, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var cars []*catalog.Car
	if err := json.Unmarshal(data, &cars); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return cars, nil
}
