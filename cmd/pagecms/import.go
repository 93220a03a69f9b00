package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eringen/pagecms"
)

var importCmd = &cobra.Command{
	Use:   "import <site.yaml>",
	Short: "Import authors and pages from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pagecms.LoadConfig(configPath)
		if err != nil {
			return err
		}
		store, err := pagecms.NewStore(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := store.ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d authors and %d pages into %s\n", res.Authors, res.Pages, cfg.DatabasePath)
		return nil
	},
}
