package main

import (
	"github.com/couchcryptid/lightning-data-service/internal/adapter/mysql"
	"github.com/spf13/cobra"
)

func newMigrateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the lightning table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDB(); err != nil {
				return err
			}

			db, err := mysql.Open(cmd.Context(), cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()

			return mysql.Migrate(db, logger)
		},
	}
}
