package main

import (
	"go_domainlink/internal/config"
	"go_domainlink/internal/db"

	"github.com/spf13/cobra"
)

func newMigrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate(db.GetDB())
		},
	}
}
