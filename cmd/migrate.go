package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xicom-labs/presales-bot/config"
	srv "github.com/xicom-labs/presales-bot/internal/server"
)

func migrateCMD() *cobra.Command {
	var cfgPath string
	var dir string
	var direction string
	var steps int

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Apply lead archive migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if !cfg.Postgres.Enabled() {
				return fmt.Errorf("postgres not configured")
			}
			dsn, err := cfg.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(dir, dsn, direction, steps)
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	migrate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file")

	return migrate
}
