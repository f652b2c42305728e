package main

import (
	"github.com/spf13/cobra"

	"github.com/hanbitlabs/rankwatch/config"
	srv "github.com/hanbitlabs/rankwatch/internal/server"
)

func migrateCMD() *cobra.Command {
	var dir string
	var direction string
	var steps int
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				// Fall back to DATABASE_URL / POSTGRES_* env inside Migrate.
				dsn = ""
			}
			return srv.Migrate(dir, dsn, direction, steps)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return cmd
}
