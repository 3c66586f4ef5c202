package main

import (
	"fmt"

	"templateshop/internal/config"
	"templateshop/internal/infra/db"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Runs the same AutoMigrate as the API server on startup.

Connection settings come from the server's variables (DB_DRIVER, DATABASE_URL,
POSTGRES_*, SQLITE_PATH); --db-driver, --database-url and --sqlite-path override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg, err := databaseConfig(v)
			if err != nil {
				return err
			}

			gdb, err := db.Connect(dbCfg)
			if err != nil {
				return err
			}
			if sqlDB, err := gdb.DB(); err == nil {
				defer func() { _ = sqlDB.Close() }()
			}

			if err := db.Migrate(gdb); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			stderrLogger().Info("schema migrated", "driver", dbCfg.Driver)
			return nil
		},
	}

	cmd.Flags().String("db-driver", "", "postgres or sqlite")
	cmd.Flags().String("database-url", "", "postgres connection string")
	cmd.Flags().String("sqlite-path", "", "sqlite database file")
	return cmd
}

func databaseConfig(v *viper.Viper) (config.Database, error) {
	var d config.Database
	if err := env.Parse(&d); err != nil {
		return config.Database{}, fmt.Errorf("parse env: %w", err)
	}
	if s := v.GetString("db-driver"); s != "" {
		d.Driver = s
	}
	if s := v.GetString("database-url"); s != "" {
		d.URL = s
	}
	if s := v.GetString("sqlite-path"); s != "" {
		d.SQLitePath = s
	}

	switch d.Driver {
	case "postgres", "sqlite":
		return d, nil
	default:
		return config.Database{}, fmt.Errorf("unsupported db driver %q", d.Driver)
	}
}
