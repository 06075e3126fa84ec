package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/postgres"
	"github.com/NooberThanYall/fixo-crm/internal/postgres/migrations"
	"github.com/NooberThanYall/fixo-crm/internal/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Create or upgrade the schema of the configured store.

PostgreSQL applies the embedded migrations in order; SQLite creates any
missing tables. Reads --store-driver and the matching DSN or path from
flags, environment or the config file.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := bootstrap.StoreConfig{
		Driver:      viper.GetString("store_driver"),
		PostgresDSN: viper.GetString("postgres_dsn"),
		SQLitePath:  viper.GetString("sqlite_path"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out := cmd.OutOrStdout()
	switch cfg.Driver {
	case bootstrap.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := migrations.Apply(ctx, pool, func(name string) { fmt.Fprintf(out, "applied %s\n", name) }); err != nil {
			return err
		}
	case bootstrap.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		_ = db.Close()
		fmt.Fprintf(out, "schema ensured in %s\n", cfg.SQLitePath)
	default:
		return fmt.Errorf("store driver %q has no schema to migrate", cfg.Driver)
	}

	fmt.Fprintln(out, "migrations complete")
	return nil
}
