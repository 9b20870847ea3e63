package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/output"
	"github.com/telhawk-systems/telhawk-combatlog/combatlog/migrations"
	"github.com/telhawk-systems/telhawk-combatlog/common/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the catalog schema",
	Long: `Apply or roll back the catalog migrations.

The database URL comes from --database-url or the database.postgres section
of config.yaml. The embedded migrations are used unless --source is given.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		return printVersion(cmd, m)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		steps, _ := cmd.Flags().GetInt("steps")
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		return printVersion(cmd, m)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrate(cmd)
		if err != nil {
			return err
		}
		defer m.Close()
		return printVersion(cmd, m)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	migrateCmd.PersistentFlags().String("database-url", "", "postgres URL (default from config.yaml)")
	migrateCmd.PersistentFlags().String("source", "", "migration source URL, e.g. file://combatlog/migrations")
	migrateDownCmd.Flags().Int("steps", 0, "number of migrations to roll back (default all)")
}

// databaseURL resolves --database-url over the service configuration.
func databaseURL(cmd *cobra.Command) (string, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return url, nil
	}
	cfg, err := config.Load("combatlog")
	if err != nil {
		return "", err
	}
	return cfg.Database.Postgres.URL(), nil
}

func newMigrate(cmd *cobra.Command) (*migrate.Migrate, error) {
	dbURL, err := databaseURL(cmd)
	if err != nil {
		return nil, err
	}

	var m *migrate.Migrate
	if sourceURL, _ := cmd.Flags().GetString("source"); sourceURL != "" {
		m, err = migrate.New(sourceURL, dbURL)
	} else {
		m, err = embeddedMigrate(dbURL)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

func embeddedMigrate(dbURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, dbURL)
}

// MigrationVersion is the schema state after a migrate command.
type MigrationVersion struct {
	Version uint `json:"version" yaml:"version"`
	Dirty   bool `json:"dirty" yaml:"dirty"`
}

func printVersion(cmd *cobra.Command, m *migrate.Migrate) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	slog.Debug("Schema version", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
	mv := MigrationVersion{Version: v, Dirty: dirty}
	return p.Print(mv, func() *output.Table {
		table := output.NewTable("VERSION", "DIRTY")
		table.AddRow(fmt.Sprint(mv.Version), fmt.Sprint(mv.Dirty))
		return table
	})
}

// runMigrations applies the embedded migrations, used by serve on startup.
func runMigrations(dbURL string) error {
	m, err := embeddedMigrate(dbURL)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
