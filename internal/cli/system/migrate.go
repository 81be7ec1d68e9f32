package system

import (
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/backup"
	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/migration"
	"github.com/julianstephens/habitenforcer/internal/storage/postgres"
)

// Migrator is implemented by both storage backends.
type Migrator interface {
	MigrationStatus() (migration.Status, error)
	Migrate(logFn func(string)) (int, error)
}

type MigrateCmd struct {
	Status bool `help:"Only report the schema version and pending migrations."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	m, ok := ctx.Store.(Migrator)
	if !ok {
		return fmt.Errorf("storage backend does not support migrations")
	}

	status, err := m.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	fmt.Printf("Schema version: %d (latest %d)\n", status.Current, status.Latest)
	if c.Status {
		for _, p := range status.Pending {
			fmt.Printf("  pending: %03d_%s\n", p.Version, p.Name)
		}
		return nil
	}
	if status.UpToDate() {
		fmt.Println("✓ Database is up to date")
		return nil
	}

	if p, ok := sqlitePath(ctx); ok {
		path, err := backup.NewManager(p).Create()
		if err != nil {
			return fmt.Errorf("failed to back up database before migrating: %w", err)
		}
		fmt.Printf("Backed up database to: %s\n", path)
	}

	applied, err := m.Migrate(func(msg string) { fmt.Println("  " + msg) })
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Printf("✓ Applied %s\n", cli.Plural(applied, "migration"))
	return nil
}

// sqlitePath reports the database file when the store is SQLite.
func sqlitePath(ctx *cli.Context) (string, bool) {
	p := ctx.Store.GetConfigPath()
	if p == "" || postgres.IsConnString(p) {
		return "", false
	}
	return p, true
}
