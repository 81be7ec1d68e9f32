package system

import (
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/backup"
	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/constants"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Snapshot the SQLite database."`
	List    BackupListCmd    `cmd:"" default:"1" help:"List database snapshots."`
	Restore BackupRestoreCmd `cmd:"" help:"Replace the database with a snapshot."`
}

type BackupCreateCmd struct{}

type BackupListCmd struct{}

type BackupRestoreCmd struct {
	Name string `arg:"" help:"Snapshot file name or absolute path."`
	Yes  bool   `short:"y" help:"Skip the confirmation prompt."`
}

func backupManager(ctx *cli.Context) (*backup.Manager, error) {
	p, ok := sqlitePath(ctx)
	if !ok {
		return nil, fmt.Errorf("backups are only supported for SQLite databases")
	}
	return backup.NewManager(p), nil
}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := mgr.Create()
	if err != nil {
		return err
	}
	fmt.Printf("✓ Backup created: %s\n", path)
	return nil
}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	list, err := mgr.List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Printf("No backups in %s\n", mgr.Dir())
		return nil
	}
	for _, b := range list {
		fmt.Printf("%s  %s  %d KiB\n", b.Timestamp.Format(constants.DateFormat+" "+constants.TimeFormat), b.Path, b.Size/1024)
	}
	return nil
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path := mgr.Resolve(c.Name)

	if !c.Yes {
		ok, err := confirm(fmt.Sprintf("Replace %s with %s?", ctx.Store.GetConfigPath(), path))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("restore aborted")
		}
	}

	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	previous, err := mgr.Restore(path)
	if err != nil {
		return err
	}
	if previous != "" {
		fmt.Printf("Previous database saved to: %s\n", previous)
	}
	fmt.Printf("✓ Restored database from: %s\n", path)
	return nil
}
