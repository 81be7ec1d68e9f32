package system

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/habitenforcer/internal/backup"
	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/storage/postgres"
)

type InitCmd struct {
	Force bool `help:"Force reset by deleting the existing SQLite database before initialization."`
	Yes   bool `short:"y" help:"Skip the confirmation prompt for --force."`
}

// confirm is swapped in tests.
var confirm = func(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Continue").
			Negative("Cancel").
			Value(&ok),
	)).Run()
	return ok, err
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized %s storage at: %s\n", constants.AppName, displayPath(ctx.Store.GetConfigPath()))
	return nil
}

func (c *InitCmd) reset(ctx *cli.Context) error {
	dbPath := ctx.Store.GetConfigPath()
	if postgres.IsConnString(dbPath) {
		return fmt.Errorf("--force only applies to SQLite databases; drop the PostgreSQL schema manually")
	}
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to access existing database: %w", err)
	}

	if !c.Yes {
		ok, err := confirm(fmt.Sprintf("Delete %s and every habit, completion and strike in it?", dbPath))
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("init aborted")
		}
	}

	snap, err := backup.NewManager(dbPath).Create()
	if err != nil {
		return fmt.Errorf("failed to back up database before reset: %w", err)
	}
	fmt.Printf("Backed up existing database to: %s\n", snap)

	// Close first so SQLite releases its file lock.
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	if err := os.Remove(dbPath); err != nil {
		return fmt.Errorf("failed to delete existing database: %w", err)
	}
	fmt.Printf("Deleted existing database at: %s\n", dbPath)
	return nil
}

func displayPath(p string) string {
	if postgres.IsConnString(p) {
		return maskPassword(p)
	}
	return p
}
