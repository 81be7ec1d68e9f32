package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/julianstephens/habitenforcer/internal/app"
	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/cli/habits"
	"github.com/julianstephens/habitenforcer/internal/cli/strikes"
	"github.com/julianstephens/habitenforcer/internal/cli/system"
	"github.com/julianstephens/habitenforcer/internal/config"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

var CLI struct {
	config.Config `embed:""`

	Version    kong.VersionFlag `help:"Print version and exit."`
	ConfigFile kong.ConfigFlag  `name:"config-file" help:"Additional YAML configuration file."`

	Init    system.InitCmd     `cmd:"" help:"Initialize storage."`
	Migrate system.MigrateCmd  `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd   `cmd:"" help:"Run health checks and diagnostics."`
	Serve   system.ServeCmd    `cmd:"" help:"Run the HTTP API, WhatsApp webhook and background scheduler."`
	Check   system.CheckCmd    `cmd:"" help:"Run one reminder and missed-deadline pass."`
	Cleanup system.CleanupCmd  `cmd:"" help:"Delete expired punishment habits."`
	Chat    system.ChatCmd     `cmd:"" help:"Talk to the accountability coach." default:"withargs"`
	MCP     system.MCPCmd      `cmd:"" name:"mcp" help:"Serve the habit tools over MCP on stdio."`
	Keyring system.KeyringCmd  `cmd:"" help:"Manage secrets in the OS keyring."`
	Backup  system.BackupCmd   `cmd:"" help:"Create, list and restore database snapshots."`
	Habit   habits.HabitCmd    `cmd:"" help:"Manage habits."`
	Strikes strikes.StrikesCmd `cmd:"" help:"Show strike history."`
}

// Commands that manage their own storage lifecycle.
var noLoad = map[string]bool{
	"init":    true,
	"keyring": true,
	"doctor":  true,
	"backup":  true,
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit accountability with proof, strikes and real consequences."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars(config.Vars()),
		kong.Configuration(config.YAML, constants.DefaultConfigFile),
	)
	command := strings.Fields(ctx.Command())[0]

	cfg := CLI.Config
	logDir, err := cfg.ConfigDir()
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: logDir, Console: command == "serve", JSON: cfg.LogJSON}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}

	store, err := app.OpenStore(cfg.DB)
	if err != nil {
		errors.Fatal(err)
	}
	defer store.Close()

	if !noLoad[command] {
		if err := store.Load(); err != nil {
			errors.Fatal(err)
		}
	}

	appCtx := &cli.Context{
		Context: context.Background(),
		Config:  &cfg,
		Store:   store,
	}
	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		errors.Fatal(err)
	}
}
