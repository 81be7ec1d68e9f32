package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/habitenforcer/internal/backup"
	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/config"
	"github.com/julianstephens/habitenforcer/internal/keyring"
	"github.com/julianstephens/habitenforcer/internal/logger"
)

type DoctorCmd struct{}

type check struct {
	name string
	// needsDB checks are skipped when the database could not be loaded.
	needsDB bool
	// warn checks report problems without failing the run.
	warn bool
	run  func(ctx *cli.Context) error
}

var checks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "Habit integrity", needsDB: true, run: checkHabitsIntegrity},
	{name: "Clock/timezone", run: checkClockTimezone},
	{name: "Keyring", warn: true, run: checkKeyring},
	{name: "Backups present", warn: true, run: checkBackups},
	{name: "Log file", warn: true, run: checkLogFile},
	{name: "Integrations", warn: true, run: checkIntegrations},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true
	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
		dbReachable = false
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warn:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if _, err := ctx.Store.GetAllHabits(); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func migrator(ctx *cli.Context) (Migrator, error) {
	m, ok := ctx.Store.(Migrator)
	if !ok {
		return nil, fmt.Errorf("storage backend does not report migrations")
	}
	return m, nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	m, err := migrator(ctx)
	if err != nil {
		return err
	}
	status, err := m.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if status.Current > status.Latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", status.Current, status.Latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	m, err := migrator(ctx)
	if err != nil {
		return err
	}
	status, err := m.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if status.Current < status.Latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d; run 'migrate'", status.Current, status.Latest)
	}
	return nil
}

func checkHabitsIntegrity(ctx *cli.Context) error {
	habits, err := ctx.Store.GetAllHabits()
	if err != nil {
		return fmt.Errorf("failed to get habits: %w", err)
	}
	var problems []string
	for _, h := range habits {
		if err := h.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("%s (%s): %v", h.Title, h.ID, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d invalid habit(s):\n   %s", len(problems), strings.Join(problems, "\n   "))
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if ctx.Config != nil && !clock.ValidateTimezone(ctx.Config.Timezone) {
		return fmt.Errorf("unknown timezone %q", ctx.Config.Timezone)
	}
	return nil
}

func checkKeyring(*cli.Context) error {
	if !keyring.IsAvailable() {
		return fmt.Errorf("OS keyring is not available; secrets must come from flags or environment")
	}
	return nil
}

func checkBackups(ctx *cli.Context) error {
	p, ok := sqlitePath(ctx)
	if !ok {
		return nil
	}
	list, err := backup.NewManager(p).List()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return fmt.Errorf("no backups found; run 'backup create'")
	}
	return nil
}

func checkLogFile(ctx *cli.Context) error {
	if ctx.Config == nil {
		return nil
	}
	dir, err := ctx.Config.ConfigDir()
	if err != nil {
		return err
	}
	path := logger.FilePath(dir)
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		return fmt.Errorf("no log directory yet at %s", filepath.Dir(path))
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("log file is not writable: %w", err)
	}
	return f.Close()
}

func checkIntegrations(ctx *cli.Context) error {
	if ctx.Config == nil {
		return nil
	}
	cfg := *ctx.Config
	cfg.ResolveSecrets()
	missing := missingIntegrations(cfg)
	if len(missing) > 0 {
		return fmt.Errorf("not configured: %s", strings.Join(missing, ", "))
	}
	return nil
}

func missingIntegrations(cfg config.Config) []string {
	var missing []string
	if cfg.GeminiAPIKey == "" {
		missing = append(missing, "Gemini (chat and proof verification)")
	}
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		missing = append(missing, "Twilio (WhatsApp)")
	} else if cfg.WhatsAppRecipient == "" {
		missing = append(missing, "WhatsApp recipient (outbound reminders)")
	}
	if cfg.WalletPrivateKey == "" || cfg.PunishmentAddress == "" {
		missing = append(missing, "punishment wallet (strike-two transfer)")
	}
	return missing
}
