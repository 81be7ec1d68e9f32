package strikes

import (
	"path/filepath"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitenforcer/internal/cli"
	"github.com/julianstephens/habitenforcer/internal/config"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage/sqlite"
)

func setupTestDB(t *testing.T) (*cli.Context, *sqlite.Store) {
	t.Helper()
	gokeyring.MockInit()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := sqlite.NewStore(dbPath)
	if err := store.Init(); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	cfg := &config.Config{
		DB:                 dbPath,
		Timezone:           "UTC",
		GraceMinutes:       10,
		StrikeTwoAmountUSD: 10,
		CheckInterval:      10 * time.Second,
		CleanupAt:          "23:59",
		SessionTimeout:     30 * time.Minute,
	}
	return &cli.Context{Config: cfg, Store: store}, store
}

func TestStrikesCmd(t *testing.T) {
	ctx, store := setupTestDB(t)
	if err := store.AddHabit(models.Habit{ID: "run", Title: "Run"}); err != nil {
		t.Fatal(err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if err := store.AddStrike(models.StrikeEntry{HabitID: "run", Date: today, Reason: models.StrikeMissedDeadline}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cmd     StrikesCmd
		wantErr bool
	}{
		{name: "default window", cmd: StrikesCmd{Days: 7}},
		{name: "all time", cmd: StrikesCmd{}},
		{name: "by habit", cmd: StrikesCmd{Days: 7, Habit: "run"}},
		{name: "unknown habit", cmd: StrikesCmd{Habit: "swim"}, wantErr: true},
		{name: "negative days", cmd: StrikesCmd{Days: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
