package strikes

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/ledger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/notify"
	"github.com/julianstephens/habitenforcer/internal/storage/sqlite"
)

const today = "2025-03-10"

func setupStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func at(hh, mm int) *clock.Fixed {
	return clock.NewFixed(time.Date(2025, 3, 10, hh, mm, 0, 0, time.UTC))
}

type fakeTransfer struct {
	calls  int
	result ledger.TransferResult
	panic  bool
}

func (f *fakeTransfer) Transfer(_ context.Context, usd float64) ledger.TransferResult {
	f.calls++
	if f.panic {
		panic("rpc exploded")
	}
	r := f.result
	if r.Success {
		r.AmountUSD = usd
	}
	return r
}

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) sink() notify.Sink {
	return notify.Func(func(_ context.Context, msg string) bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.msgs = append(r.msgs, msg)
		return true
	})
}

func addHabit(t *testing.T, store *sqlite.Store, id, title, deadline string) {
	t.Helper()
	if err := store.AddHabit(models.Habit{ID: id, Title: title, DeadlineTime: deadline}); err != nil {
		t.Fatalf("AddHabit(%s): %v", id, err)
	}
}

func TestAssignPunishment(t *testing.T) {
	success := ledger.TransferResult{Success: true, TxHash: "0xabc", ExplorerLink: "https://basescan.org/tx/0xabc"}
	tests := []struct {
		n    int
		want models.OutcomeKind
	}{
		{1, models.OutcomeHabitInjected},
		{2, models.OutcomeValueTransferred},
		{3, models.OutcomeDeferred},
		{4, models.OutcomeDeferred},
		{5, models.OutcomeDeferred},
	}
	for _, tt := range tests {
		store := setupStore(t)
		e := NewEngine(store, at(12, 0), Options{Transfer: &fakeTransfer{result: success}})
		got, err := e.AssignPunishment(context.Background(), tt.n)
		if err != nil {
			t.Fatalf("AssignPunishment(%d): %v", tt.n, err)
		}
		if got.Kind() != tt.want {
			t.Errorf("AssignPunishment(%d) = %s, want %s", tt.n, got.Kind(), tt.want)
		}
		if d, ok := got.(models.Deferred); ok && d.StrikeCount != tt.n {
			t.Errorf("Deferred count = %d, want %d", d.StrikeCount, tt.n)
		}
	}
}

func TestAssignPunishmentInjectsHabit(t *testing.T) {
	store := setupStore(t)
	e := NewEngine(store, at(14, 37), Options{})

	out, err := e.AssignPunishment(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	injected := out.(models.HabitInjected)
	h, err := store.GetHabit(injected.HabitID)
	if err != nil {
		t.Fatalf("injected habit not stored: %v", err)
	}
	if h.Title != constants.PunishmentHabitTitle || !h.IsPunishment || h.ExpiresOn != today {
		t.Errorf("unexpected punishment habit %+v", h)
	}
	if h.StartTime != "14:37:00" || h.DeadlineTime != "23:59:00" {
		t.Errorf("times = %s-%s, want 14:37:00-23:59:00", h.StartTime, h.DeadlineTime)
	}

	// Not idempotent by itself.
	if _, err := e.AssignPunishment(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	all, _ := store.GetAllHabits()
	if len(all) != 2 {
		t.Errorf("expected two punishment habits, got %d", len(all))
	}
}

func TestValueTransferFailureContained(t *testing.T) {
	tests := []struct {
		name     string
		transfer Transferrer
		want     string
	}{
		{
			name: "insufficient balance",
			transfer: &fakeTransfer{result: ledger.TransferResult{
				Err: errors.Wrap(errors.KindExternalService, ledger.ErrInsufficientFunds, "have 3.00 USDC, need 10.00 USDC"),
			}},
			want: "have 3.00 USDC, need 10.00 USDC",
		},
		{name: "panic", transfer: &fakeTransfer{panic: true}, want: "rpc exploded"},
		{name: "not configured", transfer: nil, want: transferNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			addHabit(t, store, "a", "Run", "08:00:00")
			addHabit(t, store, "b", "Read", "09:00:00")
			e := NewEngine(store, at(10, 0), Options{Transfer: tt.transfer})

			if _, err := e.LogStrike(context.Background(), "a", models.StrikeManual, ""); err != nil {
				t.Fatal(err)
			}
			res, err := e.LogStrike(context.Background(), "b", models.StrikeManual, "")
			if err != nil {
				t.Fatalf("LogStrike must not fail on transfer errors: %v", err)
			}
			failed, ok := res.Outcome.(models.ValueTransferFailed)
			if !ok {
				t.Fatalf("outcome = %T, want ValueTransferFailed", res.Outcome)
			}
			if !strings.Contains(failed.Reason, tt.want) {
				t.Errorf("reason %q does not contain %q", failed.Reason, tt.want)
			}
		})
	}
}

func TestLogStrikeCountsAcrossHabits(t *testing.T) {
	store := setupStore(t)
	addHabit(t, store, "a", "Run", "08:00:00")
	addHabit(t, store, "b", "Read", "09:00:00")
	xfer := &fakeTransfer{result: ledger.TransferResult{Success: true, TxHash: "0x1234567890abcdef"}}
	e := NewEngine(store, at(10, 0), Options{Transfer: xfer, AmountUSD: 25})

	first, err := e.LogStrike(context.Background(), "a", models.StrikeManual, "first")
	if err != nil {
		t.Fatal(err)
	}
	if first.Count != 1 || first.Outcome.Kind() != models.OutcomeHabitInjected {
		t.Errorf("first strike = %d/%s", first.Count, first.Outcome.Kind())
	}
	second, err := e.LogStrike(context.Background(), "b", models.StrikeManual, "second")
	if err != nil {
		t.Fatal(err)
	}
	sent, ok := second.Outcome.(models.ValueTransferred)
	if second.Count != 2 || !ok {
		t.Fatalf("second strike = %d/%T", second.Count, second.Outcome)
	}
	if sent.AmountUSD != 25 || xfer.calls != 1 {
		t.Errorf("transfer amount %v after %d calls", sent.AmountUSD, xfer.calls)
	}
	if second.Entry.Date != today || second.Entry.Notes != "second" {
		t.Errorf("unexpected entry %+v", second.Entry)
	}
}

func TestCheckMissedDeadlines(t *testing.T) {
	store := setupStore(t)
	c := at(18, 5)
	rec := &recorder{}
	e := NewEngine(store, c, Options{Sink: rec.sink()})
	addHabit(t, store, "pushups", "Pushups", "18:00:00")
	if _, err := store.LogReminder("pushups", today, models.ReminderDeadline); err != nil {
		t.Fatal(err)
	}

	results, err := e.CheckMissedDeadlines(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one strike, got %d", len(results))
	}
	if results[0].Count != 1 || results[0].Outcome.Kind() != models.OutcomeHabitInjected {
		t.Errorf("unexpected result %+v", results[0])
	}
	if results[0].Entry.Notes != "Deadline 18:00:00 missed on 2025-03-10" {
		t.Errorf("notes = %q", results[0].Entry.Notes)
	}
	if len(rec.msgs) != 1 || !strings.Contains(rec.msgs[0], "STRIKE LOGGED: Pushups") {
		t.Errorf("unexpected notifications %q", rec.msgs)
	}

	habits, _ := store.GetAllHabits()
	var punished bool
	for _, h := range habits {
		if h.IsPunishment && h.ExpiresOn == today {
			punished = true
		}
	}
	if !punished {
		t.Error("expected a punishment habit expiring today")
	}

	// A second sweep on the same day does nothing.
	c.Advance(time.Minute)
	results, err = e.CheckMissedDeadlines(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no second strike, got %d", len(results))
	}
	n, _ := store.CountStrikesForDate(today)
	if n != 1 {
		t.Errorf("strike count = %d, want 1", n)
	}
}

func TestCheckMissedDeadlinesWithoutWarning(t *testing.T) {
	store := setupStore(t)
	e := NewEngine(store, at(23, 50), Options{})
	addHabit(t, store, "late", "Late", "06:00:00")

	results, err := e.CheckMissedDeadlines(context.Background())
	if err != nil || len(results) != 0 {
		t.Fatalf("expected no strikes without a deadline reminder, got %v, %v", results, err)
	}
}

func TestSummary(t *testing.T) {
	store := setupStore(t)
	addHabit(t, store, "a", "Run", "08:00:00")
	addHabit(t, store, "b", "Read", "09:00:00")
	for _, s := range []models.StrikeEntry{
		{HabitID: "a", Date: "2025-03-01", Reason: models.StrikeManual, CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		{HabitID: "a", Date: "2025-03-09", Reason: models.StrikeMissedDeadline, CreatedAt: time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC)},
		{HabitID: "b", Date: "2025-03-10", Reason: models.StrikeMissedDeadline, CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)},
		{HabitID: "gone", Date: "2025-03-10", Reason: models.StrikeManual, CreatedAt: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)},
	} {
		if err := store.AddStrike(s); err != nil {
			t.Fatal(err)
		}
	}
	e := NewEngine(store, at(12, 0), Options{})

	all, err := e.Summary(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if all.Total != 4 || all.ByHabit[0].HabitID != "a" || all.ByHabit[0].Count != 2 {
		t.Errorf("unexpected all-time summary %+v", all)
	}
	if all.Strikes[0].HabitID != "gone" {
		t.Errorf("strikes not newest first: %+v", all.Strikes)
	}

	week, err := e.Summary(Filter{Days: 7})
	if err != nil {
		t.Fatal(err)
	}
	if week.Total != 3 {
		t.Errorf("7-day total = %d, want 3", week.Total)
	}
	var deleted bool
	for _, hc := range week.ByHabit {
		if hc.HabitID == "gone" && hc.Title == deletedHabitTitle {
			deleted = true
		}
	}
	if !deleted {
		t.Errorf("missing deleted-habit title in %+v", week.ByHabit)
	}

	one, err := e.Summary(Filter{HabitID: "b", Days: 1})
	if err != nil || one.Total != 1 {
		t.Errorf("habit summary = %+v, %v", one, err)
	}
}

func TestSince(t *testing.T) {
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want string
	}{
		{days: 1, want: "2025-03-10"},
		{days: 7, want: "2025-03-04"},
		{days: 10, want: "2025-03-01"},
		{days: 11, want: "2025-02-28"},
	}
	for _, tt := range tests {
		if got := Since(now, tt.days); got != tt.want {
			t.Errorf("Since(%d) = %s, want %s", tt.days, got, tt.want)
		}
	}
}
