package postgres

import (
	"errors"
	"os"
	"testing"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

// Set POSTGRES_TEST_URL to run, e.g.
// POSTGRES_TEST_URL="postgres://habitenforcer@localhost:5432/habitenforcer_test?sslmode=disable"
func TestStore_Integration(t *testing.T) {
	connStr := os.Getenv("POSTGRES_TEST_URL")
	if connStr == "" {
		t.Skip("POSTGRES_TEST_URL not set, skipping PostgreSQL integration test")
	}

	store := New(connStr)
	if err := store.Init(); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()
	t.Cleanup(func() {
		for _, table := range []string{"strikes", "reminder_log", "habit_completions", "habits"} {
			store.db.Exec("DELETE FROM " + table)
		}
	})

	date := "2025-03-10"
	habit := models.Habit{Title: "Integration habit", StartTime: "07:00:00", DeadlineTime: "08:00:00"}

	t.Run("Habits", func(t *testing.T) {
		if err := store.AddHabit(habit); err != nil {
			t.Fatalf("AddHabit: %v", err)
		}
		all, err := store.GetAllHabits()
		if err != nil || len(all) == 0 {
			t.Fatalf("GetAllHabits = %v, %v", all, err)
		}
		habit = all[len(all)-1]
		got, err := store.GetHabit(habit.ID)
		if err != nil || got.Title != habit.Title {
			t.Fatalf("GetHabit = %+v, %v", got, err)
		}
		if _, err := store.GetHabit("missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Completions", func(t *testing.T) {
		if _, err := store.CreateCompletion(habit.ID, date); err != nil {
			t.Fatalf("CreateCompletion: %v", err)
		}
		if _, err := store.CreateCompletion(habit.ID, date); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		rec, err := store.MarkCompleted(habit.ID, date, "proof.jpg")
		if err != nil || !rec.Completed || rec.CompletedAt == nil {
			t.Fatalf("MarkCompleted = %+v, %v", rec, err)
		}
		statuses, err := store.GetHabitsWithCompletions(date)
		if err != nil || len(statuses) == 0 || !statuses[0].Completed {
			t.Errorf("GetHabitsWithCompletions = %+v, %v", statuses, err)
		}
	})

	t.Run("Reminders", func(t *testing.T) {
		first, err := store.LogReminder(habit.ID, date, models.ReminderStart)
		if err != nil || !first {
			t.Fatalf("first LogReminder = %v, %v", first, err)
		}
		again, err := store.LogReminder(habit.ID, date, models.ReminderStart)
		if err != nil || again {
			t.Errorf("second LogReminder = %v, %v", again, err)
		}
	})

	t.Run("Strikes", func(t *testing.T) {
		strike := models.StrikeEntry{HabitID: habit.ID, Date: date, Reason: models.StrikeMissedDeadline}
		if err := store.AddStrike(strike); err != nil {
			t.Fatalf("AddStrike: %v", err)
		}
		if err := store.AddStrike(strike); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		n, err := store.CountStrikesForDate(date)
		if err != nil || n != 1 {
			t.Errorf("CountStrikesForDate = %d, %v", n, err)
		}
		list, err := store.ListStrikes(storage.StrikeFilter{HabitID: habit.ID, Since: "2025-03-01"})
		if err != nil || len(list) != 1 {
			t.Errorf("ListStrikes = %d, %v", len(list), err)
		}
	})

	t.Run("Introspection", func(t *testing.T) {
		schema, err := store.DescribeSchema()
		if err != nil || len(schema.Tables) != len(storage.SchemaTables) {
			t.Fatalf("DescribeSchema = %+v, %v", schema, err)
		}
		res, err := store.QueryReadOnly("SELECT title FROM habits")
		if err != nil || res.Count == 0 {
			t.Errorf("QueryReadOnly = %+v, %v", res, err)
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		if err := store.DeleteHabit(habit.ID); err != nil {
			t.Fatal(err)
		}
		recs, _ := store.GetCompletionsForDate(date)
		if len(recs) != 0 {
			t.Errorf("expected completions to cascade, got %d", len(recs))
		}
		n, _ := store.CountStrikesForDate(date)
		if n != 1 {
			t.Errorf("strikes should survive habit deletion, got %d", n)
		}
	})
}
