package scheduler

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/julianstephens/habitenforcer/internal/clock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTickOrderAndIsolation(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	s := New(c, time.Second)
	var order []string
	s.Every("reminders", func(context.Context) error { order = append(order, "reminders"); return stderrors.New("boom") })
	s.Every("strikes", func(context.Context) error { order = append(order, "strikes"); panic("bad") })
	s.Every("sessions", func(context.Context) error { order = append(order, "sessions"); return nil })

	s.Tick(context.Background())
	want := []string{"reminders", "strikes", "sessions"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestDailyRunsOncePerDate(t *testing.T) {
	c := clock.NewFixed(time.Date(2025, 3, 10, 23, 58, 0, 0, time.UTC))
	s := New(c, time.Second)
	at, err := clock.ParseHHMM("23:59")
	if err != nil {
		t.Fatal(err)
	}
	runs := 0
	s.Daily("cleanup", at, func(context.Context) error { runs++; return nil })

	s.Tick(context.Background())
	if runs != 0 {
		t.Fatalf("ran before its time: %d", runs)
	}
	c.Advance(time.Minute)
	s.Tick(context.Background())
	s.Tick(context.Background())
	if runs != 1 {
		t.Fatalf("expected one run at 23:59, got %d", runs)
	}
	c.Advance(24 * time.Hour)
	s.Tick(context.Background())
	if runs != 2 {
		t.Fatalf("expected a run on the next date, got %d", runs)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(clock.NewFixed(time.Now()), 5*time.Millisecond)
	var ticks atomic.Int32
	s.Every("count", func(context.Context) error { ticks.Add(1); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("scheduler did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
