// Package deadline decides which habits owe a strike right now.
package deadline

import (
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

// Snapshot is everything the evaluator reads for one date.
type Snapshot struct {
	Date      string
	Now       clock.TimeOfDay
	Habits    []models.HabitStatus
	Reminders []models.ReminderLogEntry
	Strikes   []models.StrikeEntry
}

// Due is a habit whose deadline passed without completion.
type Due struct {
	HabitID  string
	Title    string
	Deadline clock.TimeOfDay
}

// HabitError reports a habit that could not be evaluated.
type HabitError struct {
	HabitID string
	Err     error
}

func (e HabitError) Error() string {
	return fmt.Sprintf("habit %s: %v", e.HabitID, e.Err)
}

type key struct{ habitID, date string }

// Evaluate returns the habits needing a strike. A habit is due when it has
// a deadline, the deadline has passed, it is not completed, its deadline
// reminder was logged today and no missed-deadline strike exists for it
// today. A habit that cannot be evaluated is reported and skipped.
func Evaluate(s Snapshot) ([]Due, []HabitError) {
	warned := map[key]bool{}
	for _, r := range s.Reminders {
		if r.Type == models.ReminderDeadline {
			warned[key{r.HabitID, r.Date}] = true
		}
	}
	struck := map[key]bool{}
	for _, e := range s.Strikes {
		if e.Reason == models.StrikeMissedDeadline {
			struck[key{e.HabitID, e.Date}] = true
		}
	}

	var due []Due
	var errs []HabitError
	for _, h := range s.Habits {
		deadline, ok, err := h.Deadline()
		if err != nil {
			errs = append(errs, HabitError{HabitID: h.ID, Err: err})
			continue
		}
		k := key{h.ID, s.Date}
		switch {
		case !ok:
		case s.Now < deadline:
		case h.Completed:
		case !warned[k]:
		case struck[k]:
		default:
			due = append(due, Due{HabitID: h.ID, Title: h.Title, Deadline: deadline})
		}
	}
	return due, errs
}

// Evaluator loads a Snapshot from the store and evaluates it.
type Evaluator struct {
	store storage.Provider
	clock clock.Clock
}

func NewEvaluator(store storage.Provider, c clock.Clock) *Evaluator {
	return &Evaluator{store: store, clock: c}
}

// Snapshot reads today's state. Any store error abandons the run.
func (e *Evaluator) Snapshot() (Snapshot, error) {
	now := e.clock.Now()
	snap := Snapshot{Date: clock.Today(e.clock), Now: clock.Of(now)}

	var err error
	if snap.Habits, err = e.store.GetHabitsWithCompletions(snap.Date); err != nil {
		return Snapshot{}, fmt.Errorf("failed to load habits: %w", err)
	}
	if snap.Reminders, err = e.store.GetRemindersForDate(snap.Date); err != nil {
		return Snapshot{}, fmt.Errorf("failed to load reminder log: %w", err)
	}
	if snap.Strikes, err = e.store.GetStrikesForDate(snap.Date); err != nil {
		return Snapshot{}, fmt.Errorf("failed to load strikes: %w", err)
	}
	return snap, nil
}

// Due returns the habits needing a strike now, logging any habit that
// could not be evaluated.
func (e *Evaluator) Due() (Snapshot, []Due, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return Snapshot{}, nil, err
	}
	due, errs := Evaluate(snap)
	for _, he := range errs {
		logger.Warn("Skipping habit during deadline evaluation", "habit_id", he.HabitID, "error", he.Err)
	}
	return snap, due, nil
}
