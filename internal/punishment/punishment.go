// Package punishment maps a day's strike count to a consequence tier and
// executes the habit-injection tier.
package punishment

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

// Tier is the consequence selected for a strike count.
type Tier int

const (
	TierDeferred Tier = iota
	TierHabitInjection
	TierValueTransfer
)

func (t Tier) String() string {
	switch t {
	case TierHabitInjection:
		return "habit_injection"
	case TierValueTransfer:
		return "value_transfer"
	default:
		return "deferred"
	}
}

// escalation is the fixed policy. Counts not listed are deferred.
var escalation = map[int]Tier{
	1: TierHabitInjection,
	2: TierValueTransfer,
}

// TierFor returns the tier for the n-th strike of the day.
func TierFor(n int) Tier {
	if t, ok := escalation[n]; ok {
		return t
	}
	return TierDeferred
}

// Injector creates the self-expiring punishment habit.
type Injector struct {
	store storage.Provider
	clock clock.Clock
}

func NewInjector(store storage.Provider, c clock.Clock) *Injector {
	return &Injector{store: store, clock: c}
}

// Inject adds a punishment habit starting now, due by end of day and
// expiring today.
func (i *Injector) Inject() (models.HabitInjected, error) {
	now := i.clock.Now()
	deadline, err := clock.ParseHHMM(constants.PunishmentHabitDeadline)
	if err != nil {
		return models.HabitInjected{}, err
	}
	start, err := clock.NewTimeOfDay(now.Hour(), now.Minute(), 0)
	if err != nil {
		return models.HabitInjected{}, err
	}
	h := models.Habit{
		ID:           uuid.New().String(),
		Title:        constants.PunishmentHabitTitle,
		StartTime:    start.String(),
		DeadlineTime: deadline.String(),
		IsPunishment: true,
		ExpiresOn:    now.Format(constants.DateFormat),
		CreatedAt:    now,
	}
	if err := i.store.AddHabit(h); err != nil {
		return models.HabitInjected{}, fmt.Errorf("failed to add punishment habit: %w", err)
	}
	return models.HabitInjected{HabitID: h.ID, Title: h.Title}, nil
}

// Cleanup deletes punishment habits whose expires_on is on or before date
// and returns how many were removed. A failed delete is logged and skipped.
func Cleanup(store storage.Provider, date string) (int, error) {
	expired, err := store.GetExpiredPunishmentHabits(date)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired punishment habits: %w", err)
	}
	n := 0
	for _, h := range expired {
		if err := store.DeleteHabit(h.ID); err != nil {
			logger.Error("Failed to delete punishment habit", "habit_id", h.ID, "error", err)
			continue
		}
		logger.Info("Deleted expired punishment habit", "habit_id", h.ID, "expires_on", h.ExpiresOn)
		n++
	}
	return n, nil
}
