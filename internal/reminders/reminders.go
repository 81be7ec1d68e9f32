// Package reminders sends the start and deadline reminders for today's
// habits, once each.
package reminders

import (
	"context"
	"fmt"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/notify"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

type Reminder struct {
	HabitID string
	Title   string
	Type    models.ReminderType
	At      clock.TimeOfDay
}

type Service struct {
	store storage.Provider
	clock clock.Clock
	sink  notify.Sink
}

func NewService(store storage.Provider, c clock.Clock, sink notify.Sink) *Service {
	if sink == nil {
		sink = notify.Discard{}
	}
	return &Service{store: store, clock: c, sink: sink}
}

// Due lists reminders whose time has come for habits not yet completed
// today and not already logged.
func (s *Service) Due() ([]Reminder, error) {
	date := clock.Today(s.clock)
	now := clock.Of(s.clock.Now())

	habits, err := s.store.GetHabitsWithCompletions(date)
	if err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}
	logged, err := s.store.GetRemindersForDate(date)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder log: %w", err)
	}
	sent := map[string]bool{}
	for _, r := range logged {
		sent[r.HabitID+"|"+string(r.Type)] = true
	}

	var due []Reminder
	for _, hs := range habits {
		if hs.Completed {
			continue
		}
		for _, kind := range []models.ReminderType{models.ReminderStart, models.ReminderDeadline} {
			if sent[hs.ID+"|"+string(kind)] {
				continue
			}
			at, ok, err := reminderTime(hs.Habit, kind)
			if err != nil {
				logger.Warn("Skipping habit with invalid time", "habit_id", hs.ID, "error", err)
				continue
			}
			if ok && now >= at {
				due = append(due, Reminder{HabitID: hs.ID, Title: hs.Title, Type: kind, At: at})
			}
		}
	}
	return due, nil
}

func reminderTime(h models.Habit, kind models.ReminderType) (clock.TimeOfDay, bool, error) {
	if kind == models.ReminderStart {
		return h.Start()
	}
	return h.Deadline()
}

// Check sends every due reminder. A reminder is logged as sent even when
// delivery fails so it is not retried on the next tick.
func (s *Service) Check(ctx context.Context) (int, error) {
	due, err := s.Due()
	if err != nil {
		return 0, err
	}
	date := clock.Today(s.clock)
	sent := 0
	for _, r := range due {
		msg := notify.StartReminder(r.Title)
		if r.Type == models.ReminderDeadline {
			msg = notify.DeadlineReminder(r.Title)
		}
		if !s.sink.Send(ctx, msg) {
			logger.Warn("Reminder not delivered", "habit_id", r.HabitID, "type", r.Type)
		}
		if _, err := s.store.LogReminder(r.HabitID, date, r.Type); err != nil {
			logger.Error("Failed to log reminder", "habit_id", r.HabitID, "type", r.Type, "error", err)
			continue
		}
		logger.Debug("Reminder sent", "habit_id", r.HabitID, "type", r.Type)
		sent++
	}
	return sent, nil
}
