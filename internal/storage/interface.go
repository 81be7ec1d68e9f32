package storage

import (
	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/models"
)

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error
	// SetClock sets the clock used to stamp created_at, completed_at and
	// sent_at. The system clock is used until it is called.
	SetClock(clock.Clock)

	// Habits
	AddHabit(models.Habit) error
	GetHabit(id string) (models.Habit, error)
	GetAllHabits() ([]models.Habit, error)
	UpdateHabit(models.Habit) error
	// DeleteHabit removes the habit together with its completions and
	// reminder log rows. Strikes are kept.
	DeleteHabit(id string) error
	// GetExpiredPunishmentHabits returns punishment habits whose expires_on
	// is on or before today.
	GetExpiredPunishmentHabits(today string) ([]models.Habit, error)

	// Completions
	// GetHabitsWithCompletions returns every habit merged with its
	// completion state for date; habits without a record are not completed.
	GetHabitsWithCompletions(date string) ([]models.HabitStatus, error)
	GetCompletion(habitID, date string) (models.CompletionRecord, error)
	GetCompletionsForDate(date string) ([]models.CompletionRecord, error)
	// CreateCompletion inserts a not-completed record for (habitID, date)
	// and returns ErrDuplicate when one exists.
	CreateCompletion(habitID, date string) (models.CompletionRecord, error)
	// MarkCompleted sets completed, proof path and completed_at on the
	// record for (habitID, date), creating it when missing.
	MarkCompleted(habitID, date, proofPath string) (models.CompletionRecord, error)

	// Reminder log
	// LogReminder records a sent reminder. It reports false, with no error,
	// when that reminder was already logged.
	LogReminder(habitID, date string, kind models.ReminderType) (bool, error)
	GetRemindersForDate(date string) ([]models.ReminderLogEntry, error)

	// Strikes
	AddStrike(models.StrikeEntry) error
	GetStrikesForDate(date string) ([]models.StrikeEntry, error)
	CountStrikesForDate(date string) (int, error)
	ListStrikes(StrikeFilter) ([]models.StrikeEntry, error)

	// Introspection
	DescribeSchema() (Schema, error)
	// QueryReadOnly runs a validated SELECT and returns at most
	// constants.MaxQueryRows rows.
	QueryReadOnly(query string) (QueryResult, error)

	// Utils
	GetConfigPath() string
}
