package models

import "time"

// ReminderType identifies which reminder fired for a habit on a date.
type ReminderType string

const (
	ReminderStart    ReminderType = "start"
	ReminderDeadline ReminderType = "deadline"
)

func (r ReminderType) Valid() bool {
	return r == ReminderStart || r == ReminderDeadline
}

// ReminderLogEntry records that a reminder was sent. Its existence is the
// only signal that the reminder already fired.
type ReminderLogEntry struct {
	ID      string       `json:"id"`
	HabitID string       `json:"habit_id"`
	Date    string       `json:"date"`
	Type    ReminderType `json:"reminder_type"`
	SentAt  time.Time    `json:"sent_at"`
}

// StrikeReason is the recorded cause of a strike.
type StrikeReason string

const (
	StrikeMissedDeadline StrikeReason = "missed_deadline"
	StrikeManual         StrikeReason = "manual"
)

// StrikeEntry is an append-only strike ledger row.
type StrikeEntry struct {
	ID        string       `json:"id"`
	HabitID   string       `json:"habit_id"`
	Date      string       `json:"date"`
	Reason    StrikeReason `json:"reason"`
	Notes     string       `json:"notes,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
