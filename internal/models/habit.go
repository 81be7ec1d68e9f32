package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/constants"
)

// Habit is a daily commitment with an optional start and deadline time.
type Habit struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	StartTime    string    `json:"start_time,omitempty"`    // HH:MM:SS
	DeadlineTime string    `json:"deadline_time,omitempty"` // HH:MM:SS
	IsPunishment bool      `json:"is_punishment"`
	ExpiresOn    string    `json:"expires_on,omitempty"` // YYYY-MM-DD
	CreatedAt    time.Time `json:"created_at"`
}

// Deadline parses DeadlineTime. ok is false when no deadline is set.
func (h Habit) Deadline() (t clock.TimeOfDay, ok bool, err error) {
	if h.DeadlineTime == "" {
		return 0, false, nil
	}
	t, err = clock.ParseTimeOfDay(h.DeadlineTime)
	if err != nil {
		return 0, false, fmt.Errorf("habit %s: deadline: %w", h.ID, err)
	}
	return t, true, nil
}

// Start parses StartTime. ok is false when no start time is set.
func (h Habit) Start() (t clock.TimeOfDay, ok bool, err error) {
	if h.StartTime == "" {
		return 0, false, nil
	}
	t, err = clock.ParseTimeOfDay(h.StartTime)
	if err != nil {
		return 0, false, fmt.Errorf("habit %s: start: %w", h.ID, err)
	}
	return t, true, nil
}

func (h Habit) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return fmt.Errorf("habit title cannot be empty")
	}
	if _, _, err := h.Start(); err != nil {
		return err
	}
	if _, _, err := h.Deadline(); err != nil {
		return err
	}
	if h.IsPunishment && h.ExpiresOn == "" {
		return fmt.Errorf("punishment habit %q must have an expiry date", h.Title)
	}
	if h.ExpiresOn != "" {
		if _, err := time.Parse(constants.DateFormat, h.ExpiresOn); err != nil {
			return fmt.Errorf("invalid expires_on (expected YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

// HabitStatus is a habit merged with its completion state for one date.
type HabitStatus struct {
	Habit
	Completed bool   `json:"completed"`
	ProofPath string `json:"proof_path,omitempty"`
}

// CompletionRecord is the per-habit, per-date completion row.
type CompletionRecord struct {
	ID          string     `json:"id"`
	HabitID     string     `json:"habit_id"`
	Date        string     `json:"date"` // YYYY-MM-DD
	Completed   bool       `json:"completed"`
	ProofPath   string     `json:"proof_path,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
