// Package habits implements habit management on top of a storage.Provider.
package habits

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/clock"
	"github.com/julianstephens/habitenforcer/internal/errors"
	"github.com/julianstephens/habitenforcer/internal/logger"
	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

// Matcher resolves a free-text description to one of habits.
type Matcher interface {
	Match(ctx context.Context, description string, habits []models.Habit) (models.Habit, bool, error)
}

type Service struct {
	store   storage.Provider
	clock   clock.Clock
	matcher Matcher
}

// NewService uses TitleMatcher when matcher is nil.
func NewService(store storage.Provider, c clock.Clock, matcher Matcher) *Service {
	if matcher == nil {
		matcher = TitleMatcher{}
	}
	return &Service{store: store, clock: c, matcher: matcher}
}

func (s *Service) Clock() clock.Clock { return s.clock }

func parseUserTime(field, value string) (string, error) {
	t, err := clock.ParseHHMM(value)
	if err != nil {
		return "", errors.Newf(errors.KindValidation, "Invalid %s format: %s. Use HH:MM (24-hour)", field, value)
	}
	return t.String(), nil
}

// Add creates a habit. start and deadline are HH:MM and may be empty.
func (s *Service) Add(title, start, deadline string) (models.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Habit{}, errors.New(errors.KindValidation, "habit title is required")
	}
	h := models.Habit{ID: uuid.New().String(), Title: title, CreatedAt: s.clock.Now()}
	var err error
	if start != "" {
		if h.StartTime, err = parseUserTime("start_time", start); err != nil {
			return models.Habit{}, err
		}
	}
	if deadline != "" {
		if h.DeadlineTime, err = parseUserTime("deadline_time", deadline); err != nil {
			return models.Habit{}, err
		}
	}

	existing, err := s.store.GetAllHabits()
	if err != nil {
		return models.Habit{}, err
	}
	for _, e := range existing {
		if strings.EqualFold(e.Title, title) {
			return models.Habit{}, errors.Newf(errors.KindValidation, "habit '%s' already exists", e.Title)
		}
	}
	if err := s.store.AddHabit(h); err != nil {
		return models.Habit{}, fmt.Errorf("failed to add habit: %w", err)
	}
	logger.Info("Habit added", "habit_id", h.ID, "title", h.Title)
	return h, nil
}

// Find resolves description to a stored habit.
func (s *Service) Find(ctx context.Context, description string) (models.Habit, error) {
	all, err := s.store.GetAllHabits()
	if err != nil {
		return models.Habit{}, err
	}
	if len(all) == 0 {
		return models.Habit{}, errors.New(errors.KindNotFound, "No habits found")
	}
	h, ok, err := s.matcher.Match(ctx, description, all)
	if err != nil {
		return models.Habit{}, errors.Wrap(errors.KindExternalService, err, "Failed to match habit")
	}
	if !ok {
		return models.Habit{}, errors.Newf(errors.KindNotFound, "No habit matching '%s' found", description)
	}
	return h, nil
}

func (s *Service) Remove(ctx context.Context, description string) (models.Habit, error) {
	h, err := s.Find(ctx, description)
	if err != nil {
		return models.Habit{}, err
	}
	if err := s.store.DeleteHabit(h.ID); err != nil {
		return models.Habit{}, storeErr(err, "habit "+h.ID)
	}
	logger.Info("Habit removed", "habit_id", h.ID, "title", h.Title)
	return h, nil
}

// Complete marks the habit matching description done for today.
func (s *Service) Complete(ctx context.Context, description, proofPath string) (models.Habit, models.CompletionRecord, error) {
	h, err := s.Find(ctx, description)
	if err != nil {
		return models.Habit{}, models.CompletionRecord{}, err
	}
	rec, err := s.CompleteByID(h.ID, proofPath)
	return h, rec, err
}

// CompleteByID creates today's completion record when missing and marks it
// completed.
func (s *Service) CompleteByID(habitID, proofPath string) (models.CompletionRecord, error) {
	date := clock.Today(s.clock)
	if _, err := s.store.GetCompletion(habitID, date); stderrors.Is(err, storage.ErrNotFound) {
		if _, err := s.store.CreateCompletion(habitID, date); err != nil && !stderrors.Is(err, storage.ErrDuplicate) {
			return models.CompletionRecord{}, storeErr(err, "habit "+habitID)
		}
	} else if err != nil {
		return models.CompletionRecord{}, err
	}
	rec, err := s.store.MarkCompleted(habitID, date, proofPath)
	if err != nil {
		return models.CompletionRecord{}, storeErr(err, "habit "+habitID)
	}
	logger.Info("Habit completed", "habit_id", habitID, "date", date, "proof", proofPath != "")
	return rec, nil
}

// SetSchedule updates start and/or deadline (HH:MM). At least one must be
// non-nil.
func (s *Service) SetSchedule(ctx context.Context, description string, start, deadline *string) (models.Habit, error) {
	if start == nil && deadline == nil {
		return models.Habit{}, errors.New(errors.KindValidation, "Must provide at least one time (start_time or deadline_time)")
	}
	h, err := s.Find(ctx, description)
	if err != nil {
		return models.Habit{}, err
	}
	if start != nil {
		if h.StartTime, err = parseUserTime("start_time", *start); err != nil {
			return models.Habit{}, err
		}
	}
	if deadline != nil {
		if h.DeadlineTime, err = parseUserTime("deadline_time", *deadline); err != nil {
			return models.Habit{}, err
		}
	}
	if err := s.store.UpdateHabit(h); err != nil {
		return models.Habit{}, storeErr(err, "habit "+h.ID)
	}
	logger.Info("Habit schedule updated", "habit_id", h.ID, "start", h.StartTime, "deadline", h.DeadlineTime)
	return h, nil
}

// Today returns every habit with today's completion state.
func (s *Service) Today() (string, []models.HabitStatus, error) {
	date := clock.Today(s.clock)
	habits, err := s.store.GetHabitsWithCompletions(date)
	return date, habits, err
}

type Summary struct {
	Date            string   `json:"date"`
	TotalHabits     int      `json:"total_habits"`
	Completed       int      `json:"completed"`
	Missed          int      `json:"missed"`
	CompletionRate  float64  `json:"completion_rate"`
	CompletedHabits []string `json:"completed_habits"`
	MissedHabits    []string `json:"missed_habits"`
}

// Summary counts today's completions. A habit without a completed record
// counts as missed.
func (s *Service) Summary() (Summary, error) {
	date, habits, err := s.Today()
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Date: date, TotalHabits: len(habits), CompletedHabits: []string{}, MissedHabits: []string{}}
	for _, h := range habits {
		if h.Completed {
			sum.CompletedHabits = append(sum.CompletedHabits, h.Title)
		} else {
			sum.MissedHabits = append(sum.MissedHabits, h.Title)
		}
	}
	sum.Completed, sum.Missed = len(sum.CompletedHabits), len(sum.MissedHabits)
	if sum.TotalHabits > 0 {
		sum.CompletionRate = math.Round(float64(sum.Completed)/float64(sum.TotalHabits)*10000) / 100
	}
	return sum, nil
}

func storeErr(err error, what string) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(errors.KindNotFound, err, what+" not found")
	}
	return err
}
