package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

const habitColumns = `id, title, start_time, deadline_time, is_punishment, expires_on, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner, h *models.Habit) error {
	var start, deadline, expires sql.NullString
	var createdAt string
	if err := row.Scan(&h.ID, &h.Title, &start, &deadline, &h.IsPunishment, &expires, &createdAt); err != nil {
		return err
	}
	h.StartTime = start.String
	h.DeadlineTime = deadline.String
	h.ExpiresOn = expires.String

	t, err := parseTimestamp(createdAt)
	if err != nil {
		return fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
	}
	h.CreatedAt = t
	return nil
}

func (s *Store) AddHabit(habit models.Habit) error {
	if habit.ID == "" {
		habit.ID = uuid.New().String()
	}
	if habit.CreatedAt.IsZero() {
		habit.CreatedAt = s.now()
	}
	if err := habit.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(`
		INSERT INTO habits (`+habitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		habit.ID, habit.Title, nullString(habit.StartTime), nullString(habit.DeadlineTime),
		habit.IsPunishment, nullString(habit.ExpiresOn), formatTimestamp(habit.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: habit %s", storage.ErrDuplicate, habit.ID)
	}
	return err
}

func (s *Store) GetHabit(id string) (models.Habit, error) {
	var h models.Habit
	row := s.db.QueryRow(`SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)
	if err := scanHabit(row, &h); err != nil {
		return models.Habit{}, notFound(err)
	}
	return h, nil
}

func (s *Store) queryHabits(query string, args ...any) ([]models.Habit, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	habits := []models.Habit{}
	for rows.Next() {
		var h models.Habit
		if err := scanHabit(rows, &h); err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) GetAllHabits() ([]models.Habit, error) {
	return s.queryHabits(`SELECT ` + habitColumns + ` FROM habits ORDER BY created_at, id`)
}

func (s *Store) GetExpiredPunishmentHabits(today string) ([]models.Habit, error) {
	return s.queryHabits(`
		SELECT `+habitColumns+` FROM habits
		WHERE is_punishment = 1 AND expires_on IS NOT NULL AND expires_on <= ?
		ORDER BY created_at`, today)
}

func (s *Store) UpdateHabit(habit models.Habit) error {
	if err := habit.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE habits SET title = ?, start_time = ?, deadline_time = ?, is_punishment = ?, expires_on = ?
		WHERE id = ?`,
		habit.Title, nullString(habit.StartTime), nullString(habit.DeadlineTime),
		habit.IsPunishment, nullString(habit.ExpiresOn), habit.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteHabit(id string) error {
	res, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
