package postgres

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

func scanHabit(row rowScanner, h *models.Habit, extra ...any) error {
	var start, deadline, expires sql.NullString
	dest := append([]any{&h.ID, &h.Title, &start, &deadline, &h.IsPunishment, &expires, &h.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	h.StartTime, h.DeadlineTime, h.ExpiresOn = start.String, deadline.String, expires.String
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
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		habit.ID, habit.Title, nullString(habit.StartTime), nullString(habit.DeadlineTime),
		habit.IsPunishment, nullString(habit.ExpiresOn), habit.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: habit %s", storage.ErrDuplicate, habit.ID)
	}
	return err
}

func (s *Store) GetHabit(id string) (models.Habit, error) {
	var h models.Habit
	row := s.db.QueryRow(`SELECT `+habitColumns+` FROM habits WHERE id = $1`, id)
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
		WHERE is_punishment AND expires_on IS NOT NULL AND expires_on <= $1
		ORDER BY created_at`, today)
}

func (s *Store) UpdateHabit(habit models.Habit) error {
	if err := habit.Validate(); err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE habits SET title = $1, start_time = $2, deadline_time = $3, is_punishment = $4, expires_on = $5
		WHERE id = $6`,
		habit.Title, nullString(habit.StartTime), nullString(habit.DeadlineTime),
		habit.IsPunishment, nullString(habit.ExpiresOn), habit.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) DeleteHabit(id string) error {
	res, err := s.db.Exec(`DELETE FROM habits WHERE id = $1`, id)
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

func (s *Store) GetHabitsWithCompletions(date string) ([]models.HabitStatus, error) {
	rows, err := s.db.Query(`
		SELECT h.id, h.title, h.start_time, h.deadline_time, h.is_punishment, h.expires_on, h.created_at,
		       COALESCE(c.completed, FALSE), c.proof_path
		FROM habits h
		LEFT JOIN habit_completions c ON c.habit_id = h.id AND c.date = $1
		ORDER BY h.deadline_time NULLS LAST, h.created_at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.HabitStatus{}
	for rows.Next() {
		var hs models.HabitStatus
		var proof sql.NullString
		if err := scanHabit(rows, &hs.Habit, &hs.Completed, &proof); err != nil {
			return nil, err
		}
		hs.ProofPath = proof.String
		out = append(out, hs)
	}
	return out, rows.Err()
}
