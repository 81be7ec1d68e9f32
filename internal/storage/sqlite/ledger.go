package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

func (s *Store) LogReminder(habitID, date string, kind models.ReminderType) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("invalid reminder type %q", kind)
	}
	res, err := s.db.Exec(`
		INSERT INTO reminder_log (id, habit_id, date, reminder_type, sent_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, date, reminder_type) DO NOTHING`,
		uuid.New().String(), habitID, date, string(kind), formatTimestamp(s.now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) GetRemindersForDate(date string) ([]models.ReminderLogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, habit_id, date, reminder_type, sent_at
		FROM reminder_log WHERE date = ? ORDER BY sent_at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReminderLogEntry{}
	for rows.Next() {
		var e models.ReminderLogEntry
		var kind, sentAt string
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &kind, &sentAt); err != nil {
			return nil, err
		}
		e.Type = models.ReminderType(kind)
		if e.SentAt, err = parseTimestamp(sentAt); err != nil {
			return nil, fmt.Errorf("failed to parse sent_at for reminder %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddStrike(entry models.StrikeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	_, err := s.db.Exec(`
		INSERT INTO strikes (id, habit_id, date, reason, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.HabitID, entry.Date, string(entry.Reason), nullString(entry.Notes),
		formatTimestamp(entry.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s strike for habit %s on %s", storage.ErrDuplicate, entry.Reason, entry.HabitID, entry.Date)
	}
	return err
}

func (s *Store) queryStrikes(query string, args ...any) ([]models.StrikeEntry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.StrikeEntry{}
	for rows.Next() {
		var e models.StrikeEntry
		var reason, createdAt string
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &reason, &notes, &createdAt); err != nil {
			return nil, err
		}
		e.Reason = models.StrikeReason(reason)
		e.Notes = notes.String
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for strike %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetStrikesForDate(date string) ([]models.StrikeEntry, error) {
	return s.queryStrikes(`
		SELECT id, habit_id, date, reason, notes, created_at
		FROM strikes WHERE date = ? ORDER BY created_at, id`, date)
}

func (s *Store) CountStrikesForDate(date string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM strikes WHERE date = ?`, date).Scan(&n)
	return n, err
}

func (s *Store) ListStrikes(filter storage.StrikeFilter) ([]models.StrikeEntry, error) {
	var where []string
	var args []any
	if filter.HabitID != "" {
		where = append(where, "habit_id = ?")
		args = append(args, filter.HabitID)
	}
	if filter.Since != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.Since)
	}
	query := `SELECT id, habit_id, date, reason, notes, created_at FROM strikes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	return s.queryStrikes(query, args...)
}
