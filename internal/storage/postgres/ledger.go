package postgres

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

const completionColumns = `id, habit_id, date, completed, proof_path, completed_at`

func scanCompletion(row rowScanner, c *models.CompletionRecord) error {
	var proof sql.NullString
	var completedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.HabitID, &c.Date, &c.Completed, &proof, &completedAt); err != nil {
		return err
	}
	c.ProofPath = proof.String
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return nil
}

func (s *Store) GetCompletion(habitID, date string) (models.CompletionRecord, error) {
	var c models.CompletionRecord
	row := s.db.QueryRow(`SELECT `+completionColumns+` FROM habit_completions WHERE habit_id = $1 AND date = $2`, habitID, date)
	if err := scanCompletion(row, &c); err != nil {
		return models.CompletionRecord{}, notFound(err)
	}
	return c, nil
}

func (s *Store) GetCompletionsForDate(date string) ([]models.CompletionRecord, error) {
	rows, err := s.db.Query(`SELECT `+completionColumns+` FROM habit_completions WHERE date = $1`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.CompletionRecord{}
	for rows.Next() {
		var c models.CompletionRecord
		if err := scanCompletion(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateCompletion(habitID, date string) (models.CompletionRecord, error) {
	c := models.CompletionRecord{ID: uuid.New().String(), HabitID: habitID, Date: date}
	_, err := s.db.Exec(`INSERT INTO habit_completions (id, habit_id, date, completed) VALUES ($1, $2, $3, FALSE)`,
		c.ID, habitID, date)
	if isUniqueViolation(err) {
		return models.CompletionRecord{}, fmt.Errorf("%w: completion for habit %s on %s", storage.ErrDuplicate, habitID, date)
	}
	if err != nil {
		return models.CompletionRecord{}, err
	}
	return c, nil
}

func (s *Store) MarkCompleted(habitID, date, proofPath string) (models.CompletionRecord, error) {
	if _, err := s.GetHabit(habitID); err != nil {
		return models.CompletionRecord{}, err
	}
	_, err := s.db.Exec(`
		INSERT INTO habit_completions (id, habit_id, date, completed, proof_path, completed_at)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		ON CONFLICT (habit_id, date) DO UPDATE SET
			completed = TRUE,
			proof_path = EXCLUDED.proof_path,
			completed_at = EXCLUDED.completed_at`,
		uuid.New().String(), habitID, date, nullString(proofPath), s.now())
	if err != nil {
		return models.CompletionRecord{}, err
	}
	return s.GetCompletion(habitID, date)
}

func (s *Store) LogReminder(habitID, date string, kind models.ReminderType) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("invalid reminder type %q", kind)
	}
	res, err := s.db.Exec(`
		INSERT INTO reminder_log (id, habit_id, date, reminder_type, sent_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (habit_id, date, reminder_type) DO NOTHING`,
		uuid.New().String(), habitID, date, string(kind), s.now())
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
		FROM reminder_log WHERE date = $1 ORDER BY sent_at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ReminderLogEntry{}
	for rows.Next() {
		var e models.ReminderLogEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &kind, &e.SentAt); err != nil {
			return nil, err
		}
		e.Type = models.ReminderType(kind)
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
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.HabitID, entry.Date, string(entry.Reason), nullString(entry.Notes), entry.CreatedAt)
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
		var reason string
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.HabitID, &e.Date, &reason, &notes, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reason = models.StrikeReason(reason)
		e.Notes = notes.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) GetStrikesForDate(date string) ([]models.StrikeEntry, error) {
	return s.queryStrikes(`
		SELECT id, habit_id, date, reason, notes, created_at
		FROM strikes WHERE date = $1 ORDER BY created_at, id`, date)
}

func (s *Store) CountStrikesForDate(date string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM strikes WHERE date = $1`, date).Scan(&n)
	return n, err
}

func (s *Store) ListStrikes(filter storage.StrikeFilter) ([]models.StrikeEntry, error) {
	var where []string
	var args []any
	if filter.HabitID != "" {
		args = append(args, filter.HabitID)
		where = append(where, "habit_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Since != "" {
		args = append(args, filter.Since)
		where = append(where, "date >= $"+strconv.Itoa(len(args)))
	}
	query := `SELECT id, habit_id, date, reason, notes, created_at FROM strikes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	return s.queryStrikes(query, args...)
}
