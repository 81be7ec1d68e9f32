package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/julianstephens/habitenforcer/internal/models"
	"github.com/julianstephens/habitenforcer/internal/storage"
)

const completionColumns = `id, habit_id, date, completed, proof_path, completed_at`

func scanCompletion(row rowScanner, c *models.CompletionRecord) error {
	var proof, completedAt sql.NullString
	if err := row.Scan(&c.ID, &c.HabitID, &c.Date, &c.Completed, &proof, &completedAt); err != nil {
		return err
	}
	c.ProofPath = proof.String
	if completedAt.Valid {
		t, err := parseTimestamp(completedAt.String)
		if err != nil {
			return fmt.Errorf("failed to parse completed_at for completion %s: %w", c.ID, err)
		}
		c.CompletedAt = &t
	}
	return nil
}

func (s *Store) GetHabitsWithCompletions(date string) ([]models.HabitStatus, error) {
	rows, err := s.db.Query(`
		SELECT h.id, h.title, h.start_time, h.deadline_time, h.is_punishment, h.expires_on, h.created_at,
		       COALESCE(c.completed, 0), c.proof_path
		FROM habits h
		LEFT JOIN habit_completions c ON c.habit_id = h.id AND c.date = ?
		ORDER BY h.deadline_time IS NULL, h.deadline_time, h.created_at`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.HabitStatus{}
	for rows.Next() {
		var hs models.HabitStatus
		var start, deadline, expires, proof sql.NullString
		var createdAt string
		if err := rows.Scan(&hs.ID, &hs.Title, &start, &deadline, &hs.IsPunishment, &expires, &createdAt,
			&hs.Completed, &proof); err != nil {
			return nil, err
		}
		hs.StartTime, hs.DeadlineTime, hs.ExpiresOn = start.String, deadline.String, expires.String
		hs.ProofPath = proof.String
		if hs.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at for habit %s: %w", hs.ID, err)
		}
		out = append(out, hs)
	}
	return out, rows.Err()
}

func (s *Store) GetCompletion(habitID, date string) (models.CompletionRecord, error) {
	var c models.CompletionRecord
	row := s.db.QueryRow(`SELECT `+completionColumns+` FROM habit_completions WHERE habit_id = ? AND date = ?`, habitID, date)
	if err := scanCompletion(row, &c); err != nil {
		return models.CompletionRecord{}, notFound(err)
	}
	return c, nil
}

func (s *Store) GetCompletionsForDate(date string) ([]models.CompletionRecord, error) {
	rows, err := s.db.Query(`SELECT `+completionColumns+` FROM habit_completions WHERE date = ?`, date)
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
	_, err := s.db.Exec(`INSERT INTO habit_completions (id, habit_id, date, completed) VALUES (?, ?, ?, 0)`,
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
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(habit_id, date) DO UPDATE SET
			completed = 1,
			proof_path = excluded.proof_path,
			completed_at = excluded.completed_at`,
		uuid.New().String(), habitID, date, nullString(proofPath), formatTimestamp(s.now()))
	if err != nil {
		return models.CompletionRecord{}, err
	}
	return s.GetCompletion(habitID, date)
}
