package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrUnsafeQuery is returned by QueryReadOnly for anything but a single SELECT.
	ErrUnsafeQuery = errors.New("only SELECT queries are allowed")
)

// StrikeFilter narrows ListStrikes. Zero values match everything.
type StrikeFilter struct {
	HabitID string
	// Since is an inclusive YYYY-MM-DD lower bound on the strike date.
	Since string
}

// Column describes one table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Relationship is a many-to-one link between tables.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"type"`
}

type Schema struct {
	Tables        []Table        `json:"tables"`
	Relationships []Relationship `json:"relationships"`
}

// SchemaTables lists the tables DescribeSchema reports, in order.
var SchemaTables = []string{"habits", "habit_completions", "reminder_log", "strikes"}

// SchemaRelationships is shared by both dialects.
var SchemaRelationships = []Relationship{
	{From: "habit_completions.habit_id", To: "habits.id", Kind: "many-to-one"},
	{From: "reminder_log.habit_id", To: "habits.id", Kind: "many-to-one"},
	{From: "strikes.habit_id", To: "habits.id", Kind: "many-to-one"},
}

// QueryResult is the output of QueryReadOnly.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated,omitempty"`
}

var (
	forbiddenKeywords = []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE",
		"REPLACE", "MERGE", "GRANT", "REVOKE", "ATTACH", "DETACH", "PRAGMA", "VACUUM",
	}
	forbiddenRe = regexp.MustCompile(`\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)
	commentRe   = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
)

// ValidateReadOnlyQuery accepts a single SELECT statement and rejects any
// statement containing a data- or schema-modifying keyword.
func ValidateReadOnlyQuery(query string) error {
	q := strings.TrimSpace(commentRe.ReplaceAllString(query, " "))
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return fmt.Errorf("%w: query is empty", ErrUnsafeQuery)
	}
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") {
		return fmt.Errorf("%w: query must start with SELECT", ErrUnsafeQuery)
	}
	if strings.Contains(q, ";") {
		return fmt.Errorf("%w: multiple statements are not allowed", ErrUnsafeQuery)
	}
	if kw := forbiddenRe.FindString(upper); kw != "" {
		return fmt.Errorf("%w: query contains forbidden keyword %s", ErrUnsafeQuery, kw)
	}
	return nil
}

// CollectRows reads up to limit rows into column-keyed maps. []byte values
// become strings so results serialise as JSON text.
func CollectRows(rows *sql.Rows, limit int) (QueryResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to read columns: %w", err)
	}
	res := QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			switch v := vals[i].(type) {
			case []byte:
				row[c] = string(v)
			case time.Time:
				row[c] = v.Format(time.RFC3339)
			default:
				row[c] = v
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, err
	}
	res.Count = len(res.Rows)
	return res, nil
}
