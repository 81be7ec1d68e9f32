package migration

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write test migration %s: %v", name, err)
		}
	}
	return dir
}

func newTestRunner(t *testing.T, db *sql.DB, dir string, driver Driver) *Runner {
	t.Helper()
	r, err := NewRunner(db, os.DirFS(dir), driver)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return r
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestNewRunnerRejectsUnknownDriver(t *testing.T) {
	db := setupTestDB(t)
	if _, err := NewRunner(db, os.DirFS(t.TempDir()), Driver("mysql")); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := NewRunner(nil, os.DirFS(t.TempDir()), DriverSQLite); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestBindPlaceholders(t *testing.T) {
	pg := &Runner{driver: DriverPostgres}
	if got := pg.bind("INSERT INTO t (a, b) VALUES (?, ?)"); got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Errorf("postgres bind = %q", got)
	}
	lite := &Runner{driver: DriverSQLite}
	if got := lite.bind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("sqlite bind = %q", got)
	}
}

func TestGetAndSetVersion(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRunner(t, db, setupTestMigrations(t, nil), DriverSQLite)

	v, err := r.GetCurrentVersion()
	if err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	if err := r.SetVersion(5); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if v, _ := r.GetCurrentVersion(); v != 5 {
		t.Errorf("expected version 5, got %d", v)
	}
}

func TestReadMigrationFilesSorted(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRunner(t, db, setupTestMigrations(t, map[string]string{
		"003_another.sql": "CREATE TABLE test2 (id INTEGER);",
		"001_init.sql":    "CREATE TABLE test1 (id INTEGER);",
		"002_update.sql":  "ALTER TABLE test1 ADD COLUMN name TEXT;",
		"README.md":       "ignored",
	}), DriverSQLite)

	ms, err := r.ReadMigrationFiles()
	if err != nil {
		t.Fatalf("ReadMigrationFiles: %v", err)
	}
	want := []struct {
		v    int
		name string
	}{{1, "init"}, {2, "update"}, {3, "another"}}
	if len(ms) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(ms))
	}
	for i, w := range want {
		if ms[i].Version != w.v || ms[i].Name != w.name {
			t.Errorf("migration %d = (%d, %q), want (%d, %q)", i, ms[i].Version, ms[i].Name, w.v, w.name)
		}
	}
}

func TestReadMigrationFilesErrors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{"no underscore", map[string]string{"001init.sql": "SELECT 1;"}, "invalid migration filename"},
		{"zero version", map[string]string{"000_init.sql": "SELECT 1;"}, "version must be at least 1"},
		{"non numeric", map[string]string{"abc_init.sql": "SELECT 1;"}, "invalid version number"},
		{"duplicate", map[string]string{"001_a.sql": "SELECT 1;", "001_b.sql": "SELECT 1;"}, "duplicate migration version"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(t, setupTestDB(t), setupTestMigrations(t, tt.files), DriverSQLite)
			_, err := r.ReadMigrationFiles()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyMigrationsFromScratchAndNoOp(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRunner(t, db, setupTestMigrations(t, map[string]string{
		"001_init.sql":  "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);",
		"002_posts.sql": "CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER);",
	}), DriverSQLite)

	var logged []string
	n, err := r.ApplyMigrations(func(s string) { logged = append(logged, s) })
	if err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 applied, got %d", n)
	}
	if len(logged) == 0 {
		t.Error("expected progress messages")
	}
	if v, _ := r.GetCurrentVersion(); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
	if !tableExists(t, db, "users") || !tableExists(t, db, "posts") {
		t.Error("expected both tables to exist")
	}

	n, err = r.ApplyMigrations(nil)
	if err != nil || n != 0 {
		t.Errorf("second run = %d, %v; want 0, nil", n, err)
	}
}

func TestApplyMigrationsIncremental(t *testing.T) {
	db := setupTestDB(t)
	dir := setupTestMigrations(t, map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
	})
	r := newTestRunner(t, db, dir, DriverSQLite)
	if n, err := r.ApplyMigrations(nil); err != nil || n != 1 {
		t.Fatalf("first run = %d, %v", n, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "002_posts.sql"), []byte("CREATE TABLE posts (id INTEGER);"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := r.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.UpToDate() || len(st.Pending) != 1 || st.Pending[0].Version != 2 {
		t.Errorf("unexpected status %+v", st)
	}
	if n, err := r.ApplyMigrations(nil); err != nil || n != 1 {
		t.Fatalf("second run = %d, %v", n, err)
	}
	if v, _ := r.GetCurrentVersion(); v != 2 {
		t.Errorf("expected version 2, got %d", v)
	}
}

func TestMigrationRollbackOnError(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRunner(t, db, setupTestMigrations(t, map[string]string{
		"001_init.sql": `
			CREATE TABLE users (id INTEGER PRIMARY KEY);
			THIS IS INVALID SQL;
		`,
	}), DriverSQLite)

	if _, err := r.ApplyMigrations(nil); err == nil {
		t.Fatal("expected failure on invalid SQL")
	}
	if v, _ := r.GetCurrentVersion(); v != 0 {
		t.Errorf("expected version 0 after rollback, got %d", v)
	}
	if tableExists(t, db, "users") {
		t.Error("table should not exist after rollback")
	}
}

func TestValidateVersionNewerDatabase(t *testing.T) {
	db := setupTestDB(t)
	r := newTestRunner(t, db, setupTestMigrations(t, map[string]string{
		"001_init.sql": "CREATE TABLE users (id INTEGER PRIMARY KEY);",
	}), DriverSQLite)

	if err := r.SetVersion(10); err != nil {
		t.Fatalf("SetVersion: %v", err)
	}
	if err := r.ValidateVersion(); err == nil {
		t.Fatal("ValidateVersion should fail for a newer database")
	}
	if _, err := r.ApplyMigrations(nil); err == nil {
		t.Fatal("ApplyMigrations should fail for a newer database")
	}
}

func TestGetLatestVersion(t *testing.T) {
	r := newTestRunner(t, setupTestDB(t), setupTestMigrations(t, map[string]string{
		"001_init.sql":   "CREATE TABLE users (id INTEGER);",
		"003_posts.sql":  "CREATE TABLE posts (id INTEGER);",
		"002_update.sql": "ALTER TABLE users ADD COLUMN name TEXT;",
	}), DriverSQLite)

	latest, err := r.GetLatestVersion()
	if err != nil || latest != 3 {
		t.Errorf("GetLatestVersion = %d, %v; want 3", latest, err)
	}
}
