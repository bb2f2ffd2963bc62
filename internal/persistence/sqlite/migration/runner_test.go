package migration

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(InMemoryTestSQLiteConfig())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count); err != nil {
		t.Fatalf("sqlite_master query failed: %v", err)
	}
	return count == 1
}

func TestScan(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"migrations/010_add_index.sql":      {Data: []byte("CREATE INDEX idx ON a(id);")},
		"migrations/002_create_b.sql":       {Data: []byte("CREATE TABLE b (id TEXT);")},
		"migrations/001_create_a.sql":       {Data: []byte("CREATE TABLE a (id TEXT);")},
		"migrations/README.md":              {Data: []byte("ignored")},
		"migrations/nested/003_ignored.sql": {Data: []byte("SELECT 1;")},
	}

	migrations, err := Scan(fsys, "migrations")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	var versions []string
	for _, m := range migrations {
		versions = append(versions, m.Version)
	}
	if len(versions) != 3 || versions[0] != "001" || versions[1] != "002" || versions[2] != "010" {
		t.Fatalf("unexpected order %v", versions)
	}
	if migrations[0].Description != "create a" || migrations[0].Checksum == "" {
		t.Fatalf("unexpected metadata %#v", migrations[0])
	}
}

func TestScanRejectsBadFiles(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		files fstest.MapFS
		want  error
	}{
		"bad name": {
			files: fstest.MapFS{"m/create.sql": {Data: []byte("SELECT 1;")}},
			want:  ErrInvalidMigrationFile,
		},
		"duplicate version": {
			files: fstest.MapFS{
				"m/001_a.sql": {Data: []byte("SELECT 1;")},
				"m/1_b.sql":   {Data: []byte("SELECT 1;")},
			},
			want: ErrDuplicateVersion,
		},
		"empty file": {
			files: fstest.MapFS{"m/001_a.sql": {Data: []byte("  \n")}},
			want:  ErrInvalidMigrationFile,
		},
	}
	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := Scan(tc.files, "m"); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	statements := splitStatements(`
		-- leading comment
		CREATE TABLE a (id TEXT);

		-- only a comment;
		CREATE INDEX idx_a ON a(id);
	`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/001_create_a.sql": {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"m/002_create_b.sql": {Data: []byte("CREATE TABLE b (id TEXT PRIMARY KEY, a_id TEXT REFERENCES a(id));\nCREATE INDEX idx_b_a ON b(a_id);")},
	}
	runner := NewRunner(db, fsys, "m", quietLogger())
	ctx := context.Background()

	applied, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", applied)
	}
	if !tableExists(t, db, "a") || !tableExists(t, db, "b") {
		t.Fatalf("expected tables to exist")
	}

	applied, err = runner.Run(ctx)
	if err != nil || applied != 0 {
		t.Fatalf("expected second run to be a no-op, got %d (%v)", applied, err)
	}

	status, err := runner.Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentVersion != "002" || len(status.Pending) != 0 || len(status.Applied) != 2 {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestRunnerRollsBackFailedMigration(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	fsys := fstest.MapFS{
		"m/001_create_a.sql": {Data: []byte("CREATE TABLE a (id TEXT PRIMARY KEY);")},
		"m/002_broken.sql":   {Data: []byte("CREATE TABLE c (id TEXT);\nINSERT INTO missing VALUES (1);")},
	}
	runner := NewRunner(db, fsys, "m", quietLogger())

	applied, err := runner.Run(context.Background())
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected first migration to stay applied, got %d", applied)
	}
	if tableExists(t, db, "c") {
		t.Fatalf("expected failed migration to be rolled back")
	}
}

func TestRunnerDetectsEditedMigrations(t *testing.T) {
	t.Parallel()

	db := openMemory(t)
	fsys := fstest.MapFS{"m/001_create_a.sql": {Data: []byte("CREATE TABLE a (id TEXT);")}}
	if _, err := NewRunner(db, fsys, "m", quietLogger()).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	fsys["m/001_create_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id TEXT, name TEXT);")}
	if _, err := NewRunner(db, fsys, "m", quietLogger()).Run(context.Background()); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}
