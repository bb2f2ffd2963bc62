package migration

import (
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSQLiteConfigValidate(t *testing.T) {
	t.Parallel()

	valid := DefaultSQLiteConfig("events.db")
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected default config to be valid: %v", err)
	}

	tests := map[string]func(*SQLiteConfig){
		"empty dsn":          func(c *SQLiteConfig) { c.DSN = " " },
		"negative timeout":   func(c *SQLiteConfig) { c.BusyTimeout = -time.Second },
		"bad journal mode":   func(c *SQLiteConfig) { c.JournalMode = "FAST" },
		"bad synchronous":    func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" },
		"negative open conn": func(c *SQLiteConfig) { c.MaxOpenConns = -1 },
	}
	for name, mutate := range tests {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultSQLiteConfig("events.db")
			mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSQLiteConfigDriverDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultSQLiteConfig("data/events.db")
	dsn := cfg.DriverDSN()

	path, query, ok := strings.Cut(dsn, "?")
	if !ok || path != "data/events.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}
	pragmas := strings.Join(values["_pragma"], " ")
	for _, want := range []string{"busy_timeout(30000)", "foreign_keys(1)", "journal_mode(WAL)", "synchronous(NORMAL)", "cache_size(-2000)"} {
		if !strings.Contains(pragmas, want) {
			t.Fatalf("expected %s in %q", want, pragmas)
		}
	}
}

func TestSQLiteConfigMemorySkipsWAL(t *testing.T) {
	t.Parallel()

	cfg := InMemoryTestSQLiteConfig()
	cfg.JournalMode = "WAL"
	if !cfg.IsMemory() {
		t.Fatalf("expected in-memory config")
	}
	for _, pragma := range cfg.Pragmas() {
		if strings.HasPrefix(pragma, "journal_mode") {
			t.Fatalf("expected WAL to be skipped for memory databases, got %s", pragma)
		}
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "events.db")
	db, err := Open(TempFileTestSQLiteConfig(dbPath))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("PRAGMA query failed: %v", err)
	}
	if enabled != 1 {
		t.Fatalf("expected foreign keys to be enabled")
	}
}
