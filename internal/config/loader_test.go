package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"golang.org/x/text/language"
)

var allKeys = []string{
	"EVENTS_HTTP_PORT",
	"EVENTS_SQLITE_DSN",
	"EVENTS_SESSION_TTL",
	"EVENTS_TIMEZONE",
	"EVENTS_LOCALE",
	"EVENTS_NOTIFY_TIMEOUT",
	"EVENTS_NATS_URL",
	"EVENTS_NATS_STREAM",
	"EVENTS_NATS_SUBJECT",
	"EVENTS_RECONCILE_SCHEDULE",
	"EVENTS_BOOTSTRAP_MODERATOR_EMAIL",
	"EVENTS_BOOTSTRAP_MODERATOR_PASSWORD",
	"EVENTS_BOOTSTRAP_MODERATOR_NAME",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		// t.Setenv registers restoration of the original value.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "events.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 24*time.Hour || cfg.Location != time.UTC || cfg.Locale != language.English {
			t.Fatalf("unexpected defaults %#v", cfg)
		}
		if !cfg.ReconcileEnabled() || cfg.NATSURL != "" || cfg.NATSSubject != "events.rsvp.notifications" {
			t.Fatalf("unexpected defaults %#v", cfg)
		}
	})

	t.Run("parses explicit values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EVENTS_HTTP_PORT", "9090")
		t.Setenv("EVENTS_SQLITE_DSN", "/var/lib/events/events.db")
		t.Setenv("EVENTS_SESSION_TTL", "2h")
		t.Setenv("EVENTS_TIMEZONE", "Africa/Lagos")
		t.Setenv("EVENTS_LOCALE", "fr")
		t.Setenv("EVENTS_NATS_URL", "nats://localhost:4222")
		t.Setenv("EVENTS_RECONCILE_SCHEDULE", "off")
		t.Setenv("EVENTS_BOOTSTRAP_MODERATOR_EMAIL", "mod@example.com")
		t.Setenv("EVENTS_BOOTSTRAP_MODERATOR_PASSWORD", "correct horse battery")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.SessionTTL != 2*time.Hour || cfg.SQLiteDSN != "/var/lib/events/events.db" {
			t.Fatalf("unexpected config %#v", cfg)
		}
		if cfg.Location.String() != "Africa/Lagos" || cfg.Locale != language.French {
			t.Fatalf("unexpected locale settings %v %v", cfg.Location, cfg.Locale)
		}
		if cfg.ReconcileEnabled() {
			t.Fatalf("expected reconciliation to be disabled")
		}
		if cfg.BootstrapModeratorName != "Moderator" || cfg.NATSURL != "nats://localhost:4222" {
			t.Fatalf("unexpected config %#v", cfg)
		}
	})

	t.Run("errors when bootstrap password is missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EVENTS_BOOTSTRAP_MODERATOR_EMAIL", "mod@example.com")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: EVENTS_BOOTSTRAP_MODERATOR_PASSWORD"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EVENTS_HTTP_PORT", "abc")
		t.Setenv("EVENTS_SESSION_TTL", "-1h")
		t.Setenv("EVENTS_TIMEZONE", "Mars/Olympus")
		t.Setenv("EVENTS_RECONCILE_SCHEDULE", "every now and then")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid environment variable values: EVENTS_HTTP_PORT, EVENTS_SESSION_TTL, EVENTS_TIMEZONE, EVENTS_RECONCILE_SCHEDULE"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("EVENTS_HTTP_PORT=7070\nEVENTS_LOCALE=de\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("EVENTS_LOCALE", "es")

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("expected port from env file, got %d", cfg.HTTPPort)
	}
	if cfg.Locale != language.Spanish {
		t.Fatalf("expected existing variable to win, got %v", cfg.Locale)
	}
}
