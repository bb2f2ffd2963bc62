package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// ReconcileOff disables the scheduled attendee count reconciliation.
const ReconcileOff = "off"

// Config captures environment driven configuration values for the events service.
type Config struct {
	HTTPPort          int
	SQLiteDSN         string
	SessionTTL        time.Duration
	Location          *time.Location
	Locale            language.Tag
	NotifyTimeout     time.Duration
	NATSURL           string
	NATSStream        string
	NATSSubject       string
	ReconcileSchedule string

	BootstrapModeratorEmail    string
	BootstrapModeratorPassword string
	BootstrapModeratorName     string
}

// ReconcileEnabled reports whether a reconciliation schedule is configured.
func (c Config) ReconcileEnabled() bool {
	return c.ReconcileSchedule != "" && !strings.EqualFold(c.ReconcileSchedule, ReconcileOff)
}

// LoadDotEnv loads variables from the named files into the process
// environment without overriding values that are already set. Missing files
// are ignored.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or malformed variable
// is reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:          8080,
		SQLiteDSN:         "events.db",
		SessionTTL:        24 * time.Hour,
		Location:          time.UTC,
		Locale:            language.English,
		NotifyTimeout:     5 * time.Second,
		NATSStream:        "EVENTS_RSVP_NOTIFICATIONS",
		NATSSubject:       "events.rsvp.notifications",
		ReconcileSchedule: "@every 15m",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := env("EVENTS_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "EVENTS_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := env("EVENTS_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := env("EVENTS_SESSION_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "EVENTS_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := env("EVENTS_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			invalid = append(invalid, "EVENTS_TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	if locale := env("EVENTS_LOCALE"); locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			invalid = append(invalid, "EVENTS_LOCALE")
		} else {
			cfg.Locale = tag
		}
	}

	if timeoutValue := env("EVENTS_NOTIFY_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "EVENTS_NOTIFY_TIMEOUT")
		} else {
			cfg.NotifyTimeout = timeout
		}
	}

	cfg.NATSURL = env("EVENTS_NATS_URL")
	if stream := env("EVENTS_NATS_STREAM"); stream != "" {
		cfg.NATSStream = stream
	}
	if subject := env("EVENTS_NATS_SUBJECT"); subject != "" {
		cfg.NATSSubject = subject
	}

	if schedule := env("EVENTS_RECONCILE_SCHEDULE"); schedule != "" {
		cfg.ReconcileSchedule = schedule
	}
	if cfg.ReconcileEnabled() {
		if _, err := cron.ParseStandard(cfg.ReconcileSchedule); err != nil {
			invalid = append(invalid, "EVENTS_RECONCILE_SCHEDULE")
		}
	}

	cfg.BootstrapModeratorEmail = env("EVENTS_BOOTSTRAP_MODERATOR_EMAIL")
	cfg.BootstrapModeratorName = env("EVENTS_BOOTSTRAP_MODERATOR_NAME")
	cfg.BootstrapModeratorPassword = os.Getenv("EVENTS_BOOTSTRAP_MODERATOR_PASSWORD")
	if cfg.BootstrapModeratorEmail != "" {
		if cfg.BootstrapModeratorPassword == "" {
			missing = append(missing, "EVENTS_BOOTSTRAP_MODERATOR_PASSWORD")
		}
		if cfg.BootstrapModeratorName == "" {
			cfg.BootstrapModeratorName = "Moderator"
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
