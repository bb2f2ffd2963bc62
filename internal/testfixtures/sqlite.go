package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/community-events/internal/persistence"
	"github.com/example/community-events/internal/persistence/sqlite"
	"github.com/example/community-events/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a migrated temporary
// SQLite database.
type SQLiteHarness struct {
	Store      *sqlite.Store
	Events     persistence.EventRepository
	RSVPs      persistence.RSVPRepository
	Moderators persistence.ModeratorRepository
	Sessions   persistence.SessionRepository
	// Notifications backs inbox entries and preferences.
	Notifications persistence.NotificationRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a temporary database. The harness is
// closed automatically when tb finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "events.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.OpenWithConfig(migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:         store,
		Events:        store,
		RSVPs:         store,
		Moderators:    store,
		Sessions:      store,
		Notifications: store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedEvents stores each fixture and returns the stored rows.
func (h *SQLiteHarness) SeedEvents(tb testing.TB, fixtures ...EventFixture) []persistence.Event {
	tb.Helper()
	stored := make([]persistence.Event, 0, len(fixtures))
	for _, fixture := range fixtures {
		event, err := h.Events.CreateEvent(context.Background(), fixture.Persistence())
		if err != nil {
			tb.Fatalf("failed to seed event %s: %v", fixture.ID, err)
		}
		stored = append(stored, event)
	}
	return stored
}

// SeedRSVPs stores each fixture and returns the stored rows.
func (h *SQLiteHarness) SeedRSVPs(tb testing.TB, fixtures ...RSVPFixture) []persistence.RSVP {
	tb.Helper()
	stored := make([]persistence.RSVP, 0, len(fixtures))
	for _, fixture := range fixtures {
		rsvp, err := h.RSVPs.CreateRSVP(context.Background(), fixture.Persistence())
		if err != nil {
			tb.Fatalf("failed to seed rsvp %s: %v", fixture.ID, err)
		}
		stored = append(stored, rsvp)
	}
	return stored
}

// SeedModerator stores fixture and returns the stored row.
func (h *SQLiteHarness) SeedModerator(tb testing.TB, fixture ModeratorFixture) persistence.Moderator {
	tb.Helper()
	moderator, err := h.Moderators.CreateModerator(context.Background(), fixture.Persistence())
	if err != nil {
		tb.Fatalf("failed to seed moderator %s: %v", fixture.ID, err)
	}
	return moderator
}
