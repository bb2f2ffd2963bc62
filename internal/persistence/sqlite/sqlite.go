package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/community-events/internal/persistence"
	"github.com/example/community-events/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the SQLite repositories over one connection pool.
type Store struct {
	*EventRepository
	*RSVPRepository
	*ModeratorRepository
	*SessionRepository
	*NotificationRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

var (
	_ persistence.EventRepository        = (*Store)(nil)
	_ persistence.RSVPRepository         = (*Store)(nil)
	_ persistence.ModeratorRepository    = (*Store)(nil)
	_ persistence.SessionRepository      = (*Store)(nil)
	_ persistence.NotificationRepository = (*Store)(nil)
)

// Open opens the database at path with the server defaults.
func Open(path string) (*Store, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(path), nil)
}

// OpenWithConfig opens a store using config. A nil logger falls back to slog.Default.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", config.DSN, err)
	}
	return &Store{
		EventRepository:        NewEventRepository(pool),
		RSVPRepository:         NewRSVPRepository(pool),
		ModeratorRepository:    NewModeratorRepository(pool),
		SessionRepository:      NewSessionRepository(pool),
		NotificationRepository: NewNotificationRepository(pool),
		pool:                   pool,
		logger:                 logger,
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping reports persistence.ErrUnavailable when the database cannot be reached.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies the embedded schema migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	runner := migration.NewRunner(s.pool.DB(), migrationFiles, "migrations", s.logger)
	applied, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	if applied > 0 {
		s.logger.InfoContext(ctx, "database migrated", slog.Int("applied", applied))
	}
	return nil
}
