package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

const versionTableSQL = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL DEFAULT 0
	)
`

// Runner applies pending migrations from a filesystem to a database.
type Runner struct {
	db     *sql.DB
	source fs.FS
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner constructs a Runner reading migrations from dir within source.
func NewRunner(db *sql.DB, source fs.FS, dir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		db:     db,
		source: source,
		dir:    dir,
		now:    time.Now,
		logger: logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order and returns how many
// were applied. A migration that fails leaves earlier ones committed.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if err := r.initVersionTable(ctx); err != nil {
		return 0, err
	}

	status, err := r.Status(ctx)
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "schema version checked",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)

	for i, migration := range status.Pending {
		started := r.now()
		if err := r.apply(ctx, migration, started); err != nil {
			r.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version,
				"file", migration.FilePath,
				"error", err,
			)
			return i, NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		r.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", r.now().Sub(started),
		)
	}
	return len(status.Pending), nil
}

// Status compares the migration files with the schema_migrations table.
func (r *Runner) Status(ctx context.Context) (Status, error) {
	if err := r.initVersionTable(ctx); err != nil {
		return Status{}, err
	}

	migrations, err := Scan(r.source, r.dir)
	if err != nil {
		return Status{}, err
	}

	applied, err := r.applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[string]AppliedMigration, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a
	}

	status := Status{Applied: applied}
	for _, migration := range migrations {
		a, ok := byVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if a.Checksum != "" && a.Checksum != migration.Checksum {
			return Status{}, NewMigrationError(migration.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		status.CurrentVersion = migration.Version
	}
	return status, nil
}

func (r *Runner) initVersionTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, versionTableSQL); err != nil {
		return NewDatabaseError("", versionTableSQL, "create schema_migrations table", err)
	}
	return nil
}

func (r *Runner) applied(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, checksum, applied_at, execution_time_ms
		FROM schema_migrations
		ORDER BY CAST(version AS INTEGER) ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, NewDatabaseError("", query, "list applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			a           AppliedMigration
			appliedAt   string
			executionMS int64
		)
		if err := rows.Scan(&a.Version, &a.Checksum, &appliedAt, &executionMS); err != nil {
			return nil, NewDatabaseError("", query, "scan applied migration", err)
		}
		if parsed, err := time.Parse(time.RFC3339, appliedAt); err == nil {
			a.AppliedAt = parsed
		}
		a.ExecutionTime = time.Duration(executionMS) * time.Millisecond
		applied = append(applied, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError("", query, "iterate applied migrations", err)
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, migration Migration, started time.Time) (err error) {
	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return fmt.Errorf("%w: no SQL statements found", ErrInvalidMigrationFile)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return NewDatabaseError(migration.Version, "", "begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.WarnContext(ctx, "migration rollback failed", "version", migration.Version, "error", rbErr)
			}
		}
	}()

	for i, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return NewDatabaseError(migration.Version, stmt, fmt.Sprintf("execute statement %d", i+1), err)
		}
	}

	const record = `
		INSERT INTO schema_migrations (version, description, checksum, applied_at, execution_time_ms)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err = tx.ExecContext(ctx, record,
		migration.Version,
		migration.Description,
		migration.Checksum,
		r.now().UTC().Format(time.RFC3339),
		r.now().Sub(started).Milliseconds(),
	); err != nil {
		return NewDatabaseError(migration.Version, record, "record migration", err)
	}

	if err = tx.Commit(); err != nil {
		return NewDatabaseError(migration.Version, "", "commit transaction", err)
	}
	return nil
}
