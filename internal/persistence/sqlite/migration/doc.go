// Package migration applies versioned schema changes to a SQLite database.
//
// Migrations are read from an fs.FS, usually an embedded directory, and must be
// named {version}_{description}.sql (for example "001_create_events.sql").
// Each file runs inside its own transaction and is recorded in the
// schema_migrations table so it is never applied twice.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig("events.db"))
//	if err != nil {
//		return err
//	}
//	runner := migration.NewRunner(db, migrationsFS, "migrations", logger)
//	if _, err := runner.Run(ctx); err != nil {
//		return err
//	}
package migration
