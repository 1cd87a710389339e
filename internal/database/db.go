// Package database persists children, mascots, subscriptions, prompt
// templates and the conversation audit log in SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/funnylearn/mascotchat/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// connPragmas are required by the store: foreign keys for children and
// mascots, a busy timeout for the audit writer, and text timestamps that
// compare correctly in the quota and retention queries.
const connPragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"

// NewDB opens the chat database at dbPath, creating its directory if needed,
// and brings the schema up to date.
func NewDB(dbPath string) (*sqlx.DB, error) {
	log := slog.Default().With("component", "database")

	if dir := filepath.Dir(schemaFile(dbPath)); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Connect("sqlite", withPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	// One connection: the audit writer and the admin API share a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	version, err := migrateUp(db.DB, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("Chat database ready", "path", dbPath, "schema_version", version)
	return db, nil
}

// CloseDB closes db, logging instead of returning the error.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Failed to close chat database", "error", err)
	}
}

// migrateUp applies the embedded migrations and returns the schema version.
func migrateUp(db *sql.DB, log *slog.Logger) (uint, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return 0, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	target, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("failed to prepare migration target: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrator: %w", err)
	}

	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("Schema already up to date")
	case err != nil:
		return 0, fmt.Errorf("failed to migrate chat database: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// schemaFile strips the file: scheme and any query from a DSN-style path.
func schemaFile(dbPath string) string {
	p := strings.TrimPrefix(dbPath, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// withPragmas appends connPragmas unless the caller supplied a query.
func withPragmas(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?" + connPragmas
}
