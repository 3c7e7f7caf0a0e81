// Package migrate bootstraps the action history schema. Steps are embedded
// SQL scripts applied in order inside one transaction; the applied version
// lives in a schema_version table in the same database.
package migrate

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed sql/0001_actions.sql
var actionsSchema string

type step struct {
	version int
	name    string
	script  string
}

// steps is the ordered history schema. New changes append a step; versions
// are never reused or reordered.
var steps = []step{
	{version: 1, name: "actions history", script: actionsSchema},
}

// Migrate brings the history database up to the newest schema version. Safe
// to call on every startup; an already-current database is a no-op.
func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin history migration: %w", err)
	}
	defer tx.Rollback()

	version, err := currentVersion(tx)
	if err != nil {
		return err
	}
	for _, s := range steps {
		if s.version <= version {
			continue
		}
		if _, err := tx.Exec(s.script); err != nil {
			return fmt.Errorf("history migration %d (%s): %w", s.version, s.name, err)
		}
		if _, err := tx.Exec(`UPDATE schema_version SET version=?`, s.version); err != nil {
			return fmt.Errorf("record history version %d: %w", s.version, err)
		}
		version = s.version
	}
	return tx.Commit()
}

// Version reports the applied schema version, for diagnostics.
func Version(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

func currentVersion(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS schema_version(version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var v int
	err := tx.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&v)
	if err == sql.ErrNoRows {
		if _, err := tx.Exec(`INSERT INTO schema_version(version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("init schema_version: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return v, nil
}
