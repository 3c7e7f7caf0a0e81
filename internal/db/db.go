// Package db opens the workspace-scoped SQLite history database under
// <workspace>/.clockline/clockline.db.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".clockline"
	fileName     = "clockline.db"
)

func root(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir)
}

// Path returns the history database path for a workspace.
func Path(workspace string) string {
	return filepath.Join(root(workspace), fileName)
}

// EnsureWorkspace creates the .clockline directory if missing and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := root(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return dir, nil
}

// Open ensures the workspace exists and opens the history database. The busy
// timeout keeps a long-running serve process and a concurrent `cl log tail`
// from tripping over the write lock.
func Open(workspace string) (*sql.DB, error) {
	if _, err := EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return conn, nil
}
