// Package app wires configuration, the history database and the engine for
// the CLI entry points.
package app

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"clockline/internal/config"
	"clockline/internal/db"
	"clockline/internal/engine"
	"clockline/internal/migrate"
	"clockline/internal/portal"
)

// App is the assembled process: validated config, migrated history database
// and a ready engine.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Engine *engine.Engine
	Log    zerolog.Logger
}

// Build loads config from the environment, validates required credentials
// (fatal at startup, never per request), loads the pattern catalog from the
// workspace and assembles the engine on the browser driver.
func Build(workspace string, log zerolog.Logger) (*App, error) {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	cat, err := config.LoadCatalog(workspace)
	if err != nil {
		return nil, fmt.Errorf("pattern catalog: %w", err)
	}
	cfg.Catalog = cat

	conn, err := db.Open(workspace)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	endpoints := portal.NewEndpoints(cfg.Portal.LoginURL, cfg.Portal.Credentials.Subdomain)
	driver := portal.NewBrowser(endpoints, cfg.Portal.LoginTimeout, cfg.Portal.SubmitTimeout, log)
	eng := engine.New(driver, conn, cfg, log)

	return &App{Config: cfg, DB: conn, Engine: eng, Log: log}, nil
}

// Close releases the portal session and the database.
func (a *App) Close() {
	a.Engine.Close()
	a.DB.Close()
}
