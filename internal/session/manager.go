// Package session owns the single authenticated portal session: acquisition,
// staleness tracking, invalidation and teardown.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clockline/internal/domain"
	"clockline/internal/portal"
)

// Manager holds at most one live portal session. Acquire reuses it while it
// is live and fresh, and performs a full login otherwise. Login failures
// surface as domain.AuthError; retry policy belongs to the engine, never
// here.
type Manager struct {
	Driver      portal.Driver
	Credentials domain.Credentials
	Staleness   time.Duration
	Log         zerolog.Logger
	Now         func() time.Time

	mu      sync.Mutex
	current *portal.Session
}

// New builds a Manager around a driver.
func New(driver portal.Driver, creds domain.Credentials, staleness time.Duration, log zerolog.Logger) *Manager {
	return &Manager{
		Driver:      driver,
		Credentials: creds,
		Staleness:   staleness,
		Log:         log,
		Now:         time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Acquire returns the current session when it is live and under the
// staleness threshold, otherwise logs in for a fresh one.
func (m *Manager) Acquire(ctx context.Context) (*portal.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.current.Live() && m.current.Age(now) < m.Staleness {
		return m.current, nil
	}
	if m.current != nil {
		m.Log.Debug().Time("last_activity", m.current.LastActivity).Msg("session stale or dead, re-login")
		m.current.MarkDead()
		m.current = nil
	}

	s, err := m.Driver.Login(ctx, m.Credentials)
	if err != nil {
		return nil, err
	}
	m.current = s
	m.Log.Info().Time("created_at", s.CreatedAt).Msg("portal session acquired")
	return s, nil
}

// Invalidate marks the current session dead; the next Acquire forces a
// re-login.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.MarkDead()
		m.current = nil
		m.Log.Debug().Msg("portal session invalidated")
	}
}

// Close tears the session down on process shutdown.
func (m *Manager) Close() {
	m.Invalidate()
}
