// Package engine orchestrates one attendance action end to end: acquire
// session, submit, interpret, retry on transient failure.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clockline/internal/config"
	"clockline/internal/domain"
	"clockline/internal/events"
	"clockline/internal/interpret"
	"clockline/internal/portal"
	"clockline/internal/repo"
	"clockline/internal/session"
)

// Engine is the single entry point surrounding components call. Requests are
// serialized against the shared portal session: the mutex is held across the
// whole acquire → submit → interpret sequence, so admitted requests are
// served in arrival order and the session is never used concurrently.
type Engine struct {
	Sessions *session.Manager
	Driver   portal.Driver
	Interp   *interpret.Interpreter
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Log      zerolog.Logger
	Now      func() time.Time
	Sleep    func(time.Duration)

	mu sync.Mutex
}

// New wires an Engine from a driver, an optional history database and config.
func New(driver portal.Driver, db *sql.DB, cfg *config.Config, log zerolog.Logger) *Engine {
	return &Engine{
		Sessions: session.New(driver, cfg.Portal.Credentials, cfg.Session.Staleness, log),
		Driver:   driver,
		Interp:   interpret.New(cfg.Catalog),
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Log:      log,
		Now:      time.Now,
		Sleep:    time.Sleep,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
	} else {
		time.Sleep(d)
	}
}

// Today returns the current calendar date in the configured timezone.
func (e *Engine) Today() string {
	return e.now().In(e.Config.Location()).Format("2006-01-02")
}

// Perform runs one attendance action and always returns a structured outcome
// with one of the five defined statuses; AuthError and NavigationError are
// wrapped, never propagated. Calling Perform twice for the same (kind, date)
// is safe: the portal reports the second attempt as already recorded.
func (e *Engine) Perform(ctx context.Context, req domain.ActionRequest) domain.ActionOutcome {
	if !req.Kind.Valid() {
		return e.finish(ctx, req, domain.StatusFatalError, "unknown action kind "+string(req.Kind))
	}
	if req.BaseDate == "" {
		req.BaseDate = e.Today()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	attempts := e.Config.Retry.Attempts
	var lastStatus domain.Status
	var lastDetail string
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			e.sleep(e.Config.Retry.Backoff)
		}
		status, detail, err := e.attempt(ctx, req)
		if err != nil {
			e.Log.Warn().Err(err).Int("attempt", attempt).Str("kind", string(req.Kind)).Msg("attendance attempt failed")
			e.Sessions.Invalidate()
			lastErr = err
			continue
		}
		if status == domain.StatusTransientError {
			e.Log.Warn().Str("detail", detail).Int("attempt", attempt).Msg("transient outcome, re-acquiring session")
			e.Sessions.Invalidate()
			lastStatus, lastDetail, lastErr = status, detail, nil
			continue
		}
		return e.finish(ctx, req, status, detail)
	}

	if lastErr != nil {
		var authErr domain.AuthError
		var navErr domain.NavigationError
		if errors.As(lastErr, &authErr) || errors.As(lastErr, &navErr) {
			return e.finish(ctx, req, domain.StatusFatalError, lastErr.Error())
		}
		return e.finish(ctx, req, domain.StatusTransientError, lastErr.Error())
	}
	return e.finish(ctx, req, lastStatus, lastDetail)
}

// attempt runs one acquire → submit → interpret pass.
func (e *Engine) attempt(ctx context.Context, req domain.ActionRequest) (domain.Status, string, error) {
	s, err := e.Sessions.Acquire(ctx)
	if err != nil {
		return "", "", err
	}
	pr, err := e.Driver.Submit(ctx, s, req)
	if err != nil {
		return "", "", err
	}
	status, detail := e.Interp.Classify(pr)
	return status, detail, nil
}

// finish builds the outcome and appends it to the history log. History is
// best effort: a write failure is logged, never surfaced to the caller.
func (e *Engine) finish(ctx context.Context, req domain.ActionRequest, status domain.Status, detail string) domain.ActionOutcome {
	outcome := domain.ActionOutcome{
		ID:       uuid.New().String(),
		Status:   status,
		Kind:     req.Kind,
		BaseDate: req.BaseDate,
		Detail:   detail,
		At:       e.now().UTC().Format(time.RFC3339),
	}
	if e.DB != nil {
		if err := e.Events.Append(ctx, outcome, req.Requester); err != nil {
			e.Log.Warn().Err(err).Str("id", outcome.ID).Msg("append action history")
		}
	}
	e.Log.Info().
		Str("id", outcome.ID).
		Str("kind", string(outcome.Kind)).
		Str("base_date", outcome.BaseDate).
		Str("status", string(outcome.Status)).
		Msg("attendance action finished")
	return outcome
}

// Close releases the portal session on shutdown.
func (e *Engine) Close() {
	e.Sessions.Close()
}
