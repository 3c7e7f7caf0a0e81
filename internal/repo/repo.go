package repo

import (
	"context"
	"database/sql"
	"errors"

	"clockline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// GetAction returns one history row by id.
func (r Repo) GetAction(ctx context.Context, id string) (domain.ActionRecord, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id,kind,base_date,status,COALESCE(detail,''),COALESCE(actor,''),at FROM actions WHERE id=?`, id)
	var rec domain.ActionRecord
	err := row.Scan(&rec.ID, &rec.Kind, &rec.BaseDate, &rec.Status, &rec.Detail, &rec.Actor, &rec.At)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

// ListRecentActions returns the newest history rows, newest first.
func (r Repo) ListRecentActions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,kind,base_date,status,COALESCE(detail,''),COALESCE(actor,''),at FROM actions ORDER BY at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActionRecord
	for rows.Next() {
		var rec domain.ActionRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.BaseDate, &rec.Status, &rec.Detail, &rec.Actor, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListActionsAfter returns history rows strictly after the (at, id) cursor,
// oldest first. The pair matches the (at, id) ordering, so rows sharing the
// cursor's second-granularity timestamp are still picked up.
func (r Repo) ListActionsAfter(ctx context.Context, afterAt, afterID string, limit int) ([]domain.ActionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,kind,base_date,status,COALESCE(detail,''),COALESCE(actor,''),at FROM actions
		 WHERE at > ? OR (at = ? AND id > ?) ORDER BY at ASC, id ASC LIMIT ?`, afterAt, afterAt, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ActionRecord
	for rows.Next() {
		var rec domain.ActionRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.BaseDate, &rec.Status, &rec.Detail, &rec.Actor, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
