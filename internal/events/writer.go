package events

import (
	"context"
	"database/sql"

	"clockline/internal/domain"
)

// Writer appends action outcomes to the history log. The log is operational
// diagnostics; the portal remains the authoritative attendance record.
type Writer struct {
	DB *sql.DB
}

func (w Writer) Append(ctx context.Context, outcome domain.ActionOutcome, actor string) error {
	_, err := w.DB.ExecContext(ctx,
		`INSERT INTO actions(id,kind,base_date,status,detail,actor,at) VALUES (?,?,?,?,?,?,?)`,
		outcome.ID, string(outcome.Kind), outcome.BaseDate, string(outcome.Status),
		nullable(outcome.Detail), nullable(actor), outcome.At)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
