package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/clubhub/internal/apperrors"
	"github.com/nkiryanov/clubhub/internal/models"
)

type AttendanceRepo struct {
	DB DBTX
}

const registerAttendee = `-- name: RegisterAttendee
INSERT INTO attendance (session_id, username, status, in_charge)
VALUES ($1, $2, 'absent', $3)
RETURNING session_id, username, status, in_charge
`

func (r *AttendanceRepo) Register(ctx context.Context, sessionID int64, username string, inCharge bool) (models.AttendanceRecord, error) {
	rows, _ := r.DB.Query(ctx, registerAttendee, sessionID, username, inCharge)
	record, err := pgx.CollectOneRow(rows, rowToAttendance)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return record, apperrors.ErrAlreadyRegistered
		}

		return record, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

const getAttendance = `-- name: GetAttendance
SELECT session_id, username, status, in_charge
FROM attendance
WHERE session_id = $1 AND username = $2
`

func (r *AttendanceRepo) Get(ctx context.Context, sessionID int64, username string) (models.AttendanceRecord, error) {
	rows, _ := r.DB.Query(ctx, getAttendance, sessionID, username)
	record, err := pgx.CollectOneRow(rows, rowToAttendance)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		return record, apperrors.ErrNotRegistered
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

const markAttended = `-- name: MarkAttended
UPDATE attendance
SET status = 'attended'
WHERE session_id = $1 AND username = $2 AND status = 'absent'
`

// MarkAttended flips absent -> attended as one conditional write against
// the composite-key row. Check and mutation are the same statement, so of
// N concurrent callers exactly one sees RowsAffected() == 1. The
// disambiguating read runs only on the miss path and never mutates.
func (r *AttendanceRepo) MarkAttended(ctx context.Context, sessionID int64, username string) error {
	tag, err := r.DB.Exec(ctx, markAttended, sessionID, username)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Lost the conditional write: either the row is missing or someone was
	// first. The row never moves back to absent, so this read is stable.
	record, err := r.Get(ctx, sessionID, username)
	if err != nil {
		return err
	}

	if record.Status != models.StatusAbsent {
		return apperrors.ErrAlreadyAttended
	}

	return errors.New("programming error, should never be here")
}

const listInCharge = `-- name: ListInCharge
SELECT username FROM attendance
WHERE session_id = $1 AND in_charge = TRUE
ORDER BY username
`

func (r *AttendanceRepo) ListInCharge(ctx context.Context, sessionID int64) ([]string, error) {
	rows, _ := r.DB.Query(ctx, listInCharge, sessionID)
	usernames, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return usernames, nil
}

func rowToAttendance(row pgx.CollectableRow) (models.AttendanceRecord, error) {
	var a models.AttendanceRecord
	err := row.Scan(&a.SessionID, &a.Username, &a.Status, &a.InCharge)
	return a, err
}
