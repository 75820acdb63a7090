// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	errs "subscription-bot/internal/common/errors"
	"subscription-bot/internal/common/logger"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

const schemaQuery = `
CREATE TABLE IF NOT EXISTS subscriptions (
    user_id BIGINT PRIMARY KEY,
    display_name TEXT NOT NULL DEFAULT '',
    handle TEXT NOT NULL DEFAULT '',
    transaction_ref TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    start_at TIMESTAMPTZ,
    expire_at TIMESTAMPTZ,
    reminder_sent_2d BOOLEAN NOT NULL DEFAULT FALSE,
    reminder_sent_1d BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions (status);
`

// The WHERE guard turns a same-user resubmission of an already-stored
// reference into a zero-row result instead of a silent no-op update, and a
// reference owned by another row trips the unique constraint. Either way the
// uniqueness check is done by the database in the same statement, so two
// concurrent submissions of one reference cannot both land.
const upsertPendingQuery = `
INSERT INTO subscriptions (user_id, display_name, handle, transaction_ref, status, created_at)
VALUES ($1, $2, $3, $4, 'pending', $5)
ON CONFLICT (user_id) DO UPDATE SET
    display_name = EXCLUDED.display_name,
    handle = EXCLUDED.handle,
    transaction_ref = EXCLUDED.transaction_ref,
    status = 'pending'
WHERE subscriptions.transaction_ref IS DISTINCT FROM EXCLUDED.transaction_ref
RETURNING user_id`

const getByUserQuery = `
SELECT user_id, display_name, handle, transaction_ref, status, start_at, expire_at, reminder_sent_2d, reminder_sent_1d, created_at
FROM subscriptions WHERE user_id = $1`

const getByTransactionQuery = `
SELECT user_id, display_name, handle, transaction_ref, status, start_at, expire_at, reminder_sent_2d, reminder_sent_1d, created_at
FROM subscriptions WHERE transaction_ref = $1`

const activateQuery = `
UPDATE subscriptions
SET status = 'active', start_at = $2, expire_at = $3, reminder_sent_2d = FALSE, reminder_sent_1d = FALSE
WHERE user_id = $1`

const markExpiredQuery = `UPDATE subscriptions SET status = 'expired' WHERE user_id = $1`

const markRejectedQuery = `UPDATE subscriptions SET status = 'rejected' WHERE user_id = $1 AND status = 'pending'`

const listActiveQuery = `
SELECT user_id, expire_at, reminder_sent_2d, reminder_sent_1d
FROM subscriptions WHERE status = 'active'`

// PostgresStore implements Store on a pooled PostgreSQL connection.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// EnsureSchema creates the subscriptions table and status index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaQuery); err != nil {
		return errs.NewStorageFailureError(err)
	}
	return nil
}

func (s *PostgresStore) GetByUser(ctx context.Context, userID int64) (*Subscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, getByUserQuery, userID), userID)
}

func (s *PostgresStore) GetByTransaction(ctx context.Context, ref string) (*Subscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, getByTransactionQuery, ref), 0)
}

func (s *PostgresStore) scanOne(row *sql.Row, userID int64) (*Subscription, error) {
	var (
		sub      Subscription
		startAt  sql.NullTime
		expireAt sql.NullTime
	)
	err := row.Scan(
		&sub.UserID, &sub.DisplayName, &sub.Handle, &sub.TransactionRef, &sub.Status,
		&startAt, &expireAt, &sub.ReminderSent2d, &sub.ReminderSent1d, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError(userID)
		}
		return nil, errs.NewStorageFailureError(err)
	}
	if startAt.Valid {
		sub.StartAt = &startAt.Time
	}
	if expireAt.Valid {
		sub.ExpireAt = &expireAt.Time
	}
	return &sub, nil
}

func (s *PostgresStore) UpsertPending(ctx context.Context, userID int64, displayName, handle, ref string, now time.Time) error {
	var id int64
	err := s.db.QueryRowContext(ctx, upsertPendingQuery, userID, displayName, handle, ref, now).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Own row already holds this reference, nothing was mutated.
			return errs.NewDuplicateTransactionError(ref)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return errs.NewDuplicateTransactionError(ref)
		}
		return errs.NewStorageFailureError(err)
	}
	return nil
}

func (s *PostgresStore) Activate(ctx context.Context, userID int64, startAt, expireAt time.Time) error {
	return s.execOne(ctx, activateQuery, userID, startAt, expireAt)
}

func (s *PostgresStore) MarkExpired(ctx context.Context, userID int64) error {
	return s.execOne(ctx, markExpiredQuery, userID)
}

func (s *PostgresStore) MarkRejected(ctx context.Context, userID int64) error {
	// Only a pending row can be rejected; an already-approved or expired row
	// is left alone, which also makes a stale Reject click harmless.
	_, err := s.db.ExecContext(ctx, markRejectedQuery, userID)
	if err != nil {
		return errs.NewStorageFailureError(err)
	}
	return nil
}

func (s *PostgresStore) SetReminder(ctx context.Context, userID int64, r Reminder) error {
	var column string
	switch r {
	case ReminderTwoDays:
		column = "reminder_sent_2d"
	case ReminderOneDay:
		column = "reminder_sent_1d"
	default:
		return errs.NewValidationError(fmt.Sprintf("unknown reminder threshold: %d", r))
	}
	query := fmt.Sprintf("UPDATE subscriptions SET %s = TRUE WHERE user_id = $1", column)
	return s.execOne(ctx, query, userID)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]ActiveRow, error) {
	rows, err := s.db.QueryContext(ctx, listActiveQuery)
	if err != nil {
		return nil, errs.NewStorageFailureError(err)
	}
	defer rows.Close()

	var out []ActiveRow
	for rows.Next() {
		var row ActiveRow
		if err := rows.Scan(&row.UserID, &row.ExpireAt, &row.ReminderSent2d, &row.ReminderSent1d); err != nil {
			return nil, errs.NewStorageFailureError(err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewStorageFailureError(err)
	}
	return out, nil
}

func (s *PostgresStore) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.NewStorageFailureError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errs.NewStorageFailureError(err)
	}
	if affected == 0 {
		userID, _ := args[0].(int64)
		return errs.NewNotFoundError(userID)
	}
	return nil
}
