// Package store persists one subscription record per user and enforces the
// global uniqueness of payment transaction references.
package store

import (
	"context"
	"time"
)

// Status is the lifecycle state of a subscription row.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusExpired  Status = "expired"
	StatusRejected Status = "rejected"
)

// Reminder identifies which expiry reminder threshold a flag belongs to.
type Reminder int

const (
	ReminderTwoDays Reminder = 2
	ReminderOneDay  Reminder = 1
)

// Label returns the threshold name used in metrics and logs.
func (r Reminder) Label() string {
	if r == ReminderOneDay {
		return "1d"
	}
	return "2d"
}

// Subscription is one row per user, reused across renewal cycles.
type Subscription struct {
	UserID         int64      `json:"userId"`
	DisplayName    string     `json:"displayName"`
	Handle         string     `json:"handle"`
	TransactionRef string     `json:"transactionRef"`
	Status         Status     `json:"status"`
	StartAt        *time.Time `json:"startAt"`
	ExpireAt       *time.Time `json:"expireAt"`
	ReminderSent2d bool       `json:"reminderSent2d"`
	ReminderSent1d bool       `json:"reminderSent1d"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// ActiveRow is the narrow projection the expiry sweep iterates.
type ActiveRow struct {
	UserID         int64
	ExpireAt       time.Time
	ReminderSent2d bool
	ReminderSent1d bool
}

// Store is the backend-agnostic subscription persistence contract.
type Store interface {
	GetByUser(ctx context.Context, userID int64) (*Subscription, error)
	GetByTransaction(ctx context.Context, ref string) (*Subscription, error)

	// UpsertPending inserts a new row, or resets an existing user's row to
	// pending with the new reference. It fails with ErrDuplicateTransaction
	// when ref already belongs to any row, including the caller's own.
	UpsertPending(ctx context.Context, userID int64, displayName, handle, ref string, now time.Time) error

	// Activate sets status=active with the given window and clears both
	// reminder flags.
	Activate(ctx context.Context, userID int64, startAt, expireAt time.Time) error

	MarkExpired(ctx context.Context, userID int64) error
	MarkRejected(ctx context.Context, userID int64) error
	SetReminder(ctx context.Context, userID int64, r Reminder) error

	// ListActive returns a snapshot of all active rows at call time.
	ListActive(ctx context.Context) ([]ActiveRow, error)
}
