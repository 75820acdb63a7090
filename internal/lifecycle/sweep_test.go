// internal/lifecycle/sweep_test.go
package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "subscription-bot/internal/common/errors"
	"subscription-bot/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeRow(userID int64, expireAt time.Time) store.ActiveRow {
	return store.ActiveRow{UserID: userID, ExpireAt: expireAt}
}

// ==========================
// Sweep Tests
// ==========================

func TestEngine_Sweep_FirstReminder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listRows: []store.ActiveRow{
		activeRow(42, now.Add(2*24*time.Hour+time.Hour)),
	}}
	n := &fakeNotifier{}
	gate := &fakeGate{}
	engine := newTestEngine(t, st, n, gate, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1, Reminded: 1}, stats)
	require.Len(t, st.reminders, 1)
	assert.Equal(t, store.ReminderTwoDays, st.reminders[0].reminder)
	assert.Equal(t, msgReminder(2), n.lastUserMessage())
	assert.Empty(t, gate.kicked)
	assert.Empty(t, st.expired)
}

func TestEngine_Sweep_FinalReminder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listRows: []store.ActiveRow{
		{UserID: 42, ExpireAt: now.Add(1*24*time.Hour + time.Hour), ReminderSent2d: true},
	}}
	n := &fakeNotifier{}
	engine := newTestEngine(t, st, n, &fakeGate{}, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1, Reminded: 1}, stats)
	require.Len(t, st.reminders, 1)
	assert.Equal(t, store.ReminderOneDay, st.reminders[0].reminder)
	assert.Equal(t, msgReminder(1), n.lastUserMessage())
}

func TestEngine_Sweep_ExpiryKicksAndMarks(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listRows: []store.ActiveRow{
		{UserID: 42, ExpireAt: now.Add(-time.Second), ReminderSent2d: true, ReminderSent1d: true},
	}}
	n := &fakeNotifier{}
	gate := &fakeGate{}
	engine := newTestEngine(t, st, n, gate, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1, Expired: 1}, stats)
	assert.Equal(t, []int64{42}, gate.kicked)
	assert.Equal(t, []int64{42}, st.expired)
	assert.Equal(t, msgExpired, n.lastUserMessage())
}

func TestEngine_Sweep_KickFailureStillExpires(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listRows: []store.ActiveRow{
		{UserID: 42, ExpireAt: now.Add(-time.Hour)},
	}}
	gate := &fakeGate{kickErr: errors.New("user not in channel")}
	engine := newTestEngine(t, st, &fakeNotifier{}, gate, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, []int64{42}, st.expired, "the status transition never waits on the channel API")
}

func TestEngine_Sweep_RepeatedRunsAreIdempotent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// Both reminder flags already set: a second pass over the same snapshot
	// must send nothing.
	st := &fakeStore{listRows: []store.ActiveRow{
		{UserID: 1, ExpireAt: now.Add(2*24*time.Hour + time.Hour), ReminderSent2d: true},
		{UserID: 2, ExpireAt: now.Add(1*24*time.Hour + time.Hour), ReminderSent2d: true, ReminderSent1d: true},
	}}
	n := &fakeNotifier{}
	engine := newTestEngine(t, st, n, &fakeGate{}, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 2}, stats)
	assert.Empty(t, n.userMessages)
	assert.Empty(t, st.reminders)
}

func TestEngine_Sweep_ChecksAreMutuallyExclusive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// A row in the final-reminder window with the flag already set is left
	// alone; it must not fall through into the expiry branch.
	st := &fakeStore{listRows: []store.ActiveRow{
		{UserID: 42, ExpireAt: now.Add(1*24*time.Hour + time.Hour), ReminderSent1d: true},
	}}
	gate := &fakeGate{}
	engine := newTestEngine(t, st, &fakeNotifier{}, gate, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1}, stats)
	assert.Empty(t, gate.kicked)
	assert.Empty(t, st.expired)
}

func TestEngine_Sweep_RowFailureIsIsolated(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// The first row needs a flag write that will fail; the second row expires
	// and must still be processed.
	st := &fakeStore{
		listRows: []store.ActiveRow{
			{UserID: 1, ExpireAt: now.Add(2*24*time.Hour + time.Hour)},
			{UserID: 2, ExpireAt: now.Add(-time.Hour)},
		},
		setReminderErr: errs.NewStorageFailureError(errors.New("deadlock")),
	}
	gate := &fakeGate{}
	engine := newTestEngine(t, st, &fakeNotifier{}, gate, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 2, Expired: 1, RowErrors: 1}, stats)
	assert.Equal(t, []int64{2}, st.expired)
}

func TestEngine_Sweep_ReminderDeliveryFailureLeavesFlagUnset(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listRows: []store.ActiveRow{
		activeRow(42, now.Add(2*24*time.Hour+time.Hour)),
	}}
	n := &fakeNotifier{sendErr: errors.New("blocked by user")}
	engine := newTestEngine(t, st, n, &fakeGate{}, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, SweepStats{Scanned: 1, RowErrors: 1}, stats)
	assert.Empty(t, st.reminders, "an undelivered reminder stays eligible for the next run")
}

func TestEngine_Sweep_SnapshotFailure(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{listErr: errs.NewStorageFailureError(errors.New("connection refused"))}
	engine := newTestEngine(t, st, &fakeNotifier{}, &fakeGate{}, Config{})

	stats, err := engine.Sweep(context.Background(), now)

	assert.True(t, errors.Is(err, errs.ErrStorage))
	assert.Equal(t, SweepStats{}, stats)
}
