// internal/store/cache_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"subscription-bot/internal/common/logger"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// recordingStore counts calls so tests can tell whether the cache layer
// actually reached the inner store.
type recordingStore struct {
	sub        *Subscription
	getByUser  int
	activates  int
	upserts    int
	expires    int
	rejects    int
	reminders  int
	listActive int
}

func (r *recordingStore) GetByUser(ctx context.Context, userID int64) (*Subscription, error) {
	r.getByUser++
	return r.sub, nil
}

func (r *recordingStore) GetByTransaction(ctx context.Context, ref string) (*Subscription, error) {
	return r.sub, nil
}

func (r *recordingStore) UpsertPending(ctx context.Context, userID int64, displayName, handle, ref string, now time.Time) error {
	r.upserts++
	return nil
}

func (r *recordingStore) Activate(ctx context.Context, userID int64, startAt, expireAt time.Time) error {
	r.activates++
	return nil
}

func (r *recordingStore) MarkExpired(ctx context.Context, userID int64) error {
	r.expires++
	return nil
}

func (r *recordingStore) MarkRejected(ctx context.Context, userID int64) error {
	r.rejects++
	return nil
}

func (r *recordingStore) SetReminder(ctx context.Context, userID int64, rem Reminder) error {
	r.reminders++
	return nil
}

func (r *recordingStore) ListActive(ctx context.Context) ([]ActiveRow, error) {
	r.listActive++
	return nil, nil
}

func testSubscription() *Subscription {
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return &Subscription{
		UserID:         42,
		DisplayName:    "Aung Aung",
		Handle:         "aung",
		TransactionRef: "123456789",
		Status:         StatusActive,
		CreatedAt:      created,
	}
}

// ==========================
// CachedStore Tests
// ==========================

func TestCachedStore_GetByUser_CacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &recordingStore{sub: testSubscription()}
	cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t))

	data, err := json.Marshal(inner.sub)
	require.NoError(t, err)
	mock.ExpectGet("sub:42").SetVal(string(data))

	sub, err := cached.GetByUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sub.UserID)
	assert.Equal(t, 0, inner.getByUser, "a cache hit must not reach the inner store")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_GetByUser_CacheMissPopulates(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &recordingStore{sub: testSubscription()}
	cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t))

	data, err := json.Marshal(inner.sub)
	require.NoError(t, err)
	mock.ExpectGet("sub:42").RedisNil()
	mock.ExpectSet("sub:42", data, time.Minute).SetVal("OK")

	sub, err := cached.GetByUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sub.UserID)
	assert.Equal(t, 1, inner.getByUser)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedStore_GetByUser_RedisDownFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &recordingStore{sub: testSubscription()}
	cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t))

	data, err := json.Marshal(inner.sub)
	require.NoError(t, err)
	mock.ExpectGet("sub:42").SetErr(assert.AnError)
	mock.ExpectSet("sub:42", data, time.Minute).SetErr(assert.AnError)

	sub, err := cached.GetByUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sub.UserID)
	assert.Equal(t, 1, inner.getByUser)
}

func TestCachedStore_MutationsInvalidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(ctx context.Context, c *CachedStore) error
		count  func(r *recordingStore) int
	}{
		{
			name: "upsert pending",
			mutate: func(ctx context.Context, c *CachedStore) error {
				return c.UpsertPending(ctx, 42, "Aung Aung", "aung", "123456789", now)
			},
			count: func(r *recordingStore) int { return r.upserts },
		},
		{
			name: "activate",
			mutate: func(ctx context.Context, c *CachedStore) error {
				return c.Activate(ctx, 42, now, now.AddDate(0, 0, 30))
			},
			count: func(r *recordingStore) int { return r.activates },
		},
		{
			name: "mark expired",
			mutate: func(ctx context.Context, c *CachedStore) error {
				return c.MarkExpired(ctx, 42)
			},
			count: func(r *recordingStore) int { return r.expires },
		},
		{
			name: "mark rejected",
			mutate: func(ctx context.Context, c *CachedStore) error {
				return c.MarkRejected(ctx, 42)
			},
			count: func(r *recordingStore) int { return r.rejects },
		},
		{
			name: "set reminder",
			mutate: func(ctx context.Context, c *CachedStore) error {
				return c.SetReminder(ctx, 42, ReminderTwoDays)
			},
			count: func(r *recordingStore) int { return r.reminders },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rdb, mock := redismock.NewClientMock()
			inner := &recordingStore{sub: testSubscription()}
			cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t))

			mock.ExpectDel("sub:42").SetVal(1)

			require.NoError(t, tt.mutate(context.Background(), cached))
			assert.Equal(t, 1, tt.count(inner))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCachedStore_ListActiveBypassesCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	inner := &recordingStore{}
	cached := NewCachedStore(inner, rdb, time.Minute, logger.NewTestLogger(t))

	_, err := cached.ListActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.listActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
