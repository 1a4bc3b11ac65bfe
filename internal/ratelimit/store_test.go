package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectIncr(mock redismock.ClientMock, key string, count int64, ttl time.Duration) {
	mock.ExpectTxPipeline()
	mock.ExpectIncr(key).SetVal(count)
	mock.ExpectTTL(key).SetVal(ttl)
	mock.ExpectTxPipelineExec()
}

func TestRedisStore_FirstHitSetsExpiry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "wd:")

	expectIncr(mock, "wd:user:1", 1, -1)
	mock.ExpectExpire("wd:user:1", 24*time.Hour).SetVal(true)

	count, err := store.Incr(context.Background(), "user:1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_LaterHitKeepsExpiry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "wd:")

	expectIncr(mock, "wd:user:1", 5, 3*time.Hour)

	count, err := store.Incr(context.Background(), "user:1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_Error(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "")

	mock.ExpectTxPipeline()
	mock.ExpectIncr("user:1").SetErr(errors.New("connection refused"))

	if _, err := store.Incr(context.Background(), "user:1", time.Hour); err == nil {
		t.Error("Incr() expected error")
	}
}

func TestRedisStore_FailedExpiryRetriedOnNextHit(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewRedisStore(client, "wd:")
	ctx := context.Background()

	expectIncr(mock, "wd:user:7", 1, -1)
	mock.ExpectExpire("wd:user:7", 24*time.Hour).SetErr(errors.New("i/o timeout"))

	count, err := store.Incr(ctx, "user:7", 24*time.Hour)
	require.Error(t, err)
	assert.Equal(t, int64(1), count)

	// key still has no TTL, so the next hit sets it
	expectIncr(mock, "wd:user:7", 2, -1)
	mock.ExpectExpire("wd:user:7", 24*time.Hour).SetVal(true)

	count, err = store.Incr(ctx, "user:7", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
