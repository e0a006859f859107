package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSyncStatusRepository_BatchRun tests storing and reading the last batch run
func TestSyncStatusRepository_BatchRun(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSyncStatusRepository(client)
	ctx := context.Background()
	defer client.Del(ctx, lastBatchRunKey)

	finished := time.Now().UTC()
	run := &models.BatchRun{
		ID:         uuid.New(),
		Trigger:    models.TriggerManual,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Total:      5,
		Succeeded:  3,
		FailedIDs:  []string{"b", "d"},
	}

	require.NoError(t, repo.SaveBatchRun(ctx, run))

	got, err := repo.GetLastBatchRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 3, got.Succeeded)
	assert.Equal(t, []string{"b", "d"}, got.FailedIDs)
}

// TestSyncStatusRepository_AppStatus tests per-app status and the not-found signal
func TestSyncStatusRepository_AppStatus(t *testing.T) {
	client := getTestRedisClient(t)
	repo := NewRedisSyncStatusRepository(client)
	ctx := context.Background()

	appID := "app-" + uuid.NewString()
	defer client.Del(ctx, appStatusKey(appID))

	_, err := repo.GetAppStatus(ctx, appID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SaveAppStatus(ctx, &models.AppSyncStatus{AppID: appID, Success: false, Reason: "source_unavailable"}))

	got, err := repo.GetAppStatus(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, "source_unavailable", got.Reason)

	ttl, err := client.TTL(ctx, appStatusKey(appID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

// TestRedisLocker tests exclusive acquisition and token-checked release
func TestRedisLocker(t *testing.T) {
	client := getTestRedisClient(t)
	locker := NewRedisLocker(client, nil)
	ctx := context.Background()
	key := "app:" + uuid.NewString()

	release, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key, time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	release()

	release, err = locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	release()
}

// getTestRedisClient returns a Redis client on DB 1, skipping when Redis is unreachable
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1, // Use DB 1 for tests (different from production DB 0)
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skipf("test redis unreachable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
