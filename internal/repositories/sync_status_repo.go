package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	lastBatchRunKey = "sync:last_batch_run"
	appStatusPrefix = "sync:app:"
	appStatusTTL    = 30 * 24 * time.Hour
)

type RedisSyncStatusRepository struct {
	client *redis.Client
}

func NewRedisSyncStatusRepository(client *redis.Client) *RedisSyncStatusRepository {
	return &RedisSyncStatusRepository{client: client}
}

func (r *RedisSyncStatusRepository) SaveBatchRun(ctx context.Context, run *models.BatchRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal batch run: %w", err)
	}

	if err := r.client.Set(ctx, lastBatchRunKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save batch run: %w", err)
	}
	return nil
}

func (r *RedisSyncStatusRepository) GetLastBatchRun(ctx context.Context) (*models.BatchRun, error) {
	data, err := r.client.Get(ctx, lastBatchRunKey).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run: %w", err)
	}

	var run models.BatchRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch run: %w", err)
	}
	return &run, nil
}

// SaveAppStatus stores the last outcome for an app. Entries expire so that
// deleted apps do not linger forever.
func (r *RedisSyncStatusRepository) SaveAppStatus(ctx context.Context, status *models.AppSyncStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal app sync status: %w", err)
	}

	if err := r.client.Set(ctx, appStatusKey(status.AppID), data, appStatusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save app sync status: %w", err)
	}
	return nil
}

func (r *RedisSyncStatusRepository) GetAppStatus(ctx context.Context, appID string) (*models.AppSyncStatus, error) {
	data, err := r.client.Get(ctx, appStatusKey(appID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app sync status: %w", err)
	}

	var status models.AppSyncStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app sync status: %w", err)
	}
	return &status, nil
}

func appStatusKey(appID string) string {
	return appStatusPrefix + appID
}
