package repositories

import (
	"context"
	"time"

	"github.com/prudhvinik1/appsync/internal/models"
)

type AppRepository interface {
	GetByID(ctx context.Context, id string) (*models.App, error)
	ListIDs(ctx context.Context) ([]string, error)
	Create(ctx context.Context, app *models.App) error
	Update(ctx context.Context, id string, patch *models.AppPatch) (*models.App, error)
	AppendVersionHistory(ctx context.Context, entry *models.VersionHistory) error
	ListVersionHistory(ctx context.Context, appID string) ([]*models.VersionHistory, error)
	// ApplySync merges patch and, when entry is non-nil, appends it in the
	// same transaction. Either both land or neither does.
	ApplySync(ctx context.Context, id string, patch *models.AppPatch, entry *models.VersionHistory) (*models.App, error)
}

type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*models.Category, error)
	List(ctx context.Context) ([]*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
}

type SyncStatusRepository interface {
	SaveBatchRun(ctx context.Context, run *models.BatchRun) error
	GetLastBatchRun(ctx context.Context) (*models.BatchRun, error)
	SaveAppStatus(ctx context.Context, status *models.AppSyncStatus) error
	GetAppStatus(ctx context.Context, appID string) (*models.AppSyncStatus, error)
}

// Locker hands out short-lived exclusive locks shared across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
