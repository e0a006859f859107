package repositories

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAppRepository_UpdateMergesPatch tests that absent patch fields are never overwritten
func TestAppRepository_UpdateMergesPatch(t *testing.T) {
	// ARRANGE
	pool := getTestPool(t)
	repo := NewPostgresAppRepository(pool)
	ctx := context.Background()
	appID := setupTestApp(t, ctx, pool)

	// ACT: only the version changes
	version := "2.0.0"
	app, err := repo.Update(ctx, appID, &models.AppPatch{Version: &version})

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", app.Version)
	assert.Equal(t, "Test App", app.Name)
	assert.Equal(t, []string{"https://img.example/1.png", "https://img.example/2.png"}, app.Screenshots)
}

// TestAppRepository_Update_NotFound tests updating an unknown id
func TestAppRepository_Update_NotFound(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAppRepository(pool)
	ctx := context.Background()

	name := "ghost"
	_, err := repo.Update(ctx, "does-not-exist-"+uuid.NewString(), &models.AppPatch{Name: &name})

	assert.ErrorIs(t, err, ErrNotFound)
}

// TestAppRepository_ApplySync_WritesHistoryInSameTransaction tests the atomic sync write
func TestAppRepository_ApplySync_WritesHistoryInSameTransaction(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAppRepository(pool)
	ctx := context.Background()
	appID := setupTestApp(t, ctx, pool)

	version := "1.1"
	now := time.Now().UTC().Truncate(time.Second)
	app, err := repo.ApplySync(ctx, appID,
		&models.AppPatch{Version: &version, LastSyncedAt: &now},
		&models.VersionHistory{Version: "1.1", ReleaseDate: now})

	require.NoError(t, err)
	assert.Equal(t, "1.1", app.Version)
	require.NotNil(t, app.LastSyncedAt)

	history, err := repo.ListVersionHistory(ctx, appID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "1.1", history[0].Version)
}

// TestAppRepository_ApplySync_RollsBack tests that a failed history insert undoes the field update
func TestAppRepository_ApplySync_RollsBack(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresAppRepository(pool)
	ctx := context.Background()
	appID := setupTestApp(t, ctx, pool)

	// Insert a history row, then reuse its primary key to force a conflict.
	existing := &models.VersionHistory{AppID: appID, Version: "1.0", ReleaseDate: time.Now()}
	require.NoError(t, repo.AppendVersionHistory(ctx, existing))

	version := "9.9"
	_, err := repo.ApplySync(ctx, appID,
		&models.AppPatch{Version: &version},
		&models.VersionHistory{ID: existing.ID, Version: "9.9", ReleaseDate: time.Now()})
	require.Error(t, err)

	app, err := repo.GetByID(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, "1.0", app.Version, "field update must be rolled back")
}

// Helper functions for test setup

// getTestPool connects to TEST_DATABASE_URL, skipping when no database is reachable
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Skipf("test database unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// setupTestApp creates a category and an app, removing both when the test ends
func setupTestApp(t *testing.T, ctx context.Context, pool *pgxpool.Pool) string {
	t.Helper()
	categories := NewPostgresCategoryRepository(pool)
	apps := NewPostgresAppRepository(pool)

	categoryID := "test-" + uuid.NewString()
	require.NoError(t, categories.Create(ctx, &models.Category{ID: categoryID, Name: "Test"}))

	pkg := "com.example.test"
	app := &models.App{
		ID:            "test-app-" + uuid.NewString(),
		OriginalAppID: &pkg,
		Name:          "Test App",
		CategoryID:    categoryID,
		Version:       "1.0",
		Screenshots:   []string{"https://img.example/1.png", "https://img.example/2.png"},
	}
	require.NoError(t, apps.Create(ctx, app))

	t.Cleanup(func() {
		if _, err := pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, app.ID); err != nil {
			t.Logf("Warning: failed to cleanup test app: %v", err)
		}
		if _, err := pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, categoryID); err != nil {
			t.Logf("Warning: failed to cleanup test category: %v", err)
		}
	})
	return app.ID
}
