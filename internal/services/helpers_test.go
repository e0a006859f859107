package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/playstore"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves canned listings keyed by package id and counts lookups.
type fakeCatalog struct {
	mu    sync.Mutex
	data  map[string]*playstore.CatalogData
	errs  map[string]error
	calls map[string]int

	// when set, every fetch signals started and waits for release
	started chan string
	release chan struct{}
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		data:  map[string]*playstore.CatalogData{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeCatalog) set(packageID string, data *playstore.CatalogData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[packageID] = data
}

func (f *fakeCatalog) fail(packageID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[packageID] = err
}

func (f *fakeCatalog) callCount(packageID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[packageID]
}

func (f *fakeCatalog) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCatalog) FetchCatalogData(ctx context.Context, packageID string) (*playstore.CatalogData, error) {
	f.mu.Lock()
	f.calls[packageID]++
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- packageID
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[packageID]; ok {
		return nil, err
	}
	data, ok := f.data[packageID]
	if !ok {
		return nil, playstore.ErrNotFound
	}
	out := *data
	out.Screenshots = append([]string(nil), data.Screenshots...)
	return &out, nil
}

// failingApps wraps a MemoryStore and injects repository errors.
type failingApps struct {
	*repositories.MemoryStore
	listErr  error
	applyErr error
}

func (f *failingApps) ListIDs(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryStore.ListIDs(ctx)
}

func (f *failingApps) ApplySync(ctx context.Context, id string, patch *models.AppPatch, entry *models.VersionHistory) (*models.App, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	return f.MemoryStore.ApplySync(ctx, id, patch, entry)
}

type brokenLocker struct{}

func (brokenLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

func newStore(t *testing.T) *repositories.MemoryStore {
	t.Helper()
	store := repositories.NewMemoryStore()
	store.SeedCategory(&models.Category{ID: "tools", Name: "Tools"})
	return store
}

// seedApp creates an app whose package id is "com.example."+id.
func seedApp(t *testing.T, store *repositories.MemoryStore, id string, mutate func(*models.App)) *models.App {
	t.Helper()
	pkg := "com.example." + id
	app := &models.App{
		ID:            id,
		OriginalAppID: &pkg,
		Name:          id,
		CategoryID:    "tools",
		Version:       "1.0.0",
		Screenshots:   []string{"https://img/" + id + "/1.png"},
		Rating:        4.1,
		Downloads:     "10K+",
		DownloadURL:   "https://example.com/" + id + ".apk",
	}
	if mutate != nil {
		mutate(app)
	}
	require.NoError(t, store.Create(context.Background(), app))
	return app
}

func listing(version string) *playstore.CatalogData {
	return &playstore.CatalogData{
		Title:         "Notes",
		Description:   "Take notes.",
		Version:       version,
		Developer:     "Example Inc",
		Icon:          "https://img/icon.png",
		Screenshots:   []string{"https://img/s1.png", "https://img/s2.png"},
		RatingScore:   4.6,
		ReviewCount:   2_500_000,
		UpdatedLabel:  "Mar 3, 2026",
		RecentChanges: "Bug fixes",
	}
}
