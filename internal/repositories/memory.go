package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/appsync/internal/models"
)

// MemoryStore is an in-process App and Category repository with the same
// semantics as the Postgres implementations. Records are copied on the way in
// and out so callers never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	apps       map[string]*models.App
	categories map[string]*models.Category
	history    map[string][]*models.VersionHistory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:       make(map[string]*models.App),
		categories: make(map[string]*models.Category),
		history:    make(map[string][]*models.VersionHistory),
	}
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyApp(app), nil
}

func (s *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Create(_ context.Context, app *models.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[app.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := s.categories[app.CategoryID]; !ok {
		return ErrCategoryNotFound
	}

	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now
	if app.Screenshots == nil {
		app.Screenshots = []string{}
	}
	s.apps[app.ID] = copyApp(app)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch *models.AppPatch) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.patched(id, patch)
	if err != nil {
		return nil, err
	}
	s.apps[id] = updated
	return copyApp(updated), nil
}

func (s *MemoryStore) AppendVersionHistory(_ context.Context, entry *models.VersionHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[entry.AppID]; !ok {
		return ErrNotFound
	}
	s.appendHistory(entry)
	return nil
}

func (s *MemoryStore) ListVersionHistory(_ context.Context, appID string) ([]*models.VersionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[appID]
	out := make([]*models.VersionHistory, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := *entries[i]
		out = append(out, &e)
	}
	return out, nil
}

func (s *MemoryStore) ApplySync(_ context.Context, id string, patch *models.AppPatch, entry *models.VersionHistory) (*models.App, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.patched(id, patch)
	if err != nil {
		return nil, err
	}
	s.apps[id] = updated
	if entry != nil {
		entry.AppID = id
		s.appendHistory(entry)
	}
	return copyApp(updated), nil
}

// SeedCategory adds a category, replacing any existing one with the same id.
func (s *MemoryStore) SeedCategory(category *models.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *category
	s.categories[c.ID] = &c
}

func (s *MemoryStore) patched(id string, patch *models.AppPatch) (*models.App, error) {
	current, ok := s.apps[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := copyApp(current)
	if patch == nil || patch.IsEmpty() {
		return updated, nil
	}
	if patch.CategoryID != nil {
		if _, ok := s.categories[*patch.CategoryID]; !ok {
			return nil, ErrCategoryNotFound
		}
	}
	patch.Apply(updated)
	updated.UpdatedAt = time.Now()
	return updated, nil
}

func (s *MemoryStore) appendHistory(entry *models.VersionHistory) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	e := *entry
	s.history[entry.AppID] = append(s.history[entry.AppID], &e)
}

// MemoryCategories exposes the category half of a MemoryStore as a
// CategoryRepository, since both halves share the GetByID name.
type MemoryCategories struct {
	store *MemoryStore
}

func (s *MemoryStore) Categories() *MemoryCategories {
	return &MemoryCategories{store: s}
}

func (c *MemoryCategories) GetByID(_ context.Context, id string) (*models.Category, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	category, ok := c.store.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *category
	return &out, nil
}

func (c *MemoryCategories) List(_ context.Context) ([]*models.Category, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	out := make([]*models.Category, 0, len(c.store.categories))
	for _, category := range c.store.categories {
		cc := *category
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *MemoryCategories) Create(_ context.Context, category *models.Category) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, ok := c.store.categories[category.ID]; ok {
		return ErrAlreadyExists
	}
	cc := *category
	c.store.categories[cc.ID] = &cc
	return nil
}

// MemorySyncStatus is an in-process SyncStatusRepository.
type MemorySyncStatus struct {
	mu       sync.RWMutex
	lastRun  *models.BatchRun
	statuses map[string]models.AppSyncStatus
}

func NewMemorySyncStatus() *MemorySyncStatus {
	return &MemorySyncStatus{statuses: make(map[string]models.AppSyncStatus)}
}

func (m *MemorySyncStatus) SaveBatchRun(_ context.Context, run *models.BatchRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := *run
	r.FailedIDs = append([]string(nil), run.FailedIDs...)
	m.lastRun = &r
	return nil
}

func (m *MemorySyncStatus) GetLastBatchRun(_ context.Context) (*models.BatchRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRun == nil {
		return nil, ErrNotFound
	}
	r := *m.lastRun
	return &r, nil
}

func (m *MemorySyncStatus) SaveAppStatus(_ context.Context, status *models.AppSyncStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.AppID] = *status
	return nil
}

func (m *MemorySyncStatus) GetAppStatus(_ context.Context, appID string) (*models.AppSyncStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[appID]
	if !ok {
		return nil, ErrNotFound
	}
	return &status, nil
}

// MemoryLocker is a process-local Locker. TTLs are honoured on acquire.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time)}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiresAt, ok := l.locks[key]; ok && time.Now().Before(expiresAt) {
		return nil, ErrLockHeld
	}
	expiresAt := time.Now().Add(ttl)
	l.locks[key] = expiresAt

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.locks[key] == expiresAt {
			delete(l.locks, key)
		}
	}, nil
}

func copyApp(app *models.App) *models.App {
	out := *app
	if app.Screenshots != nil {
		out.Screenshots = make([]string, len(app.Screenshots))
		copy(out.Screenshots, app.Screenshots)
	}
	if app.OriginalAppID != nil {
		v := *app.OriginalAppID
		out.OriginalAppID = &v
	}
	if app.AffiliateURL != nil {
		v := *app.AffiliateURL
		out.AffiliateURL = &v
	}
	if app.LastSyncedAt != nil {
		t := *app.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}
