package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/prudhvinik1/appsync/internal/metrics"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/playstore"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrMissingSourceID  = errors.New("app has no store identifier")
	ErrUnsupportedStore = errors.New("store type not supported")
	ErrSyncInProgress   = errors.New("sync already in progress for app")
)

const DefaultLockTTL = 2 * time.Minute

// CatalogClient fetches store listings by the store's own package id.
type CatalogClient interface {
	FetchCatalogData(ctx context.Context, packageID string) (*playstore.CatalogData, error)
}

type SyncState string

const (
	StateFetching    SyncState = "fetching"
	StateEvaluating  SyncState = "evaluating"
	StateUpdating    SyncState = "updating"
	StateNoOpSuccess SyncState = "noop_success"
	StateDone        SyncState = "done"
	StateFailed      SyncState = "failed"
)

type FailureReason string

const (
	ReasonMissingSource     FailureReason = "missing_source"
	ReasonSourceUnavailable FailureReason = "source_unavailable"
	ReasonPersistenceError  FailureReason = "persistence_error"
	ReasonInProgress        FailureReason = "in_progress"
	ReasonUnsupportedStore  FailureReason = "unsupported_store"
	ReasonCancelled         FailureReason = "cancelled"
	ReasonPanic             FailureReason = "panic"
)

// SyncResult is the outcome of one engine invocation. Per-app failures are
// reported here and never returned as Go errors.
type SyncResult struct {
	AppID          string
	Success        bool
	State          SyncState
	Path           []SyncState
	Reason         FailureReason
	Err            error
	VersionChanged bool
	App            *models.App
	Duration       time.Duration
}

// NotFound reports whether the app id is unknown to the repository.
func (r SyncResult) NotFound() bool {
	return r.Reason == ReasonMissingSource && errors.Is(r.Err, repositories.ErrNotFound)
}

type EngineOption func(*SyncEngine)

// WithStoreClient registers the client used for a store type.
func WithStoreClient(store models.StoreType, client CatalogClient) EngineOption {
	return func(e *SyncEngine) {
		e.clients[store] = client
	}
}

// WithLocker adds a cross-process per-app lock around each sync.
func WithLocker(locker repositories.Locker, ttl time.Duration) EngineOption {
	return func(e *SyncEngine) {
		e.locker = locker
		if ttl > 0 {
			e.lockTTL = ttl
		}
	}
}

// WithStatusRepository records the last outcome of every app.
func WithStatusRepository(status repositories.SyncStatusRepository) EngineOption {
	return func(e *SyncEngine) {
		e.status = status
	}
}

func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *SyncEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *SyncEngine) {
		e.now = now
	}
}

// SyncEngine refreshes one app record from its store listing.
type SyncEngine struct {
	apps    repositories.AppRepository
	clients map[models.StoreType]CatalogClient
	status  repositories.SyncStatusRepository
	locker  repositories.Locker
	lockTTL time.Duration
	group   singleflight.Group
	now     func() time.Time
	logger  *zap.Logger
}

// NewSyncEngine creates an engine whose Google Play lookups go through play.
func NewSyncEngine(apps repositories.AppRepository, play CatalogClient, opts ...EngineOption) *SyncEngine {
	e := &SyncEngine{
		apps:    apps,
		clients: map[models.StoreType]CatalogClient{},
		lockTTL: DefaultLockTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	if play != nil {
		e.clients[models.StoreGooglePlay] = play
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncApp syncs appID against Google Play.
func (e *SyncEngine) SyncApp(ctx context.Context, appID string) SyncResult {
	return e.SyncAppFromStore(ctx, appID, models.StoreGooglePlay)
}

// SyncAppFromStore syncs appID against the given store. Concurrent calls for
// the same app and store inside this process share one execution. The shared
// run is detached from the callers' contexts and bounded by the lock TTL, so
// a caller that gives up only abandons its own wait.
func (e *SyncEngine) SyncAppFromStore(ctx context.Context, appID string, store models.StoreType) SyncResult {
	if _, ok := e.clients[store]; !ok {
		result := SyncResult{AppID: appID, State: StateFetching, Path: []SyncState{StateFetching}}
		return e.fail(result, ReasonUnsupportedStore, fmt.Errorf("%w: %s", ErrUnsupportedStore, store))
	}
	if err := ctx.Err(); err != nil {
		return e.cancelled(appID, err)
	}

	ch := e.group.DoChan(string(store)+":"+appID, func() (v any, err error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.lockTTL)
		defer cancel()
		// DoChan re-panics on its own goroutine where no caller can recover.
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("app sync panicked", zap.String("app_id", appID), zap.Any("panic", r))
				result := SyncResult{AppID: appID, State: StateFetching, Path: []SyncState{StateFetching}}
				v = e.fail(result, ReasonPanic, fmt.Errorf("sync panicked: %v", r))
			}
		}()
		return e.sync(flightCtx, appID, store), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("joined in-flight sync", zap.String("app_id", appID))
		}
		return res.Val.(SyncResult)
	case <-ctx.Done():
		e.logger.Info("stopped waiting for app sync", zap.String("app_id", appID), zap.Error(ctx.Err()))
		return e.cancelled(appID, ctx.Err())
	}
}

func (e *SyncEngine) sync(ctx context.Context, appID string, store models.StoreType) SyncResult {
	start := e.now()
	result := e.run(ctx, appID, store)
	result.Duration = e.now().Sub(start)

	label := "success"
	if !result.Success {
		label = string(result.Reason)
	}
	metrics.RecordAppSync(label, result.Duration, result.VersionChanged)
	e.recordStatus(ctx, result)

	return result
}

func (e *SyncEngine) run(ctx context.Context, appID string, store models.StoreType) SyncResult {
	result := SyncResult{AppID: appID, State: StateFetching, Path: []SyncState{StateFetching}}
	log := e.logger.With(zap.String("app_id", appID), zap.String("store", string(store)))

	client, ok := e.clients[store]
	if !ok {
		return e.fail(result, ReasonUnsupportedStore, fmt.Errorf("%w: %s", ErrUnsupportedStore, store))
	}

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, "app-sync:"+appID, e.lockTTL)
		switch {
		case errors.Is(err, repositories.ErrLockHeld):
			log.Info("skipping sync, app is locked by another worker")
			return e.fail(result, ReasonInProgress, ErrSyncInProgress)
		case err != nil:
			// Redis being down must not stop syncs; the in-process guard still holds.
			log.Warn("sync lock unavailable, continuing without it", zap.Error(err))
		default:
			defer release()
		}
	}

	// Fetching
	app, err := e.apps.GetByID(ctx, appID)
	if errors.Is(err, repositories.ErrNotFound) {
		return e.fail(result, ReasonMissingSource, fmt.Errorf("app %s: %w", appID, repositories.ErrNotFound))
	}
	if err != nil {
		log.Error("failed to load app", zap.Error(err))
		return e.fail(result, ReasonPersistenceError, fmt.Errorf("failed to load app: %w", err))
	}
	if !app.HasSource() {
		return e.fail(result, ReasonMissingSource, fmt.Errorf("app %s: %w", appID, ErrMissingSourceID))
	}

	packageID := *app.OriginalAppID
	data, err := client.FetchCatalogData(ctx, packageID)
	if err != nil {
		level := log.Info
		if errors.Is(err, playstore.ErrMalformed) {
			level = log.Warn
		}
		level("store lookup failed", zap.String("package_id", packageID), zap.Error(err))
		return e.fail(result, ReasonSourceUnavailable, err)
	}

	// Evaluating
	result.State = StateEvaluating
	result.Path = append(result.Path, StateEvaluating)

	now := e.now().UTC()
	patch := buildSyncPatch(data, now)
	versionChanged := data.Version != "" && data.Version != app.Version

	var entry *models.VersionHistory
	if versionChanged {
		entry = &models.VersionHistory{
			AppID:       appID,
			Version:     data.Version,
			ReleaseDate: now,
			IsNotified:  false,
			IsImportant: isImportantBump(app.Version, data.Version),
		}
		if data.RecentChanges != "" {
			notes := data.RecentChanges
			entry.ChangeNotes = &notes
		}
	}

	if versionChanged || fieldsChanged(app, patch) {
		result.State = StateUpdating
	} else {
		result.State = StateNoOpSuccess
	}
	result.Path = append(result.Path, result.State)

	// Updating (NoOpSuccess still stamps lastSyncedAt)
	updated, err := e.apps.ApplySync(ctx, appID, patch, entry)
	if errors.Is(err, repositories.ErrNotFound) {
		return e.fail(result, ReasonMissingSource, fmt.Errorf("app %s: %w", appID, repositories.ErrNotFound))
	}
	if err != nil {
		log.Error("fetched store data could not be persisted",
			zap.String("package_id", packageID),
			zap.Bool("version_changed", versionChanged),
			zap.Error(err))
		return e.fail(result, ReasonPersistenceError, fmt.Errorf("failed to persist sync: %w", err))
	}

	result.State = StateDone
	result.Path = append(result.Path, StateDone)
	result.Success = true
	result.VersionChanged = versionChanged
	result.App = updated

	if versionChanged {
		log.Info("app version changed",
			zap.String("from", app.Version),
			zap.String("to", data.Version),
			zap.Bool("important", entry.IsImportant))
	}
	log.Debug("app synced", zap.String("path", fmt.Sprint(result.Path)))

	return result
}

func (e *SyncEngine) fail(result SyncResult, reason FailureReason, err error) SyncResult {
	result.State = StateFailed
	result.Path = append(result.Path, StateFailed)
	result.Reason = reason
	result.Err = err
	return result
}

func (e *SyncEngine) cancelled(appID string, err error) SyncResult {
	result := SyncResult{AppID: appID, State: StateFetching, Path: []SyncState{StateFetching}}
	return e.fail(result, ReasonCancelled, err)
}

func (e *SyncEngine) recordStatus(ctx context.Context, result SyncResult) {
	if e.status == nil {
		return
	}
	status := &models.AppSyncStatus{
		AppID:          result.AppID,
		Success:        result.Success,
		Reason:         string(result.Reason),
		VersionChanged: result.VersionChanged,
		At:             e.now().UTC(),
	}
	if result.Err != nil {
		status.Message = result.Err.Error()
	}
	if err := e.status.SaveAppStatus(ctx, status); err != nil {
		e.logger.Warn("failed to record app sync status", zap.String("app_id", result.AppID), zap.Error(err))
	}
}

// buildSyncPatch maps fetched data onto the fields sync owns. Empty fetched
// values stay nil so the stored value is kept.
func buildSyncPatch(data *playstore.CatalogData, now time.Time) *models.AppPatch {
	patch := &models.AppPatch{LastSyncedAt: &now}

	patch.Name = nonEmpty(data.Title)
	patch.Description = nonEmpty(data.Description)
	patch.IconURL = nonEmpty(data.Icon)
	patch.Developer = nonEmpty(data.Developer)
	patch.Version = nonEmpty(data.Version)
	patch.Size = nonEmpty(data.SizeLabel)
	patch.Updated = nonEmpty(data.UpdatedLabel)

	if len(data.Screenshots) > 0 {
		patch.Screenshots = append([]string(nil), data.Screenshots...)
	}
	// A zero score means the store has no ratings yet.
	if data.RatingScore > 0 {
		rating := data.RatingScore
		patch.Rating = &rating
	}
	if data.ReviewCount > 0 {
		downloads := playstore.FormatDownloads(data.ReviewCount)
		patch.Downloads = &downloads
	}
	return patch
}

// fieldsChanged reports whether applying patch alters anything besides the
// sync timestamp.
func fieldsChanged(app *models.App, patch *models.AppPatch) bool {
	switch {
	case stringChanged(app.Name, patch.Name),
		stringChanged(app.Description, patch.Description),
		stringChanged(app.IconURL, patch.IconURL),
		stringChanged(app.Developer, patch.Developer),
		stringChanged(app.Version, patch.Version),
		stringChanged(app.Size, patch.Size),
		stringChanged(app.Updated, patch.Updated),
		stringChanged(app.Downloads, patch.Downloads):
		return true
	case patch.Rating != nil && *patch.Rating != app.Rating:
		return true
	case patch.Screenshots != nil && !slices.Equal(patch.Screenshots, app.Screenshots):
		return true
	}
	return false
}

func stringChanged(current string, next *string) bool {
	return next != nil && *next != current
}

// isImportantBump reports a major or minor semver increase.
func isImportantBump(oldVersion, newVersion string) bool {
	if oldVersion == "" {
		return false
	}
	o, errOld := semver.NewVersion(oldVersion)
	n, errNew := semver.NewVersion(newVersion)
	if errOld != nil || errNew != nil {
		return false
	}
	if n.Major() != o.Major() {
		return n.Major() > o.Major()
	}
	return n.Minor() > o.Minor()
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
