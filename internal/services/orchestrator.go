package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/appsync/internal/config"
	"github.com/prudhvinik1/appsync/internal/logging"
	"github.com/prudhvinik1/appsync/internal/metrics"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"go.uber.org/zap"
)

// AppSyncer is the part of the engine the orchestrator drives.
type AppSyncer interface {
	SyncApp(ctx context.Context, appID string) SyncResult
}

type OrchestratorConfig struct {
	BatchSize  int
	BatchDelay time.Duration
}

// BatchReport is the result of one SyncIDs pass.
type BatchReport struct {
	Run     *models.BatchRun
	Results []SyncResult
}

// Succeeded returns the number of apps that synced.
func (r *BatchReport) Succeeded() int {
	return r.Run.Succeeded
}

type Orchestrator struct {
	engine AppSyncer
	apps   repositories.AppRepository
	status repositories.SyncStatusRepository
	cfg    OrchestratorConfig
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

func NewOrchestrator(engine AppSyncer, apps repositories.AppRepository, status repositories.SyncStatusRepository, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultSyncBatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = config.DefaultSyncBatchDelay
	}
	logger = logging.OrNop(logger)
	return &Orchestrator{
		engine: engine,
		apps:   apps,
		status: status,
		cfg:    cfg,
		now:    time.Now,
		sleep:  sleepContext,
		logger: logger,
	}
}

// SyncAll syncs every stored app and returns how many succeeded. Only a
// failure to list the apps is returned as an error.
func (o *Orchestrator) SyncAll(ctx context.Context, trigger models.SyncTrigger) (int, error) {
	ids, err := o.apps.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list apps: %w", err)
	}

	report := o.SyncIDs(ctx, trigger, ids)
	return report.Succeeded(), nil
}

// SyncIDs syncs ids in batches of BatchSize. Apps inside a batch run
// concurrently; batches run one after another with BatchDelay between them.
func (o *Orchestrator) SyncIDs(ctx context.Context, trigger models.SyncTrigger, ids []string) *BatchReport {
	run := &models.BatchRun{
		ID:        uuid.New(),
		Trigger:   trigger,
		StartedAt: o.now().UTC(),
		Total:     len(ids),
		FailedIDs: []string{},
	}
	results := make([]SyncResult, len(ids))

	o.logger.Info("batch sync started",
		zap.String("run_id", run.ID.String()),
		zap.String("trigger", string(trigger)),
		zap.Int("total", len(ids)),
		zap.Int("batch_size", o.cfg.BatchSize))

	for start := 0; start < len(ids); start += o.cfg.BatchSize {
		end := min(start+o.cfg.BatchSize, len(ids))

		if ctx.Err() != nil {
			o.markCancelled(ids, results, start)
			break
		}

		o.runBatch(ctx, ids[start:end], results[start:end])

		if end < len(ids) && o.cfg.BatchDelay > 0 {
			if err := o.sleep(ctx, o.cfg.BatchDelay); err != nil {
				o.markCancelled(ids, results, end)
				break
			}
		}
	}

	for _, r := range results {
		if r.Success {
			run.Succeeded++
		} else {
			run.FailedIDs = append(run.FailedIDs, r.AppID)
		}
	}
	finished := o.now().UTC()
	run.FinishedAt = &finished

	metrics.RecordBatch(string(trigger))
	if o.status != nil {
		// The request context may already be done; the summary still belongs in Redis.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := o.status.SaveBatchRun(saveCtx, run); err != nil {
			o.logger.Warn("failed to record batch run", zap.String("run_id", run.ID.String()), zap.Error(err))
		}
		cancel()
	}

	o.logger.Info("batch sync finished",
		zap.String("run_id", run.ID.String()),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", len(run.FailedIDs)),
		zap.Duration("elapsed", finished.Sub(run.StartedAt)))

	return &BatchReport{Run: run, Results: results}
}

func (o *Orchestrator) runBatch(ctx context.Context, ids []string, results []SyncResult) {
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("app sync panicked", zap.String("app_id", id), zap.Any("panic", r))
					results[i] = SyncResult{
						AppID:  id,
						State:  StateFailed,
						Reason: ReasonPanic,
						Err:    fmt.Errorf("sync panicked: %v", r),
					}
				}
			}()
			results[i] = o.engine.SyncApp(ctx, id)
		}(i, id)
	}
	wg.Wait()
}

func (o *Orchestrator) markCancelled(ids []string, results []SyncResult, from int) {
	o.logger.Warn("batch sync cancelled", zap.Int("remaining", len(ids)-from))
	for i := from; i < len(ids); i++ {
		results[i] = SyncResult{
			AppID:  ids[i],
			State:  StateFailed,
			Reason: ReasonCancelled,
			Err:    context.Canceled,
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
