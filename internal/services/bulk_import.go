package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/prudhvinik1/appsync/internal/logging"
	"github.com/prudhvinik1/appsync/internal/models"
	"github.com/prudhvinik1/appsync/internal/playstore"
	"github.com/prudhvinik1/appsync/internal/repositories"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ImportEntry is one line of a bulk import manifest.
type ImportEntry struct {
	ID         string `yaml:"id" json:"id"`
	SourceID   string `yaml:"sourceIdentifier" json:"sourceIdentifier"`
	CategoryID string `yaml:"category" json:"category"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
}

type ImportFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type ImportReport struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Synced  int             `json:"synced"`
	Failed  []ImportFailure `json:"failed"`
}

// IDSyncer syncs an explicit list of app ids.
type IDSyncer interface {
	SyncIDs(ctx context.Context, trigger models.SyncTrigger, ids []string) *BatchReport
}

type BulkImporter struct {
	apps   repositories.AppRepository
	syncer IDSyncer
	logger *zap.Logger
}

func NewBulkImporter(apps repositories.AppRepository, syncer IDSyncer, logger *zap.Logger) *BulkImporter {
	logger = logging.OrNop(logger)
	return &BulkImporter{apps: apps, syncer: syncer, logger: logger}
}

// Import upserts placeholder records for entries and syncs every valid one.
// Bad entries are reported and skipped.
func (b *BulkImporter) Import(ctx context.Context, entries []ImportEntry) (*ImportReport, error) {
	report := &ImportReport{Failed: []ImportFailure{}}
	seen := make(map[string]bool, len(entries))
	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		if err := validateEntry(entry); err != nil {
			report.Failed = append(report.Failed, ImportFailure{ID: entry.ID, Reason: err.Error()})
			continue
		}
		if seen[entry.ID] {
			report.Failed = append(report.Failed, ImportFailure{ID: entry.ID, Reason: "duplicate id in manifest"})
			continue
		}
		seen[entry.ID] = true

		created, changed, err := b.upsert(ctx, entry)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn("import entry rejected", zap.String("app_id", entry.ID), zap.Error(err))
			report.Failed = append(report.Failed, ImportFailure{ID: entry.ID, Reason: err.Error()})
			continue
		}
		switch {
		case created:
			report.Created++
		case changed:
			report.Updated++
		}
		ids = append(ids, entry.ID)
	}

	if len(ids) == 0 {
		return report, nil
	}

	batch := b.syncer.SyncIDs(ctx, models.TriggerImport, ids)
	report.Synced = batch.Succeeded()
	for _, r := range batch.Results {
		if r.Success {
			continue
		}
		reason := string(r.Reason)
		if r.Err != nil {
			reason = fmt.Sprintf("sync failed: %s: %v", r.Reason, r.Err)
		}
		report.Failed = append(report.Failed, ImportFailure{ID: r.AppID, Reason: reason})
	}

	return report, nil
}

func (b *BulkImporter) upsert(ctx context.Context, entry ImportEntry) (created, changed bool, err error) {
	existing, err := b.apps.GetByID(ctx, entry.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		sourceID := entry.SourceID
		name := entry.Name
		if name == "" {
			name = entry.ID
		}
		placeholder := &models.App{
			ID:            entry.ID,
			OriginalAppID: &sourceID,
			Name:          name,
			CategoryID:    entry.CategoryID,
			Screenshots:   []string{},
		}
		if err := b.apps.Create(ctx, placeholder); err != nil {
			return false, false, fmt.Errorf("failed to create app: %w", err)
		}
		return true, true, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to load app: %w", err)
	}

	patch := &models.AppPatch{}
	if existing.OriginalAppID == nil || *existing.OriginalAppID != entry.SourceID {
		sourceID := entry.SourceID
		patch.OriginalAppID = &sourceID
	}
	if existing.CategoryID != entry.CategoryID {
		categoryID := entry.CategoryID
		patch.CategoryID = &categoryID
	}
	if patch.IsEmpty() {
		return false, false, nil
	}
	if _, err := b.apps.Update(ctx, entry.ID, patch); err != nil {
		return false, false, fmt.Errorf("failed to update app: %w", err)
	}
	return false, true, nil
}

func validateEntry(entry ImportEntry) error {
	if entry.ID == "" {
		return errors.New("id is required")
	}
	if entry.CategoryID == "" {
		return errors.New("category is required")
	}
	if err := playstore.ValidatePackageID(entry.SourceID); err != nil {
		return err
	}
	return nil
}

type manifest struct {
	Apps []ImportEntry `yaml:"apps"`
}

// ParseManifest reads a YAML manifest with a top-level apps list.
func ParseManifest(r io.Reader) ([]ImportEntry, error) {
	var m manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Apps, nil
}
