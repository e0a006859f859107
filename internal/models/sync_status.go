package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncTrigger string

const (
	TriggerSchedule SyncTrigger = "schedule"
	TriggerManual   SyncTrigger = "manual"
	TriggerAPI      SyncTrigger = "api"
	TriggerImport   SyncTrigger = "import"
)

// BatchRun summarises one orchestrator pass over a set of apps.
type BatchRun struct {
	ID         uuid.UUID   `json:"id"`
	Trigger    SyncTrigger `json:"trigger"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Total      int         `json:"total"`
	Succeeded  int         `json:"succeeded"`
	FailedIDs  []string    `json:"failed_ids"`
}

type AppSyncStatus struct {
	AppID          string    `json:"app_id"`
	Success        bool      `json:"success"`
	Reason         string    `json:"reason,omitempty"`
	Message        string    `json:"message,omitempty"`
	VersionChanged bool      `json:"version_changed"`
	At             time.Time `json:"at"`
}
