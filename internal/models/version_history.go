package models

import (
	"time"

	"github.com/google/uuid"
)

// VersionHistory records a detected version bump. Rows are immutable apart
// from IsNotified, which the notification side flips.
type VersionHistory struct {
	ID          uuid.UUID `json:"id"`
	AppID       string    `json:"app_id"`
	Version     string    `json:"version"`
	ReleaseDate time.Time `json:"release_date"`
	ChangeNotes *string   `json:"change_notes,omitempty"`
	IsNotified  bool      `json:"is_notified"`
	IsImportant bool      `json:"is_important"`
	CreatedAt   time.Time `json:"created_at"`
}
