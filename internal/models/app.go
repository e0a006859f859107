package models

import (
	"time"
)

type App struct {
	ID            string     `json:"id"`
	OriginalAppID *string    `json:"original_app_id,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	IconURL       string     `json:"icon_url"`
	Screenshots   []string   `json:"screenshots"`
	Developer     string     `json:"developer"`
	CategoryID    string     `json:"category_id"`
	Version       string     `json:"version"`
	Size          string     `json:"size"`
	Updated       string     `json:"updated"`
	Downloads     string     `json:"downloads"`
	Rating        float64    `json:"rating"`
	DownloadURL   string     `json:"download_url"`
	StoreURL      string     `json:"store_url"`
	AffiliateURL  *string    `json:"affiliate_url,omitempty"`
	IsFeatured    bool       `json:"is_featured"`
	LastSyncedAt  *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasSource reports whether the app can be looked up in the store.
func (a *App) HasSource() bool {
	return a.OriginalAppID != nil && *a.OriginalAppID != ""
}

// AppPatch is a partial update of an App. Nil fields are left untouched.
type AppPatch struct {
	OriginalAppID *string
	Name          *string
	Description   *string
	IconURL       *string
	Screenshots   []string
	Developer     *string
	CategoryID    *string
	Version       *string
	Size          *string
	Updated       *string
	Downloads     *string
	Rating        *float64
	DownloadURL   *string
	StoreURL      *string
	LastSyncedAt  *time.Time
}

// IsEmpty reports whether the patch carries no fields.
func (p *AppPatch) IsEmpty() bool {
	return p.OriginalAppID == nil && p.Name == nil && p.Description == nil &&
		p.IconURL == nil && p.Screenshots == nil && p.Developer == nil &&
		p.CategoryID == nil && p.Version == nil && p.Size == nil &&
		p.Updated == nil && p.Downloads == nil && p.Rating == nil &&
		p.DownloadURL == nil && p.StoreURL == nil && p.LastSyncedAt == nil
}

// Apply merges the patch into app in place.
func (p *AppPatch) Apply(app *App) {
	if p.OriginalAppID != nil {
		v := *p.OriginalAppID
		app.OriginalAppID = &v
	}
	if p.Name != nil {
		app.Name = *p.Name
	}
	if p.Description != nil {
		app.Description = *p.Description
	}
	if p.IconURL != nil {
		app.IconURL = *p.IconURL
	}
	if p.Screenshots != nil {
		app.Screenshots = append([]string(nil), p.Screenshots...)
	}
	if p.Developer != nil {
		app.Developer = *p.Developer
	}
	if p.CategoryID != nil {
		app.CategoryID = *p.CategoryID
	}
	if p.Version != nil {
		app.Version = *p.Version
	}
	if p.Size != nil {
		app.Size = *p.Size
	}
	if p.Updated != nil {
		app.Updated = *p.Updated
	}
	if p.Downloads != nil {
		app.Downloads = *p.Downloads
	}
	if p.Rating != nil {
		app.Rating = *p.Rating
	}
	if p.DownloadURL != nil {
		app.DownloadURL = *p.DownloadURL
	}
	if p.StoreURL != nil {
		app.StoreURL = *p.StoreURL
	}
	if p.LastSyncedAt != nil {
		t := *p.LastSyncedAt
		app.LastSyncedAt = &t
	}
}
