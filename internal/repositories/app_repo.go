package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/appsync/internal/models"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

const appColumns = `id, original_app_id, name, description, icon_url, screenshots, developer,
	category_id, version, size, updated, downloads, rating, download_url, store_url,
	affiliate_url, is_featured, last_synced_at, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresAppRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAppRepository(pool *pgxpool.Pool) *PostgresAppRepository {
	return &PostgresAppRepository{pool: pool}
}

func (r *PostgresAppRepository) GetByID(ctx context.Context, id string) (*models.App, error) {
	return getApp(ctx, r.pool, id)
}

func (r *PostgresAppRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM apps ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query app ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect app ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresAppRepository) Create(ctx context.Context, app *models.App) error {
	if app.Screenshots == nil {
		app.Screenshots = []string{}
	}

	query := `INSERT INTO apps (id, original_app_id, name, description, icon_url, screenshots,
	              developer, category_id, version, size, updated, downloads, rating,
	              download_url, store_url, affiliate_url, is_featured)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	          RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		app.ID,
		app.OriginalAppID,
		app.Name,
		app.Description,
		app.IconURL,
		app.Screenshots,
		app.Developer,
		app.CategoryID,
		app.Version,
		app.Size,
		app.Updated,
		app.Downloads,
		app.Rating,
		app.DownloadURL,
		app.StoreURL,
		app.AffiliateURL,
		app.IsFeatured,
	).Scan(&app.CreatedAt, &app.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrAlreadyExists
		case pgForeignKeyViolation:
			return ErrCategoryNotFound
		}
	}
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	return nil
}

// Update merges patch into the stored app. Fields absent from the patch are
// never written.
func (r *PostgresAppRepository) Update(ctx context.Context, id string, patch *models.AppPatch) (*models.App, error) {
	return updateApp(ctx, r.pool, id, patch)
}

func (r *PostgresAppRepository) AppendVersionHistory(ctx context.Context, entry *models.VersionHistory) error {
	return insertVersionHistory(ctx, r.pool, entry)
}

func (r *PostgresAppRepository) ListVersionHistory(ctx context.Context, appID string) ([]*models.VersionHistory, error) {
	query := `SELECT id, app_id, version, release_date, change_notes, is_notified, is_important, created_at
	          FROM app_version_history
	          WHERE app_id = $1
	          ORDER BY release_date DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to query version history: %w", err)
	}
	defer rows.Close()

	entries := []*models.VersionHistory{}
	for rows.Next() {
		var entry models.VersionHistory
		err := rows.Scan(
			&entry.ID,
			&entry.AppID,
			&entry.Version,
			&entry.ReleaseDate,
			&entry.ChangeNotes,
			&entry.IsNotified,
			&entry.IsImportant,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version history: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version history: %w", err)
	}

	return entries, nil
}

func (r *PostgresAppRepository) ApplySync(ctx context.Context, id string, patch *models.AppPatch, entry *models.VersionHistory) (*models.App, error) {
	var app *models.App
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		app, err = updateApp(ctx, tx, id, patch)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.AppID = id
		return insertVersionHistory(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func getApp(ctx context.Context, q querier, id string) (*models.App, error) {
	query := `SELECT ` + appColumns + ` FROM apps WHERE id = $1`

	app, err := scanApp(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return app, nil
}

func updateApp(ctx context.Context, q querier, id string, patch *models.AppPatch) (*models.App, error) {
	if patch == nil || patch.IsEmpty() {
		return getApp(ctx, q, id)
	}

	set, args := patchAssignments(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE apps SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(set, ", "), len(args), appColumns)

	app, err := scanApp(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update app: %w", err)
	}
	return app, nil
}

// patchAssignments renders the non-nil patch fields as SET clauses with
// positional arguments starting at $1.
func patchAssignments(patch *models.AppPatch) ([]string, []any) {
	var set []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.OriginalAppID != nil {
		add("original_app_id", *patch.OriginalAppID)
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.IconURL != nil {
		add("icon_url", *patch.IconURL)
	}
	if patch.Screenshots != nil {
		add("screenshots", patch.Screenshots)
	}
	if patch.Developer != nil {
		add("developer", *patch.Developer)
	}
	if patch.CategoryID != nil {
		add("category_id", *patch.CategoryID)
	}
	if patch.Version != nil {
		add("version", *patch.Version)
	}
	if patch.Size != nil {
		add("size", *patch.Size)
	}
	if patch.Updated != nil {
		add("updated", *patch.Updated)
	}
	if patch.Downloads != nil {
		add("downloads", *patch.Downloads)
	}
	if patch.Rating != nil {
		add("rating", *patch.Rating)
	}
	if patch.DownloadURL != nil {
		add("download_url", *patch.DownloadURL)
	}
	if patch.StoreURL != nil {
		add("store_url", *patch.StoreURL)
	}
	if patch.LastSyncedAt != nil {
		add("last_synced_at", *patch.LastSyncedAt)
	}
	return set, args
}

func insertVersionHistory(ctx context.Context, q querier, entry *models.VersionHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	query := `INSERT INTO app_version_history (id, app_id, version, release_date, change_notes, is_notified, is_important)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at`

	err := q.QueryRow(ctx, query,
		entry.ID,
		entry.AppID,
		entry.Version,
		entry.ReleaseDate,
		entry.ChangeNotes,
		entry.IsNotified,
		entry.IsImportant,
	).Scan(&entry.CreatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to append version history: %w", err)
	}
	return nil
}

func scanApp(row pgx.Row) (*models.App, error) {
	var app models.App
	err := row.Scan(
		&app.ID,
		&app.OriginalAppID,
		&app.Name,
		&app.Description,
		&app.IconURL,
		&app.Screenshots,
		&app.Developer,
		&app.CategoryID,
		&app.Version,
		&app.Size,
		&app.Updated,
		&app.Downloads,
		&app.Rating,
		&app.DownloadURL,
		&app.StoreURL,
		&app.AffiliateURL,
		&app.IsFeatured,
		&app.LastSyncedAt,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}
