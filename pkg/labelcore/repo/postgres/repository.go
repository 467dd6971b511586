// Package postgres provides the PostgreSQL Repository. The conditional
// version update is a single atomic UPDATE ... WHERE id AND version, so
// optimistic concurrency is enforced by the database, never by
// read-then-write at the application layer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/printforge/labelcore/pkg/labelcore"
)

// DBTX allows using either a connection pool or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements labelcore.Repository and labelcore.Authorizer
// using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository from a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const labelColumns = `id, project_id, name, description, width_mm, height_mm, content, thumbnail_key, version, created_at, updated_at`

func scanLabel(row pgx.Row) (*labelcore.Label, error) {
	var label labelcore.Label
	err := row.Scan(
		&label.ID, &label.ProjectID, &label.Name, &label.Description,
		&label.WidthMM, &label.HeightMM, &label.Content, &label.ThumbnailKey,
		&label.Version, &label.CreatedAt, &label.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &label, nil
}

// mapError translates driver errors to domain errors.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			if strings.Contains(pgErr.ConstraintName, "name") {
				return labelcore.ErrNameTaken
			}
			return fmt.Errorf("%s: duplicate entry: %w", op, err)
		case "23503": // foreign_key_violation
			return labelcore.ErrProjectNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Project operations

func (r *Repository) CreateProject(ctx context.Context, project *labelcore.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		project.ID, project.OwnerID, project.Name, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return mapError("create project", err)
	}
	return nil
}

func (r *Repository) GetProject(ctx context.Context, id uuid.UUID) (*labelcore.Project, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE id = $1 AND deleted_at IS NULL`

	var project labelcore.Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID, &project.OwnerID, &project.Name, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, labelcore.ErrProjectNotFound
		}
		return nil, mapError("get project", err)
	}
	return &project, nil
}

func (r *Repository) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]*labelcore.Project, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM projects
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, mapError("list projects", err)
	}
	defer rows.Close()

	var projects []*labelcore.Project
	for rows.Next() {
		var project labelcore.Project
		if err := rows.Scan(&project.ID, &project.OwnerID, &project.Name,
			&project.CreatedAt, &project.UpdatedAt); err != nil {
			return nil, mapError("list projects", err)
		}
		projects = append(projects, &project)
	}
	return projects, rows.Err()
}

// Label operations

func (r *Repository) CreateLabel(ctx context.Context, label *labelcore.Label) error {
	query := `
		INSERT INTO labels (` + labelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		label.ID, label.ProjectID, label.Name, label.Description,
		label.WidthMM, label.HeightMM, label.Content, label.ThumbnailKey,
		label.Version, label.CreatedAt, label.UpdatedAt)
	if err != nil {
		return mapError("create label", err)
	}
	return nil
}

func (r *Repository) GetLabel(ctx context.Context, id uuid.UUID) (*labelcore.Label, error) {
	query := `
		SELECT ` + labelColumns + `
		FROM labels
		WHERE id = $1 AND deleted_at IS NULL`

	label, err := scanLabel(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, labelcore.ErrLabelNotFound
		}
		return nil, mapError("get label", err)
	}
	return label, nil
}

func (r *Repository) ListLabels(ctx context.Context, projectID uuid.UUID) ([]*labelcore.Label, error) {
	query := `
		SELECT ` + labelColumns + `
		FROM labels
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapError("list labels", err)
	}
	defer rows.Close()

	var labels []*labelcore.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, mapError("list labels", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

func (r *Repository) DeleteLabel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE labels
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return mapError("delete label", err)
	}
	if tag.RowsAffected() == 0 {
		return labelcore.ErrLabelNotFound
	}
	return nil
}

func (r *Repository) SiblingNames(ctx context.Context, projectID uuid.UUID) ([]string, error) {
	query := `
		SELECT name FROM labels
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY name`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, mapError("sibling names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError("sibling names", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdateLabelIfVersion is the compare-and-swap primitive: the version guard
// lives in the WHERE clause, so a stale expected version updates zero rows
// and the row is never half-written.
func (r *Repository) UpdateLabelIfVersion(ctx context.Context, id uuid.UUID, expected int, patch labelcore.LabelPatch) (*labelcore.Label, error) {
	query := `
		UPDATE labels SET
			name          = COALESCE($3, name),
			description   = COALESCE($4, description),
			width_mm      = COALESCE($5, width_mm),
			height_mm     = COALESCE($6, height_mm),
			content       = COALESCE($7, content),
			thumbnail_key = COALESCE($8, thumbnail_key),
			version       = version + 1,
			updated_at    = now()
		WHERE id = $1 AND version = $2 AND deleted_at IS NULL
		RETURNING ` + labelColumns

	var content interface{}
	if len(patch.Content) > 0 {
		content = []byte(patch.Content)
	}

	label, err := scanLabel(r.db.QueryRow(ctx, query,
		id, expected, patch.Name, patch.Description,
		patch.WidthMM, patch.HeightMM, content, patch.ThumbnailKey))
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, mapError("update label", err)
	}

	// Zero rows: distinguish a missing label from a version mismatch.
	var current int
	err = r.db.QueryRow(ctx,
		`SELECT version FROM labels WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, labelcore.ErrLabelNotFound
		}
		return nil, mapError("update label", err)
	}
	return nil, &labelcore.VersionConflictError{LabelID: id, Expected: expected, Current: current}
}

// Authorizer

func (r *Repository) OwnsProject(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM projects
			WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		)`

	var owns bool
	if err := r.db.QueryRow(ctx, query, projectID, userID).Scan(&owns); err != nil {
		return false, mapError("owns project", err)
	}
	return owns, nil
}

func (r *Repository) OwnsLabel(ctx context.Context, userID, labelID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM labels l
			JOIN projects p ON p.id = l.project_id
			WHERE l.id = $1 AND p.owner_id = $2
			  AND l.deleted_at IS NULL AND p.deleted_at IS NULL
		)`

	var owns bool
	if err := r.db.QueryRow(ctx, query, labelID, userID).Scan(&owns); err != nil {
		return false, mapError("owns label", err)
	}
	return owns, nil
}
