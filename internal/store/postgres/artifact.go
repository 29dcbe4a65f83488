package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenlabs/opsledger/internal/domain"
)

type ArtifactRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactRepo(pool *pgxpool.Pool) *ArtifactRepo {
	return &ArtifactRepo{pool: pool}
}

const artifactColumns = `id, filename, content_type, size_bytes, sha256_hash, storage_path,
	artifact_type, description, run_id, uploaded_by, is_deleted, created_at, updated_at`

func (r *ArtifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.Filename, a.ContentType, a.SizeBytes, a.SHA256Hash, a.StoragePath,
		a.ArtifactType, a.Description, a.RunID, a.UploadedBy, a.IsDeleted,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("artifactRepo.Create: %w", err)
	}

	return nil
}

func (r *ArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	var a domain.Artifact

	err := r.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`,
		id,
	).Scan(
		&a.ID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.SHA256Hash, &a.StoragePath,
		&a.ArtifactType, &a.Description, &a.RunID, &a.UploadedBy, &a.IsDeleted,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("artifactRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("artifactRepo.GetByID: %w", err)
	}

	return &a, nil
}

// ListByRun returns non-deleted artifacts in creation order; proof runs
// depend on this ordering for reproducible reports.
func (r *ArtifactRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]*domain.Artifact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM artifacts
		 WHERE run_id = $1 AND is_deleted = FALSE
		 ORDER BY created_at LIMIT 1000`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("artifactRepo.ListByRun: %w", err)
	}
	defer rows.Close()

	var artifacts []*domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(
			&a.ID, &a.Filename, &a.ContentType, &a.SizeBytes, &a.SHA256Hash, &a.StoragePath,
			&a.ArtifactType, &a.Description, &a.RunID, &a.UploadedBy, &a.IsDeleted,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("artifactRepo.ListByRun: scan: %w", err)
		}
		artifacts = append(artifacts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("artifactRepo.ListByRun: rows: %w", err)
	}

	return artifacts, nil
}

func (r *ArtifactRepo) ExistsByRunAndFilename(ctx context.Context, runID uuid.UUID, filename string) (bool, error) {
	var exists bool

	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM artifacts WHERE run_id = $1 AND filename = $2 AND is_deleted = FALSE
		 )`,
		runID, filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("artifactRepo.ExistsByRunAndFilename: %w", err)
	}

	return exists, nil
}

func (r *ArtifactRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE artifacts SET is_deleted = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("artifactRepo.SoftDelete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("artifactRepo.SoftDelete: %w", domain.ErrNotFound)
	}

	return nil
}
