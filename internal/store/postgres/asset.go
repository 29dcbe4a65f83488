package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/provenlabs/opsledger/internal/domain"
)

type AssetRepo struct {
	pool *pgxpool.Pool
}

func NewAssetRepo(pool *pgxpool.Pool) *AssetRepo {
	return &AssetRepo{pool: pool}
}

func (r *AssetRepo) Create(ctx context.Context, a *domain.Asset) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO assets (id, name, asset_type, location, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Name, a.AssetType, a.Location, a.Description, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("assetRepo.Create: %w", err)
	}

	return nil
}

func (r *AssetRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	var a domain.Asset

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, asset_type, location, description, created_at, updated_at
		 FROM assets WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.AssetType, &a.Location, &a.Description, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("assetRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assetRepo.GetByID: %w", err)
	}

	return &a, nil
}

func (r *AssetRepo) List(ctx context.Context) ([]*domain.Asset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, asset_type, location, description, created_at, updated_at
		 FROM assets ORDER BY name LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("assetRepo.List: %w", err)
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.AssetType, &a.Location, &a.Description, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("assetRepo.List: scan: %w", err)
		}
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assetRepo.List: rows: %w", err)
	}

	return assets, nil
}

func (r *AssetRepo) Update(ctx context.Context, a *domain.Asset) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE assets SET name = $2, asset_type = $3, location = $4, description = $5, updated_at = $6
		 WHERE id = $1`,
		a.ID, a.Name, a.AssetType, a.Location, a.Description, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("assetRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assetRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *AssetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("assetRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assetRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
