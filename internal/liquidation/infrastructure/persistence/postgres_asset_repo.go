package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const assetColumns = `
	id, owner_id, category, name, estimated_value, pledged,
	created_at, updated_at`

// PostgresAssetRepository implements domain.AssetRepository using PostgreSQL.
type PostgresAssetRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAssetRepository creates a new PostgreSQL asset repository.
func NewPostgresAssetRepository(pool *pgxpool.Pool) *PostgresAssetRepository {
	return &PostgresAssetRepository{pool: pool}
}

// assetRow represents a database row for assets.
type assetRow struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Category       string
	Name           string
	EstimatedValue decimal.Decimal
	Pledged        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Save upserts an asset.
func (r *PostgresAssetRepository) Save(ctx context.Context, asset *domain.Asset) error {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		INSERT INTO assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category,
			name = EXCLUDED.name,
			estimated_value = EXCLUDED.estimated_value,
			pledged = EXCLUDED.pledged,
			updated_at = EXCLUDED.updated_at
	`
	_, err := exec.Exec(ctx, query,
		asset.ID(),
		asset.OwnerID(),
		asset.Category(),
		asset.Name(),
		asset.EstimatedValue(),
		asset.IsPledged(),
		asset.CreatedAt(),
		asset.UpdatedAt(),
	)
	return err
}

// FindByID retrieves an asset by its ID. Returns nil, nil when absent.
func (r *PostgresAssetRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`

	row, err := scanAssetRow(exec.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToAsset(row), nil
}

// FindUnpledgedByOwnerAndCategory returns the owner's unpledged assets in a
// category, most valuable first.
func (r *PostgresAssetRepository) FindUnpledgedByOwnerAndCategory(ctx context.Context, ownerID uuid.UUID, category string) ([]*domain.Asset, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + assetColumns + `
		FROM assets
		WHERE owner_id = $1 AND category = $2 AND NOT pledged
		ORDER BY estimated_value DESC
	`
	rows, err := exec.Query(ctx, query, ownerID, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []*domain.Asset
	for rows.Next() {
		row, err := scanAssetRow(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, rowToAsset(row))
	}
	return assets, rows.Err()
}

// Delete removes a sold asset.
func (r *PostgresAssetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := database.ExecutorFromContext(ctx, r.pool)
	_, err := exec.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	return err
}

func scanAssetRow(row pgx.Row) (assetRow, error) {
	var r assetRow
	err := row.Scan(
		&r.ID,
		&r.OwnerID,
		&r.Category,
		&r.Name,
		&r.EstimatedValue,
		&r.Pledged,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func rowToAsset(row assetRow) *domain.Asset {
	return domain.RehydrateAsset(
		row.ID,
		row.OwnerID,
		row.Category,
		row.Name,
		row.EstimatedValue,
		row.Pledged,
		row.CreatedAt,
		row.UpdatedAt,
	)
}
