package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const listingColumns = `
	id, contract_id, asset_id, starting_price, current_bid,
	highest_bidder_id, ends_at, status, created_at, updated_at, version`

// PostgresListingRepository implements domain.ListingRepository using
// PostgreSQL. Bids and settlement race on the same row, so writes are
// versioned.
type PostgresListingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresListingRepository creates a new PostgreSQL listing repository.
func NewPostgresListingRepository(pool *pgxpool.Pool) *PostgresListingRepository {
	return &PostgresListingRepository{pool: pool}
}

// listingRow represents a database row for listings.
type listingRow struct {
	ID              uuid.UUID
	ContractID      uuid.UUID
	AssetID         uuid.UUID
	StartingPrice   decimal.Decimal
	CurrentBid      decimal.Decimal
	HighestBidderID *uuid.UUID
	EndsAt          time.Time
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// Save persists a listing with optimistic concurrency.
func (r *PostgresListingRepository) Save(ctx context.Context, listing *domain.Listing) error {
	exec := database.ExecutorFromContext(ctx, r.pool)

	if listing.Version() == 0 {
		query := `
			INSERT INTO listings (` + listingColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		_, err := exec.Exec(ctx, query,
			listing.ID(),
			listing.ContractID(),
			listing.AssetID(),
			listing.StartingPrice(),
			listing.CurrentBid(),
			listing.HighestBidderID(),
			listing.EndsAt(),
			string(listing.Status()),
			listing.CreatedAt(),
			listing.UpdatedAt(),
			1,
		)
		if err != nil {
			return err
		}
		listing.IncrementVersion()
		return nil
	}

	query := `
		UPDATE listings SET
			current_bid = $2,
			highest_bidder_id = $3,
			status = $4,
			updated_at = $5,
			version = $6
		WHERE id = $1 AND version = $7
	`
	tag, err := exec.Exec(ctx, query,
		listing.ID(),
		listing.CurrentBid(),
		listing.HighestBidderID(),
		string(listing.Status()),
		listing.UpdatedAt(),
		listing.Version()+1,
		listing.Version(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sharedDomain.ErrVersionConflict
	}
	listing.IncrementVersion()
	return nil
}

// FindByID retrieves a listing by its ID. Returns nil, nil when absent.
func (r *PostgresListingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	row, err := scanListingRow(exec.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToListing(row), nil
}

// FindActiveByContract returns the contract's open listing, if any.
func (r *PostgresListingRepository) FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*domain.Listing, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE contract_id = $1 AND status = $2
	`
	row, err := scanListingRow(exec.QueryRow(ctx, query, contractID, string(domain.ListingActive)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rowToListing(row), nil
}

// FindEnded returns active listings whose auction window closed.
func (r *PostgresListingRepository) FindEnded(ctx context.Context, asOf time.Time) ([]*domain.Listing, error) {
	exec := database.ExecutorFromContext(ctx, r.pool)
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE status = $1 AND ends_at <= $2
		ORDER BY ends_at
	`
	rows, err := exec.Query(ctx, query, string(domain.ListingActive), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []*domain.Listing
	for rows.Next() {
		row, err := scanListingRow(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, rowToListing(row))
	}
	return listings, rows.Err()
}

func scanListingRow(row pgx.Row) (listingRow, error) {
	var r listingRow
	err := row.Scan(
		&r.ID,
		&r.ContractID,
		&r.AssetID,
		&r.StartingPrice,
		&r.CurrentBid,
		&r.HighestBidderID,
		&r.EndsAt,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.Version,
	)
	return r, err
}

func rowToListing(row listingRow) *domain.Listing {
	return domain.RehydrateListing(domain.RehydratedListing{
		ID:              row.ID,
		ContractID:      row.ContractID,
		AssetID:         row.AssetID,
		StartingPrice:   row.StartingPrice,
		CurrentBid:      row.CurrentBid,
		HighestBidderID: row.HighestBidderID,
		EndsAt:          row.EndsAt,
		Status:          domain.ListingStatus(row.Status),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		Version:         row.Version,
	})
}
