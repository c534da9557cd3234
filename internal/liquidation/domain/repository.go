package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AssetRepository defines access for asset persistence.
type AssetRepository interface {
	Save(ctx context.Context, asset *Asset) error
	FindByID(ctx context.Context, id uuid.UUID) (*Asset, error)

	// FindUnpledgedByOwnerAndCategory returns the owner's unpledged assets in
	// a category, most valuable first, so the initiation sweep pledges the
	// best match.
	FindUnpledgedByOwnerAndCategory(ctx context.Context, ownerID uuid.UUID, category string) ([]*Asset, error)

	// Delete removes a sold asset.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListingRepository defines access for listing persistence. Save performs a
// versioned conditional update and returns
// shared/domain.ErrVersionConflict when the stored version moved underneath
// the caller.
type ListingRepository interface {
	Save(ctx context.Context, listing *Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)

	// FindActiveByContract returns the contract's open listing, if any.
	FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*Listing, error)

	// FindEnded returns active listings whose auction window closed at or
	// before asOf.
	FindEnded(ctx context.Context, asOf time.Time) ([]*Listing, error)
}
