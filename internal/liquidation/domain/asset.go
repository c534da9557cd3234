package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAssetValue   = errors.New("asset value must be positive")
	ErrEmptyAssetName      = errors.New("asset name cannot be empty")
	ErrAssetAlreadyPledged = errors.New("asset is already pledged")
	ErrAssetNotPledged     = errors.New("asset is not pledged")
)

// Asset is an owner's item of value that can be pledged as collateral and
// sold at auction when the backing contract goes delinquent. Category values
// match the contract's collateral type so the initiation sweep can match
// assets to contracts.
type Asset struct {
	sharedDomain.BaseEntity
	ownerID        uuid.UUID
	category       string
	name           string
	estimatedValue decimal.Decimal
	pledged        bool
}

// NewAsset registers an asset for an owner.
func NewAsset(ownerID uuid.UUID, category, name string, estimatedValue decimal.Decimal) (*Asset, error) {
	if name == "" {
		return nil, ErrEmptyAssetName
	}
	if !estimatedValue.IsPositive() {
		return nil, ErrInvalidAssetValue
	}

	return &Asset{
		BaseEntity:     sharedDomain.NewBaseEntity(),
		ownerID:        ownerID,
		category:       category,
		name:           name,
		estimatedValue: estimatedValue,
	}, nil
}

// Getters
func (a *Asset) OwnerID() uuid.UUID              { return a.ownerID }
func (a *Asset) Category() string                { return a.category }
func (a *Asset) Name() string                    { return a.name }
func (a *Asset) EstimatedValue() decimal.Decimal { return a.estimatedValue }
func (a *Asset) IsPledged() bool                 { return a.pledged }

// Pledge reserves the asset for a liquidation listing. A pledged asset
// cannot back a second listing.
func (a *Asset) Pledge() error {
	if a.pledged {
		return ErrAssetAlreadyPledged
	}
	a.pledged = true
	a.Touch()
	return nil
}

// Release returns the asset to its owner, for listings that close without
// a sale.
func (a *Asset) Release() error {
	if !a.pledged {
		return ErrAssetNotPledged
	}
	a.pledged = false
	a.Touch()
	return nil
}

// RehydrateAsset recreates an asset from persisted state.
func RehydrateAsset(id, ownerID uuid.UUID, category, name string, estimatedValue decimal.Decimal, pledged bool, createdAt, updatedAt time.Time) *Asset {
	return &Asset{
		BaseEntity:     sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		ownerID:        ownerID,
		category:       category,
		name:           name,
		estimatedValue: estimatedValue,
		pledged:        pledged,
	}
}
