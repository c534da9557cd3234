package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrListingNotActive = errors.New("listing is not active")
	ErrListingNotEnded  = errors.New("listing has not ended")
	ErrBidTooLow        = errors.New("bid must exceed the current bid and the starting price")
	ErrListingEnded     = errors.New("listing has ended")
)

// Auction parameters for collateral sales.
const (
	// ListingDurationDays is how long a liquidation auction stays open.
	ListingDurationDays = 7
)

// StartingPriceRatio is the fraction of the asset's estimated value a
// liquidation auction opens at.
var StartingPriceRatio = decimal.NewFromFloat(0.70)

// ListingStatus is the lifecycle state of a liquidation auction.
type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingWithdrawn ListingStatus = "withdrawn"
)

// Listing is a liquidation auction for one pledged asset. It opens at
// seventy percent of the asset's estimated value and runs for seven days;
// settlement credits the winning bid to the delinquent contract.
type Listing struct {
	sharedDomain.BaseAggregateRoot
	contractID      uuid.UUID
	assetID         uuid.UUID
	startingPrice   decimal.Decimal
	currentBid      decimal.Decimal
	highestBidderID *uuid.UUID
	endsAt          time.Time
	status          ListingStatus
}

// NewListing opens an auction for a pledged asset backing a delinquent
// contract.
func NewListing(contractID, assetID uuid.UUID, assetValue decimal.Decimal, now time.Time) (*Listing, error) {
	if !assetValue.IsPositive() {
		return nil, ErrInvalidAssetValue
	}

	l := &Listing{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		contractID:        contractID,
		assetID:           assetID,
		startingPrice:     assetValue.Mul(StartingPriceRatio),
		currentBid:        decimal.Zero,
		endsAt:            now.UTC().AddDate(0, 0, ListingDurationDays),
		status:            ListingActive,
	}

	l.AddDomainEvent(NewListingOpened(l))

	return l, nil
}

// Getters
func (l *Listing) ContractID() uuid.UUID         { return l.contractID }
func (l *Listing) AssetID() uuid.UUID            { return l.assetID }
func (l *Listing) StartingPrice() decimal.Decimal { return l.startingPrice }
func (l *Listing) CurrentBid() decimal.Decimal   { return l.currentBid }
func (l *Listing) HighestBidderID() *uuid.UUID   { return l.highestBidderID }
func (l *Listing) EndsAt() time.Time             { return l.endsAt }
func (l *Listing) Status() ListingStatus         { return l.status }

// HasBid reports whether anyone has bid on the listing.
func (l *Listing) HasBid() bool {
	return l.highestBidderID != nil
}

// Ended reports whether the auction window has closed.
func (l *Listing) Ended(now time.Time) bool {
	return !now.Before(l.endsAt)
}

// PlaceBid records a bid. Bids must meet the starting price and beat the
// current highest bid.
func (l *Listing) PlaceBid(bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if l.status != ListingActive {
		return ErrListingNotActive
	}
	if l.Ended(now) {
		return ErrListingEnded
	}
	if amount.LessThan(l.startingPrice) || !amount.GreaterThan(l.currentBid) {
		return ErrBidTooLow
	}

	l.currentBid = amount
	l.highestBidderID = &bidderID
	l.Touch()

	l.AddDomainEvent(NewBidPlaced(l, bidderID, amount))

	return nil
}

// MarkSold closes an ended auction that received a bid. The winning amount
// is what settlement credits to the contract.
func (l *Listing) MarkSold(now time.Time) error {
	if l.status != ListingActive {
		return ErrListingNotActive
	}
	if !l.Ended(now) {
		return ErrListingNotEnded
	}
	if !l.HasBid() {
		return ErrBidTooLow
	}

	l.status = ListingSold
	l.Touch()

	l.AddDomainEvent(NewListingSold(l))

	return nil
}

// Withdraw closes a listing without a sale, releasing the asset back to its
// owner.
func (l *Listing) Withdraw() error {
	if l.status != ListingActive {
		return ErrListingNotActive
	}
	l.status = ListingWithdrawn
	l.Touch()

	l.AddDomainEvent(NewListingWithdrawn(l))

	return nil
}

// RehydratedListing carries persisted state back into a Listing.
type RehydratedListing struct {
	ID              uuid.UUID
	ContractID      uuid.UUID
	AssetID         uuid.UUID
	StartingPrice   decimal.Decimal
	CurrentBid      decimal.Decimal
	HighestBidderID *uuid.UUID
	EndsAt          time.Time
	Status          ListingStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int
}

// RehydrateListing recreates a listing from persisted state.
func RehydrateListing(state RehydratedListing) *Listing {
	return &Listing{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(state.ID, state.CreatedAt, state.UpdatedAt),
			state.Version,
		),
		contractID:      state.ContractID,
		assetID:         state.AssetID,
		startingPrice:   state.StartingPrice,
		currentBid:      state.CurrentBid,
		highestBidderID: state.HighestBidderID,
		endsAt:          state.EndsAt,
		status:          state.Status,
	}
}
