package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const listingAggregate = "Listing"

// ListingOpened is emitted when a liquidation auction opens.
type ListingOpened struct {
	sharedDomain.BaseEvent
	ListingID     uuid.UUID       `json:"listing_id"`
	ContractID    uuid.UUID       `json:"contract_id"`
	AssetID       uuid.UUID       `json:"asset_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndsAt        time.Time       `json:"ends_at"`
}

// NewListingOpened creates a ListingOpened event.
func NewListingOpened(l *Listing) *ListingOpened {
	return &ListingOpened{
		BaseEvent:     sharedDomain.NewBaseEvent(l.ID(), listingAggregate, "liquidation.listing.opened"),
		ListingID:     l.ID(),
		ContractID:    l.ContractID(),
		AssetID:       l.AssetID(),
		StartingPrice: l.StartingPrice(),
		EndsAt:        l.EndsAt(),
	}
}

// BidPlaced is emitted when a bid lands on a listing.
type BidPlaced struct {
	sharedDomain.BaseEvent
	ListingID uuid.UUID       `json:"listing_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// NewBidPlaced creates a BidPlaced event.
func NewBidPlaced(l *Listing, bidderID uuid.UUID, amount decimal.Decimal) *BidPlaced {
	return &BidPlaced{
		BaseEvent: sharedDomain.NewBaseEvent(l.ID(), listingAggregate, "liquidation.listing.bid_placed"),
		ListingID: l.ID(),
		BidderID:  bidderID,
		Amount:    amount,
	}
}

// ListingSoldEvent is emitted when an ended auction closes with a winning bid.
type ListingSoldEvent struct {
	sharedDomain.BaseEvent
	ListingID  uuid.UUID       `json:"listing_id"`
	ContractID uuid.UUID       `json:"contract_id"`
	AssetID    uuid.UUID       `json:"asset_id"`
	SalePrice  decimal.Decimal `json:"sale_price"`
}

// NewListingSold creates a ListingSoldEvent event.
func NewListingSold(l *Listing) *ListingSoldEvent {
	return &ListingSoldEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(l.ID(), listingAggregate, "liquidation.listing.sold"),
		ListingID:  l.ID(),
		ContractID: l.ContractID(),
		AssetID:    l.AssetID(),
		SalePrice:  l.CurrentBid(),
	}
}

// ListingWithdrawnEvent is emitted when a listing closes without a sale.
type ListingWithdrawnEvent struct {
	sharedDomain.BaseEvent
	ListingID  uuid.UUID `json:"listing_id"`
	ContractID uuid.UUID `json:"contract_id"`
	AssetID    uuid.UUID `json:"asset_id"`
}

// NewListingWithdrawn creates a ListingWithdrawnEvent event.
func NewListingWithdrawn(l *Listing) *ListingWithdrawnEvent {
	return &ListingWithdrawnEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(l.ID(), listingAggregate, "liquidation.listing.withdrawn"),
		ListingID:  l.ID(),
		ContractID: l.ContractID(),
		AssetID:    l.AssetID(),
	}
}
