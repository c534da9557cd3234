package commands

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrListingNotFound is returned when the referenced listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// PlaceBidCommand records a bid on an open liquidation listing.
type PlaceBidCommand struct {
	ListingID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
}

// PlaceBidHandler handles the PlaceBidCommand.
type PlaceBidHandler struct {
	listings   domain.ListingRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	now        func() time.Time
}

// NewPlaceBidHandler creates a new PlaceBidHandler.
func NewPlaceBidHandler(listings domain.ListingRepository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *PlaceBidHandler {
	return &PlaceBidHandler{
		listings:   listings,
		outboxRepo: outboxRepo,
		uow:        uow,
		now:        time.Now,
	}
}

// WithClock overrides the handler's clock.
func (h *PlaceBidHandler) WithClock(now func() time.Time) *PlaceBidHandler {
	h.now = now
	return h
}

// Handle executes the PlaceBidCommand. Two racing bidders are arbitrated by
// the listing's version: the loser gets a conflict and can retry against
// the fresh state.
func (h *PlaceBidHandler) Handle(ctx context.Context, cmd PlaceBidCommand) error {
	listing, err := h.listings.FindByID(ctx, cmd.ListingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return ErrListingNotFound
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := listing.PlaceBid(cmd.BidderID, cmd.Amount, h.now().UTC()); err != nil {
			return err
		}
		if err := h.listings.Save(txCtx, listing); err != nil {
			return err
		}

		events := listing.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(cmd.BidderID))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return h.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		return err
	}
	listing.ClearDomainEvents()

	return nil
}
