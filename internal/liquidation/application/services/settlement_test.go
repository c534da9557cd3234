package services

import (
	"context"
	"testing"
	"time"

	contractsDomain "github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	"github.com/felixgeelhaar/arrears/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func endedListing(contractID uuid.UUID, bid decimal.Decimal, now time.Time) *domain.Listing {
	var bidder *uuid.UUID
	if bid.IsPositive() {
		id := uuid.New()
		bidder = &id
	}
	return domain.RehydrateListing(domain.RehydratedListing{
		ID:              uuid.New(),
		ContractID:      contractID,
		AssetID:         uuid.New(),
		StartingPrice:   decimal.NewFromInt(700),
		CurrentBid:      bid,
		HighestBidderID: bidder,
		EndsAt:          now.Add(-time.Hour),
		Status:          domain.ListingActive,
		CreatedAt:       now.AddDate(0, 0, -7),
		UpdatedAt:       now.AddDate(0, 0, -1),
		Version:         2,
	})
}

func liquidatingContract(due time.Time, paid decimal.Decimal) *contractsDomain.Contract {
	c := delinquentContract(due, contractsDomain.CollateralVehicle)
	contract := contractsDomain.RehydrateContract(contractsDomain.RehydratedContract{
		ID:                     c.ID(),
		OwnerID:                c.OwnerID(),
		MonthlyPayment:         decimal.NewFromInt(100),
		DurationMonths:         12,
		TotalObligation:        decimal.NewFromInt(1000),
		AmountPaid:             paid,
		NextPaymentDue:         &due,
		PenaltyPercentage:      decimal.NewFromInt(10),
		CompoundFrequency:      contractsDomain.CompoundNone,
		CollateralType:         contractsDomain.CollateralVehicle,
		Accepted:               true,
		InLiquidation:          true,
		GatewayCustomerID:      "cus_1",
		GatewaySubscriptionID:  "sub_1",
		GatewayPaymentMethodID: "pm_1",
		CreatedAt:              due.AddDate(0, -1, 0),
		UpdatedAt:              due.AddDate(0, 0, -7),
		Version:                3,
	})
	return contract
}

func TestSettlementService_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("partial sale credits the contract and keeps it open", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)
		listings := new(mockListingRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := new(mockNotifier)

		contract := liquidatingContract(now.AddDate(0, 0, -14), decimal.Zero)
		listing := endedListing(contract.ID(), decimal.NewFromInt(900), now)

		listings.On("FindEnded", ctx, now).Return([]*domain.Listing{listing}, nil)
		contracts.On("FindByID", ctx, contract.ID()).Return(contract, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		listings.On("Save", txCtx, listing).Return(nil)
		assets.On("Delete", txCtx, listing.AssetID()).Return(nil)
		contracts.On("Save", txCtx, contract).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)

		notifier.On("Notify", ctx, contract.OwnerID(), mock.MatchedBy(func(n notify.Notification) bool {
			return n.Kind == notify.KindLiquidationClosed
		})).Return(nil)

		service := NewSettlementService(contracts, assets, listings, outboxRepo, uow, notifier, nil).WithClock(clock)
		report, err := service.Sweep(ctx)

		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, []string{"sold"}, report.Outcomes[0].Actions)

		assert.Equal(t, domain.ListingSold, listing.Status())
		assert.False(t, contract.InLiquidation())
		assert.True(t, contract.AmountPaid().Equal(decimal.NewFromInt(900)))
		assert.True(t, contract.RemainingBalance().Equal(decimal.NewFromInt(100)))
		assert.False(t, contract.IsResolved())

		contracts.AssertExpectations(t)
		assets.AssertExpectations(t)
		listings.AssertExpectations(t)
		uow.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("sale covering the balance resolves the contract", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)
		listings := new(mockListingRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := new(mockNotifier)

		contract := liquidatingContract(now.AddDate(0, 0, -14), decimal.NewFromInt(200))
		listing := endedListing(contract.ID(), decimal.NewFromInt(900), now)

		listings.On("FindEnded", ctx, now).Return([]*domain.Listing{listing}, nil)
		contracts.On("FindByID", ctx, contract.ID()).Return(contract, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		listings.On("Save", txCtx, listing).Return(nil)
		assets.On("Delete", txCtx, listing.AssetID()).Return(nil)
		contracts.On("Save", txCtx, contract).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)
		notifier.On("Notify", ctx, contract.OwnerID(), mock.AnythingOfType("notify.Notification")).Return(nil)

		service := NewSettlementService(contracts, assets, listings, outboxRepo, uow, notifier, nil).WithClock(clock)
		report, err := service.Sweep(ctx)

		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, []string{"sold", "contract_resolved"}, report.Outcomes[0].Actions)

		// 200 paid plus the 900 sale overshoots the 1000 obligation; the
		// overshoot stands and the contract closes.
		assert.True(t, contract.AmountPaid().Equal(decimal.NewFromInt(1100)))
		assert.True(t, contract.IsResolved())
		assert.True(t, contract.IsCancelled())
		assert.Nil(t, contract.NextPaymentDue())
	})

	t.Run("ended listing without bids stays active", func(t *testing.T) {
		contracts := new(mockContractRepo)
		listings := new(mockListingRepo)
		uow := new(mockUnitOfWork)

		listing := endedListing(uuid.New(), decimal.Zero, now)
		listings.On("FindEnded", ctx, now).Return([]*domain.Listing{listing}, nil)

		service := NewSettlementService(contracts, new(mockAssetRepo), listings, new(mockOutboxRepo), uow, new(mockNotifier), nil).WithClock(clock)
		report, err := service.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, "ended without bids", report.Outcomes[0].Error)
		assert.Equal(t, domain.ListingActive, listing.Status())

		contracts.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("missing contract fails the item", func(t *testing.T) {
		contracts := new(mockContractRepo)
		listings := new(mockListingRepo)

		listing := endedListing(uuid.New(), decimal.NewFromInt(900), now)
		listings.On("FindEnded", ctx, now).Return([]*domain.Listing{listing}, nil)
		contracts.On("FindByID", ctx, listing.ContractID()).Return(nil, nil)

		service := NewSettlementService(contracts, new(mockAssetRepo), listings, new(mockOutboxRepo), new(mockUnitOfWork), new(mockNotifier), nil).WithClock(clock)
		report, err := service.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, "contract not found", report.Outcomes[0].Error)
	})
}
