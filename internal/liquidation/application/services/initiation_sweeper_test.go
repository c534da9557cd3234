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

func delinquentContract(due time.Time, collateral contractsDomain.CollateralType) *contractsDomain.Contract {
	return contractsDomain.RehydrateContract(contractsDomain.RehydratedContract{
		ID:                     uuid.New(),
		OwnerID:                uuid.New(),
		MonthlyPayment:         decimal.NewFromInt(100),
		DurationMonths:         12,
		TotalObligation:        decimal.NewFromInt(1000),
		AmountPaid:             decimal.Zero,
		NextPaymentDue:         &due,
		PenaltyPercentage:      decimal.NewFromInt(10),
		CompoundFrequency:      contractsDomain.CompoundNone,
		CollateralType:         collateral,
		Accepted:               true,
		GatewayCustomerID:      "cus_1",
		GatewaySubscriptionID:  "sub_1",
		GatewayPaymentMethodID: "pm_1",
		CreatedAt:              due.AddDate(0, -1, 0),
		UpdatedAt:              due.AddDate(0, -1, 0),
		Version:                1,
	})
}

func TestInitiationSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("pledges the best asset and opens a listing", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)
		listings := new(mockListingRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := new(mockNotifier)

		contract := delinquentContract(now.AddDate(0, 0, -8), contractsDomain.CollateralVehicle)
		best, err := domain.NewAsset(contract.OwnerID(), "vehicle", "2019 pickup", decimal.NewFromInt(10000))
		require.NoError(t, err)
		runnerUp, err := domain.NewAsset(contract.OwnerID(), "vehicle", "2008 sedan", decimal.NewFromInt(3000))
		require.NoError(t, err)

		contracts.On("FindOverdue", ctx, now).Return([]*contractsDomain.Contract{contract}, nil)
		assets.On("FindUnpledgedByOwnerAndCategory", ctx, contract.OwnerID(), "vehicle").
			Return([]*domain.Asset{best, runnerUp}, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		assets.On("Save", txCtx, best).Return(nil)
		listings.On("Save", txCtx, mock.MatchedBy(func(l *domain.Listing) bool {
			return l.ContractID() == contract.ID() &&
				l.AssetID() == best.ID() &&
				l.StartingPrice().Equal(decimal.NewFromInt(7000))
		})).Return(nil)
		contracts.On("Save", txCtx, contract).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)

		notifier.On("Notify", ctx, contract.OwnerID(), mock.MatchedBy(func(n notify.Notification) bool {
			return n.Kind == notify.KindLiquidationOpened
		})).Return(nil)

		sweeper := NewInitiationSweeper(contracts, assets, listings, outboxRepo, uow, notifier, nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Acted)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, []string{"listing_opened"}, report.Outcomes[0].Actions)

		assert.True(t, best.IsPledged())
		assert.False(t, runnerUp.IsPledged())
		assert.True(t, contract.InLiquidation())

		contracts.AssertExpectations(t)
		assets.AssertExpectations(t)
		listings.AssertExpectations(t)
		uow.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("six days overdue is not yet eligible", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)
		uow := new(mockUnitOfWork)

		contract := delinquentContract(now.AddDate(0, 0, -6), contractsDomain.CollateralVehicle)
		contracts.On("FindOverdue", ctx, now).Return([]*contractsDomain.Contract{contract}, nil)

		sweeper := NewInitiationSweeper(contracts, assets, new(mockListingRepo), new(mockOutboxRepo), uow, new(mockNotifier), nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assets.AssertNotCalled(t, "FindUnpledgedByOwnerAndCategory", mock.Anything, mock.Anything, mock.Anything)
		uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("no matching asset leaves the contract for the next sweep", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)
		uow := new(mockUnitOfWork)

		contract := delinquentContract(now.AddDate(0, 0, -9), contractsDomain.CollateralVehicle)
		contracts.On("FindOverdue", ctx, now).Return([]*contractsDomain.Contract{contract}, nil)
		assets.On("FindUnpledgedByOwnerAndCategory", ctx, contract.OwnerID(), "vehicle").
			Return([]*domain.Asset{}, nil)

		sweeper := NewInitiationSweeper(contracts, assets, new(mockListingRepo), new(mockOutboxRepo), uow, new(mockNotifier), nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, "no unpledged asset in collateral category", report.Outcomes[0].Error)
		assert.False(t, contract.InLiquidation())
		uow.AssertNotCalled(t, "Begin", mock.Anything)
	})

	t.Run("contract already in liquidation is skipped", func(t *testing.T) {
		contracts := new(mockContractRepo)
		assets := new(mockAssetRepo)

		contract := delinquentContract(now.AddDate(0, 0, -9), contractsDomain.CollateralVehicle)
		require.NoError(t, contract.BeginLiquidation())
		contract.ClearDomainEvents()
		contracts.On("FindOverdue", ctx, now).Return([]*contractsDomain.Contract{contract}, nil)

		sweeper := NewInitiationSweeper(contracts, assets, new(mockListingRepo), new(mockOutboxRepo), new(mockUnitOfWork), new(mockNotifier), nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assets.AssertNotCalled(t, "FindUnpledgedByOwnerAndCategory", mock.Anything, mock.Anything, mock.Anything)
	})
}
