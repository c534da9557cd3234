package commands

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func unacceptedContract(t *testing.T, monthly decimal.Decimal) *domain.Contract {
	t.Helper()
	c, err := domain.NewContract(uuid.New(), domain.ContractTerms{
		MonthlyPayment:    monthly,
		DurationMonths:    12,
		TotalObligation:   decimal.NewFromInt(1000),
		PenaltyPercentage: decimal.NewFromInt(10),
		CompoundFrequency: domain.CompoundNone,
		CollateralType:    domain.CollateralVehicle,
	})
	require.NoError(t, err)
	c.ClearDomainEvents()
	return c
}

func TestAcceptContractHandler_Handle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("creates subscription and accepts", func(t *testing.T) {
		repo := new(mockContractRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		gatewayClient := new(mockGatewayClient)

		contract := unacceptedContract(t, decimal.NewFromInt(100))
		repo.On("FindByID", ctx, contract.ID()).Return(contract, nil)
		gatewayClient.On("CreateSubscription", ctx, "cus_1", int64(10000), gateway.IntervalMonthly).
			Return("sub_1", nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		repo.On("Save", txCtx, contract).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)

		handler := NewAcceptContractHandler(repo, outboxRepo, uow, gatewayClient).WithClock(clock)
		err := handler.Handle(ctx, AcceptContractCommand{
			ContractID:        contract.ID(),
			GatewayCustomerID: "cus_1",
			PaymentMethodID:   "pm_1",
		})

		require.NoError(t, err)
		assert.True(t, contract.IsAccepted())
		assert.Equal(t, "sub_1", contract.GatewaySubscriptionID())
		assert.Equal(t, "pm_1", contract.GatewayPaymentMethodID())
		require.NotNil(t, contract.NextPaymentDue())
		assert.Equal(t, now.AddDate(0, 1, 0), *contract.NextPaymentDue())

		repo.AssertExpectations(t)
		gatewayClient.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("percentage-of-income contract skips the subscription", func(t *testing.T) {
		repo := new(mockContractRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		gatewayClient := new(mockGatewayClient)

		contract := unacceptedContract(t, decimal.Zero)
		repo.On("FindByID", ctx, contract.ID()).Return(contract, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		repo.On("Save", txCtx, contract).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)

		handler := NewAcceptContractHandler(repo, outboxRepo, uow, gatewayClient).WithClock(clock)
		err := handler.Handle(ctx, AcceptContractCommand{
			ContractID:        contract.ID(),
			GatewayCustomerID: "cus_1",
		})

		require.NoError(t, err)
		assert.Empty(t, contract.GatewaySubscriptionID())
		gatewayClient.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown contract", func(t *testing.T) {
		repo := new(mockContractRepo)
		id := uuid.New()
		repo.On("FindByID", ctx, id).Return(nil, nil)

		handler := NewAcceptContractHandler(repo, new(mockOutboxRepo), new(mockUnitOfWork), new(mockGatewayClient))
		err := handler.Handle(ctx, AcceptContractCommand{ContractID: id})

		assert.ErrorIs(t, err, ErrContractNotFound)
	})

	t.Run("already accepted", func(t *testing.T) {
		repo := new(mockContractRepo)
		contract := unacceptedContract(t, decimal.NewFromInt(100))
		require.NoError(t, contract.Accept("cus_0", "sub_0", "pm_0", now))
		repo.On("FindByID", ctx, contract.ID()).Return(contract, nil)

		handler := NewAcceptContractHandler(repo, new(mockOutboxRepo), new(mockUnitOfWork), new(mockGatewayClient))
		err := handler.Handle(ctx, AcceptContractCommand{ContractID: contract.ID()})

		assert.ErrorIs(t, err, domain.ErrAlreadyAccepted)
	})

	t.Run("save failure cancels the fresh subscription", func(t *testing.T) {
		repo := new(mockContractRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		gatewayClient := new(mockGatewayClient)

		contract := unacceptedContract(t, decimal.NewFromInt(100))
		repo.On("FindByID", ctx, contract.ID()).Return(contract, nil)
		gatewayClient.On("CreateSubscription", ctx, "cus_1", int64(10000), gateway.IntervalMonthly).
			Return("sub_1", nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		repo.On("Save", txCtx, contract).Return(assert.AnError)
		uow.On("Rollback", txCtx).Return(nil)
		gatewayClient.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)

		handler := NewAcceptContractHandler(repo, outboxRepo, uow, gatewayClient).WithClock(clock)
		err := handler.Handle(ctx, AcceptContractCommand{
			ContractID:        contract.ID(),
			GatewayCustomerID: "cus_1",
			PaymentMethodID:   "pm_1",
		})

		assert.ErrorIs(t, err, assert.AnError)
		gatewayClient.AssertExpectations(t)
	})
}
