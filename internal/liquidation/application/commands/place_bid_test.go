package commands

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/arrears/internal/liquidation/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockListingRepo struct {
	mock.Mock
}

func (m *mockListingRepo) Save(ctx context.Context, listing *domain.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}

func (m *mockListingRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *mockListingRepo) FindActiveByContract(ctx context.Context, contractID uuid.UUID) (*domain.Listing, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *mockListingRepo) FindEnded(ctx context.Context, asOf time.Time) ([]*domain.Listing, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Listing), args.Error(1)
}

type mockAssetRepo struct {
	mock.Mock
}

func (m *mockAssetRepo) Save(ctx context.Context, asset *domain.Asset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *mockAssetRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Asset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *mockAssetRepo) FindUnpledgedByOwnerAndCategory(ctx context.Context, ownerID uuid.UUID, category string) ([]*domain.Asset, error) {
	args := m.Called(ctx, ownerID, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Asset), args.Error(1)
}

func (m *mockAssetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestPlaceBidHandler_Handle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	openListing := func(t *testing.T) *domain.Listing {
		t.Helper()
		l, err := domain.NewListing(uuid.New(), uuid.New(), decimal.NewFromInt(1000), now.AddDate(0, 0, -2))
		require.NoError(t, err)
		l.ClearDomainEvents()
		return l
	}

	t.Run("records a winning bid", func(t *testing.T) {
		listings := new(mockListingRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)

		listing := openListing(t)
		bidderID := uuid.New()
		listings.On("FindByID", ctx, listing.ID()).Return(listing, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		listings.On("Save", txCtx, listing).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)
		uow.On("Commit", txCtx).Return(nil)

		handler := NewPlaceBidHandler(listings, outboxRepo, uow).WithClock(clock)
		err := handler.Handle(ctx, PlaceBidCommand{
			ListingID: listing.ID(),
			BidderID:  bidderID,
			Amount:    decimal.NewFromInt(800),
		})

		require.NoError(t, err)
		assert.True(t, listing.CurrentBid().Equal(decimal.NewFromInt(800)))
		require.NotNil(t, listing.HighestBidderID())
		assert.Equal(t, bidderID, *listing.HighestBidderID())
		assert.Empty(t, listing.DomainEvents())

		listings.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("low bid rolls back", func(t *testing.T) {
		listings := new(mockListingRepo)
		uow := new(mockUnitOfWork)

		listing := openListing(t)
		listings.On("FindByID", ctx, listing.ID()).Return(listing, nil)

		txCtx := context.WithValue(ctx, "tx", "transaction")
		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)

		handler := NewPlaceBidHandler(listings, new(mockOutboxRepo), uow).WithClock(clock)
		err := handler.Handle(ctx, PlaceBidCommand{
			ListingID: listing.ID(),
			BidderID:  uuid.New(),
			Amount:    decimal.NewFromInt(100),
		})

		assert.ErrorIs(t, err, domain.ErrBidTooLow)
		listings.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		uow.AssertNotCalled(t, "Commit", mock.Anything)
	})

	t.Run("unknown listing", func(t *testing.T) {
		listings := new(mockListingRepo)
		id := uuid.New()
		listings.On("FindByID", ctx, id).Return(nil, nil)

		handler := NewPlaceBidHandler(listings, new(mockOutboxRepo), new(mockUnitOfWork))
		err := handler.Handle(ctx, PlaceBidCommand{ListingID: id, BidderID: uuid.New(), Amount: decimal.NewFromInt(800)})

		assert.ErrorIs(t, err, ErrListingNotFound)
	})
}
