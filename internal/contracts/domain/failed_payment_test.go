package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFailedPayment(t *testing.T) {
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("opens pending with first retry a day out", func(t *testing.T) {
		fp, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)

		require.NoError(t, err)
		assert.Equal(t, RetryPending, fp.Status())
		assert.Equal(t, 0, fp.RetryCount())
		assert.Equal(t, now.Add(24*time.Hour), fp.NextRetryDate())
		assert.True(t, fp.IsOpen())
		require.Len(t, fp.DomainEvents(), 1)
		assert.IsType(t, &ChargeFailureRecorded{}, fp.DomainEvents()[0])
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewFailedPayment(uuid.New(), decimal.Zero, now)
		assert.ErrorIs(t, err, ErrNonPositivePayment)
	})
}

func TestFailedPayment_RetryLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("linear backoff grows with the attempt count", func(t *testing.T) {
		fp, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)
		require.NoError(t, err)

		require.NoError(t, fp.BeginRetry())
		assert.Equal(t, RetryInFlight, fp.Status())
		assert.Equal(t, 1, fp.RetryCount())

		require.NoError(t, fp.ScheduleNextRetry("card_declined", now))
		assert.Equal(t, RetryPending, fp.Status())
		assert.Equal(t, "card_declined", fp.LastFailureReason())
		assert.Equal(t, now.Add(24*time.Hour), fp.NextRetryDate())

		require.NoError(t, fp.BeginRetry())
		require.NoError(t, fp.ScheduleNextRetry("card_declined", now))
		assert.Equal(t, now.Add(48*time.Hour), fp.NextRetryDate())

		require.NoError(t, fp.BeginRetry())
		require.NoError(t, fp.ScheduleNextRetry("card_declined", now))
		assert.Equal(t, now.Add(72*time.Hour), fp.NextRetryDate())
		assert.True(t, fp.RetriesExhausted())
	})

	t.Run("fourth attempt is refused", func(t *testing.T) {
		fp := exhaustedFailedPayment(t, now)
		assert.ErrorIs(t, fp.BeginRetry(), ErrRetriesExhausted)
	})

	t.Run("abandon only from pending", func(t *testing.T) {
		fp, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)
		require.NoError(t, err)
		require.NoError(t, fp.BeginRetry())

		assert.ErrorIs(t, fp.Abandon(), ErrRetryNotPending)

		require.NoError(t, fp.ScheduleNextRetry("card_declined", now))
		fp.ClearDomainEvents()
		require.NoError(t, fp.Abandon())
		assert.Equal(t, RetryAbandoned, fp.Status())
		assert.False(t, fp.IsOpen())
		require.Len(t, fp.DomainEvents(), 1)
		assert.IsType(t, &FailedPaymentAbandoned{}, fp.DomainEvents()[0])
	})

	t.Run("resolves from either open state", func(t *testing.T) {
		pending, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)
		require.NoError(t, err)
		require.NoError(t, pending.MarkResolved())
		assert.Equal(t, RetryResolved, pending.Status())

		inFlight, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)
		require.NoError(t, err)
		require.NoError(t, inFlight.BeginRetry())
		require.NoError(t, inFlight.MarkResolved())
		assert.Equal(t, RetryResolved, inFlight.Status())

		assert.ErrorIs(t, pending.MarkResolved(), ErrRetryNotInProgress)
	})
}

func TestRehydrateFailedPayment(t *testing.T) {
	id := uuid.New()
	contractID := uuid.New()
	now := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	fp := RehydrateFailedPayment(RehydratedFailedPayment{
		ID:                id,
		ContractID:        contractID,
		Amount:            decimal.NewFromInt(100),
		RetryCount:        2,
		NextRetryDate:     now.Add(48 * time.Hour),
		Status:            RetryPending,
		LastFailureReason: "insufficient_funds",
		CreatedAt:         now.Add(-72 * time.Hour),
		UpdatedAt:         now,
		Version:           3,
	})

	assert.Equal(t, id, fp.ID())
	assert.Equal(t, contractID, fp.ContractID())
	assert.Equal(t, 2, fp.RetryCount())
	assert.Equal(t, 3, fp.Version())
	assert.False(t, fp.RetriesExhausted())
	assert.Empty(t, fp.DomainEvents())
}

func exhaustedFailedPayment(t *testing.T, now time.Time) *FailedPayment {
	t.Helper()
	fp, err := NewFailedPayment(uuid.New(), decimal.NewFromInt(100), now)
	require.NoError(t, err)
	for i := 0; i < MaxRetryAttempts; i++ {
		require.NoError(t, fp.BeginRetry())
		require.NoError(t, fp.ScheduleNextRetry("card_declined", now))
	}
	return fp
}
