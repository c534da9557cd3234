package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	occurredAt := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("records a charge outcome", func(t *testing.T) {
		contractID := uuid.New()

		p, err := NewPayment(contractID, decimal.NewFromInt(100), "ch_123", PaymentSucceeded, occurredAt)

		require.NoError(t, err)
		assert.Equal(t, contractID, p.ContractID())
		assert.Equal(t, "ch_123", p.GatewayChargeID())
		assert.Equal(t, PaymentSucceeded, p.Status())
		assert.Equal(t, occurredAt, p.OccurredAt())
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), decimal.NewFromInt(100), "ch_123", "refunded", occurredAt)
		assert.ErrorIs(t, err, ErrInvalidPaymentStatus)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := NewPayment(uuid.New(), decimal.Zero, "ch_123", PaymentSucceeded, occurredAt)
		assert.ErrorIs(t, err, ErrNonPositivePayment)
	})
}

func TestPayment_Confirm(t *testing.T) {
	occurredAt := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	t.Run("pending can be confirmed once", func(t *testing.T) {
		p, err := NewPayment(uuid.New(), decimal.NewFromInt(100), "", PaymentPending, occurredAt)
		require.NoError(t, err)

		require.NoError(t, p.Confirm(PaymentSucceeded))
		assert.Equal(t, PaymentSucceeded, p.Status())

		assert.ErrorIs(t, p.Confirm(PaymentFailed), ErrPaymentNotPending)
	})

	t.Run("cannot confirm back to pending", func(t *testing.T) {
		p, err := NewPayment(uuid.New(), decimal.NewFromInt(100), "", PaymentPending, occurredAt)
		require.NoError(t, err)

		assert.ErrorIs(t, p.Confirm(PaymentPending), ErrInvalidPaymentStatus)
	})
}
