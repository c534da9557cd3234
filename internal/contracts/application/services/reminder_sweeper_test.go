package services

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReminderSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("reminds at each lead time", func(t *testing.T) {
		for _, lead := range []int{7, 3, 1, 0} {
			contracts := new(mockContractRepo)
			notifier := new(mockNotifier)

			contract := persistedContract(now.AddDate(0, 0, lead))
			contracts.On("FindBilled", ctx).Return([]*domain.Contract{contract}, nil)
			notifier.On("Notify", ctx, contract.OwnerID(), notificationOfKind(notify.KindPaymentReminder)).Return(nil)

			sweeper := NewReminderSweeper(contracts, notifier, nil).WithClock(clock)
			report, err := sweeper.Sweep(ctx)

			require.NoError(t, err)
			assert.Equal(t, 1, report.Acted, "lead %d", lead)
			notifier.AssertExpectations(t)
		}
	})

	t.Run("off-schedule due dates are quiet", func(t *testing.T) {
		contracts := new(mockContractRepo)
		notifier := new(mockNotifier)

		contract := persistedContract(now.AddDate(0, 0, 5))
		contracts.On("FindBilled", ctx).Return([]*domain.Contract{contract}, nil)

		sweeper := NewReminderSweeper(contracts, notifier, nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("overdue contracts get an overdue warning instead", func(t *testing.T) {
		contracts := new(mockContractRepo)
		notifier := new(mockNotifier)

		contract := persistedContract(now.AddDate(0, 0, -2))
		contracts.On("FindBilled", ctx).Return([]*domain.Contract{contract}, nil)
		notifier.On("Notify", ctx, contract.OwnerID(), notificationOfKind(notify.KindOverdueWarning)).Return(nil)

		sweeper := NewReminderSweeper(contracts, notifier, nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		require.Len(t, report.Outcomes, 1)
		assert.Equal(t, []string{"overdue"}, report.Outcomes[0].Actions)
		notifier.AssertExpectations(t)
	})

	t.Run("delivery failure is reported per item", func(t *testing.T) {
		contracts := new(mockContractRepo)
		notifier := new(mockNotifier)

		contract := persistedContract(now.AddDate(0, 0, 1))
		contracts.On("FindBilled", ctx).Return([]*domain.Contract{contract}, nil)
		notifier.On("Notify", ctx, contract.OwnerID(), mock.AnythingOfType("notify.Notification")).Return(assert.AnError)

		sweeper := NewReminderSweeper(contracts, notifier, nil).WithClock(clock)
		report, err := sweeper.Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
	})
}
