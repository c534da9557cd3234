package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/notify"
	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
)

// Reminder lead times in days before the due date.
var reminderLeadDays = []int{7, 3, 1, 0}

// ReminderSweeper sends due-soon reminders at fixed lead times and flags
// already-overdue contracts. It mutates no ledger state; deduplication of
// reminders across repeated same-day sweeps is the trigger's concern.
type ReminderSweeper struct {
	contracts domain.ContractRepository
	notifier  notify.Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewReminderSweeper creates a reminder sweeper.
func NewReminderSweeper(contracts domain.ContractRepository, notifier notify.Notifier, logger *slog.Logger) *ReminderSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderSweeper{
		contracts: contracts,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the sweeper's clock.
func (s *ReminderSweeper) WithClock(now func() time.Time) *ReminderSweeper {
	s.now = now
	return s
}

// Sweep scans billed contracts and sends at most one reminder per contract.
func (s *ReminderSweeper) Sweep(ctx context.Context) (*sweep.Report, error) {
	now := s.now().UTC()
	report := sweep.NewReport("reminders", now)

	contracts, err := s.contracts.FindBilled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to select billed contracts: %w", err)
	}

	for _, contract := range contracts {
		report.Add(s.process(ctx, contract, now))
	}

	report.FinishedAt = s.now().UTC()
	s.logger.Info("reminder sweep finished",
		"scanned", report.Scanned,
		"acted", report.Acted,
	)

	return report, nil
}

func (s *ReminderSweeper) process(ctx context.Context, contract *domain.Contract, now time.Time) sweep.ItemOutcome {
	outcome := sweep.ItemOutcome{ID: contract.ID(), Status: sweep.OutcomeSkipped}

	days, ok := contract.DaysPastDue(now)
	if !ok {
		return outcome
	}

	var notification *notify.Notification
	switch {
	case days >= 1:
		notification = &notify.Notification{
			Kind:     notify.KindOverdueWarning,
			Title:    "Payment overdue",
			Message:  fmt.Sprintf("Your payment of %s is %d days overdue. Outstanding balance including interest: %s.", contract.MonthlyPayment().StringFixed(2), days, contract.OutstandingBalance(now).StringFixed(2)),
			Priority: notify.PriorityHigh,
		}
		outcome.Actions = append(outcome.Actions, "overdue")
	default:
		daysUntil := -days
		for _, lead := range reminderLeadDays {
			if daysUntil == lead {
				notification = &notify.Notification{
					Kind:     notify.KindPaymentReminder,
					Title:    reminderTitle(lead),
					Message:  fmt.Sprintf("Your payment of %s is due %s.", contract.MonthlyPayment().StringFixed(2), reminderWhen(lead)),
					Priority: notify.PriorityNormal,
				}
				outcome.Actions = append(outcome.Actions, fmt.Sprintf("due_in_%d_days", lead))
				break
			}
		}
	}

	if notification == nil {
		return outcome
	}

	if err := s.notifier.Notify(ctx, contract.OwnerID(), *notification); err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Status = sweep.OutcomeActed
	return outcome
}

func reminderTitle(lead int) string {
	if lead == 0 {
		return "Payment due today"
	}
	return "Payment due soon"
}

func reminderWhen(lead int) string {
	switch lead {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", lead)
	}
}
