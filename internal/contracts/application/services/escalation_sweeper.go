package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/notify"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
)

// EscalationSweeper advances overdue contracts through the staged
// delinquency policy. Each invocation is one externally-triggered sweep;
// it is safe to re-run because every stage re-derives its state from the
// contract's per-stage markers instead of counting sweeps.
type EscalationSweeper struct {
	contracts  domain.ContractRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewEscalationSweeper creates an escalation sweeper.
func NewEscalationSweeper(
	contracts domain.ContractRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	notifier notify.Notifier,
	logger *slog.Logger,
) *EscalationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &EscalationSweeper{
		contracts:  contracts,
		outboxRepo: outboxRepo,
		uow:        uow,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the sweeper's clock.
func (s *EscalationSweeper) WithClock(now func() time.Time) *EscalationSweeper {
	s.now = now
	return s
}

// Sweep scans every overdue contract and applies due escalation stages.
// Per-contract failures are isolated into the report.
func (s *EscalationSweeper) Sweep(ctx context.Context) (*sweep.Report, error) {
	now := s.now().UTC()
	report := sweep.NewReport("overdue", now)

	contracts, err := s.contracts.FindOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select overdue contracts: %w", err)
	}

	for _, contract := range contracts {
		outcome := s.process(ctx, contract, now)
		report.Add(outcome)
		if outcome.Status == sweep.OutcomeFailed {
			s.logger.Warn("escalation failed for contract",
				"contract_id", contract.ID(),
				"error", outcome.Error,
			)
		}
	}

	report.FinishedAt = s.now().UTC()
	s.logger.Info("escalation sweep finished",
		"scanned", report.Scanned,
		"acted", report.Acted,
		"failed", report.Failed,
	)

	return report, nil
}

func (s *EscalationSweeper) process(ctx context.Context, contract *domain.Contract, now time.Time) sweep.ItemOutcome {
	outcome := sweep.ItemOutcome{ID: contract.ID(), Status: sweep.OutcomeSkipped}
	days, ok := contract.DaysPastDue(now)
	if !ok || days < domain.FirstWarningDays {
		return outcome
	}

	if contract.NeedsFirstWarning(now) {
		if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
			Kind:     notify.KindOverdueWarning,
			Title:    "Payment overdue",
			Message:  fmt.Sprintf("Your payment is %d days overdue. Please pay as soon as possible to avoid penalties.", days),
			Priority: notify.PriorityHigh,
		}); err != nil {
			// Not marked as sent; the next sweep retries the warning.
			s.logger.Warn("first warning notification failed", "contract_id", contract.ID(), "error", err)
		} else {
			contract.MarkFirstWarningSent(now)
			outcome.Actions = append(outcome.Actions, "first_warning")
		}
	}

	if contract.PenaltyDue(now) {
		penalty, err := contract.ApplyLatePenalty(now)
		if err != nil {
			outcome.Status = sweep.OutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Actions = append(outcome.Actions, "penalty_applied")

		if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
			Kind:     notify.KindPenaltyApplied,
			Title:    "Late penalty applied",
			Message:  fmt.Sprintf("A late penalty of %s has been added to your obligation. New total: %s.", penalty.StringFixed(2), contract.TotalObligation().StringFixed(2)),
			Priority: notify.PriorityUrgent,
		}); err != nil {
			s.logger.Warn("penalty notification failed", "contract_id", contract.ID(), "error", err)
		}
	}

	if contract.NeedsFinalWarning(now) {
		if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
			Kind:     notify.KindFinalWarning,
			Title:    "Final warning before liquidation",
			Message:  "Your contract is seriously delinquent. Your pledged collateral will be liquidated unless the balance is settled.",
			Priority: notify.PriorityUrgent,
		}); err != nil {
			s.logger.Warn("final warning notification failed", "contract_id", contract.ID(), "error", err)
		} else {
			contract.MarkFinalWarningSent(now)
			outcome.Actions = append(outcome.Actions, "final_warning")
		}
	}

	if contract.NeedsRecurringReminder(now) {
		if err := s.notifier.Notify(ctx, contract.OwnerID(), notify.Notification{
			Kind:     notify.KindOverdueWarning,
			Title:    "Payment still overdue",
			Message:  fmt.Sprintf("Your payment is %d days overdue. Outstanding balance including interest: %s.", days, contract.OutstandingBalance(now).StringFixed(2)),
			Priority: notify.PriorityHigh,
		}); err != nil {
			s.logger.Warn("recurring reminder failed", "contract_id", contract.ID(), "error", err)
		} else {
			contract.MarkReminderSent(now)
			outcome.Actions = append(outcome.Actions, "recurring_reminder")
		}
	}

	if len(outcome.Actions) == 0 {
		return outcome
	}

	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		events := contract.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(contract.OwnerID()))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return s.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	contract.ClearDomainEvents()

	outcome.Status = sweep.OutcomeActed
	return outcome
}
