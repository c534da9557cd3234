package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/gateway"
	"github.com/felixgeelhaar/arrears/internal/notify"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
)

// RetryManager owns the bounded-retry lifecycle for failed charges: at most
// domain.MaxRetryAttempts attempts with linear backoff, then abandonment
// with a final notice.
type RetryManager struct {
	failures   domain.FailedPaymentRepository
	contracts  domain.ContractRepository
	payments   domain.PaymentRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	gateway    gateway.Client
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewRetryManager creates a retry manager.
func NewRetryManager(
	failures domain.FailedPaymentRepository,
	contracts domain.ContractRepository,
	payments domain.PaymentRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	gatewayClient gateway.Client,
	notifier notify.Notifier,
	logger *slog.Logger,
) *RetryManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryManager{
		failures:   failures,
		contracts:  contracts,
		payments:   payments,
		outboxRepo: outboxRepo,
		uow:        uow,
		gateway:    gatewayClient,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the manager's clock.
func (m *RetryManager) WithClock(now func() time.Time) *RetryManager {
	m.now = now
	return m
}

// Sweep re-attempts every due failed payment. Per-item failures are
// isolated into the report.
func (m *RetryManager) Sweep(ctx context.Context) (*sweep.Report, error) {
	now := m.now().UTC()
	report := sweep.NewReport("retry", now)

	due, err := m.failures.FindDueForRetry(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select due retries: %w", err)
	}

	for _, fp := range due {
		report.Add(m.process(ctx, fp, now))
	}

	report.FinishedAt = m.now().UTC()
	m.logger.Info("retry sweep finished",
		"scanned", report.Scanned,
		"acted", report.Acted,
		"failed", report.Failed,
	)

	return report, nil
}

func (m *RetryManager) process(ctx context.Context, fp *domain.FailedPayment, now time.Time) sweep.ItemOutcome {
	outcome := sweep.ItemOutcome{ID: fp.ID(), Status: sweep.OutcomeSkipped}

	contract, err := m.contracts.FindByID(ctx, fp.ContractID())
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if contract == nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = "contract not found"
		return outcome
	}

	if fp.RetriesExhausted() {
		return m.abandon(ctx, fp, contract, outcome)
	}

	// A missing payment method is a skipped outcome for this sweep: the
	// attempt is not consumed and the schedule is unchanged.
	if contract.GatewayPaymentMethodID() == "" {
		outcome.Error = gateway.ErrMissingPaymentMethod.Error()
		return outcome
	}

	if err := m.persistFailedPayment(ctx, fp, func() error { return fp.BeginRetry() }); err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}

	result, chargeErr := m.gateway.Charge(ctx,
		domain.AmountToCents(fp.Amount()),
		contract.GatewayCustomerID(),
		contract.GatewayPaymentMethodID(),
	)

	switch {
	case chargeErr != nil:
		// Transport errors consume the attempt, including a payment method
		// vanishing between the pre-check and the charge: the next retry
		// re-runs the pre-check against fresh state.
		reason := chargeErr.Error()
		if err := m.persistFailedPayment(ctx, fp, func() error { return fp.ScheduleNextRetry(reason, now) }); err != nil {
			outcome.Status = sweep.OutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = sweep.OutcomeActed
		outcome.Actions = append(outcome.Actions, "charge_errored")
		return outcome

	case result.Succeeded():
		return m.resolve(ctx, fp, contract, result, now, outcome)

	case result.Status == gateway.ChargePending:
		// The processor accepted the charge but has not settled it yet. A
		// pending payment record awaits the webhook's verdict; if it never
		// arrives, the rescheduled retry charges again.
		err := sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
			if err := fp.ScheduleNextRetry("awaiting processor confirmation", now); err != nil {
				return err
			}
			if err := m.failures.Save(txCtx, fp); err != nil {
				return err
			}
			if result.ID != "" {
				payment, err := domain.NewPayment(contract.ID(), fp.Amount(), result.ID, domain.PaymentPending, now)
				if err != nil {
					return err
				}
				return m.payments.Add(txCtx, payment)
			}
			return nil
		})
		if err != nil {
			outcome.Status = sweep.OutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = sweep.OutcomeActed
		outcome.Actions = append(outcome.Actions, "charge_pending")
		return outcome

	default:
		reason := result.FailureReason
		if reason == "" {
			reason = "charge declined"
		}
		err := sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
			if err := fp.ScheduleNextRetry(reason, now); err != nil {
				return err
			}
			if err := m.failures.Save(txCtx, fp); err != nil {
				return err
			}
			if result.ID != "" {
				payment, err := domain.NewPayment(contract.ID(), fp.Amount(), result.ID, domain.PaymentFailed, now)
				if err != nil {
					return err
				}
				return m.payments.Add(txCtx, payment)
			}
			return nil
		})
		if err != nil {
			outcome.Status = sweep.OutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = sweep.OutcomeActed
		outcome.Actions = append(outcome.Actions, "charge_declined")
		return outcome
	}
}

func (m *RetryManager) abandon(ctx context.Context, fp *domain.FailedPayment, contract *domain.Contract, outcome sweep.ItemOutcome) sweep.ItemOutcome {
	if err := m.persistFailedPayment(ctx, fp, fp.Abandon); err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}

	if err := m.notifier.SendEmail(ctx, contract.OwnerID(),
		"Final notice: payment could not be collected",
		fmt.Sprintf("We attempted to collect %s multiple times without success. No further automatic attempts will be made. Please contact support to settle your balance.", fp.Amount().StringFixed(2)),
	); err != nil {
		m.logger.Warn("final notice email failed", "failed_payment_id", fp.ID(), "error", err)
	}

	outcome.Status = sweep.OutcomeActed
	outcome.Actions = append(outcome.Actions, "abandoned")
	return outcome
}

func (m *RetryManager) resolve(ctx context.Context, fp *domain.FailedPayment, contract *domain.Contract, result *gateway.ChargeResult, now time.Time, outcome sweep.ItemOutcome) sweep.ItemOutcome {
	err := sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if err := fp.MarkResolved(); err != nil {
			return err
		}
		if err := m.failures.Save(txCtx, fp); err != nil {
			return err
		}

		if err := contract.RecordPayment(fp.Amount(), now); err != nil {
			return err
		}
		if err := m.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		payment, err := domain.NewPayment(contract.ID(), fp.Amount(), result.ID, domain.PaymentSucceeded, now)
		if err != nil {
			return err
		}
		if err := m.payments.Add(txCtx, payment); err != nil {
			return err
		}

		events := append(fp.DomainEvents(), contract.DomainEvents()...)
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(contract.OwnerID()))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return m.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		outcome.Status = sweep.OutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	fp.ClearDomainEvents()
	contract.ClearDomainEvents()

	if err := m.notifier.SendEmail(ctx, contract.OwnerID(),
		"Payment collected",
		fmt.Sprintf("Your outstanding payment of %s has been collected successfully.", fp.Amount().StringFixed(2)),
	); err != nil {
		m.logger.Warn("success email failed", "failed_payment_id", fp.ID(), "error", err)
	}

	outcome.Status = sweep.OutcomeActed
	outcome.Actions = append(outcome.Actions, "resolved")
	return outcome
}

func (m *RetryManager) persistFailedPayment(ctx context.Context, fp *domain.FailedPayment, mutate func() error) error {
	return sharedApplication.WithUnitOfWork(ctx, m.uow, func(txCtx context.Context) error {
		if err := mutate(); err != nil {
			return err
		}
		if err := m.failures.Save(txCtx, fp); err != nil {
			return err
		}
		events := fp.DomainEvents()
		if len(events) == 0 {
			return nil
		}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(fp.ContractID()))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		if err := m.outboxRepo.SaveBatch(txCtx, msgs); err != nil {
			return err
		}
		fp.ClearDomainEvents()
		return nil
	})
}
