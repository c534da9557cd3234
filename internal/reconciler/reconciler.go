// Package reconciler applies processor webhook events to the local ledger.
// It is the authoritative path for money movement confirmed out-of-band and
// is built to race safely against the sweep jobs: every event is applied in
// one transaction, deduplicated by event id, and guarded by the aggregates'
// optimistic versions.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	contractsDomain "github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/gateway"
	"github.com/felixgeelhaar/arrears/internal/notify"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
)

// Reconciler applies verified webhook events.
type Reconciler struct {
	contracts  contractsDomain.ContractRepository
	payments   contractsDomain.PaymentRepository
	failures   contractsDomain.FailedPaymentRepository
	ledger     EventLedger
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	notifier   notify.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(
	contracts contractsDomain.ContractRepository,
	payments contractsDomain.PaymentRepository,
	failures contractsDomain.FailedPaymentRepository,
	ledger EventLedger,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	notifier notify.Notifier,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		contracts:  contracts,
		payments:   payments,
		failures:   failures,
		ledger:     ledger,
		outboxRepo: outboxRepo,
		uow:        uow,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the reconciler's clock.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Apply processes one verified event. Replays and events for unknown
// contracts are dropped without error; anything else either fully commits
// or leaves no trace.
func (r *Reconciler) Apply(ctx context.Context, event *gateway.Event) error {
	now := r.now().UTC()

	var ownerNotification *notify.Notification
	var ownerID = event.Metadata.ContractID // placeholder until the contract loads

	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		duplicate, err := r.ledger.MarkProcessed(txCtx, event.ID, string(event.Type), now)
		if err != nil {
			return err
		}
		if duplicate {
			r.logger.Info("webhook event replayed, dropping",
				"event_id", event.ID,
				"event_type", event.Type,
			)
			return nil
		}

		contract, err := r.contracts.FindByID(txCtx, event.Metadata.ContractID)
		if err != nil {
			return err
		}
		if contract == nil {
			r.logger.Warn("webhook event for unknown contract, dropping",
				"event_id", event.ID,
				"contract_id", event.Metadata.ContractID,
			)
			return nil
		}
		ownerID = contract.OwnerID()

		switch event.Type {
		case gateway.EventChargeSucceeded:
			ownerNotification, err = r.applyChargeSucceeded(txCtx, contract, event, now)
		case gateway.EventChargeFailed:
			ownerNotification, err = r.applyChargeFailed(txCtx, contract, event, now)
		case gateway.EventSubscriptionCancelled:
			err = r.applySubscriptionCancelled(txCtx, contract, now)
		default:
			return fmt.Errorf("%w: %q", gateway.ErrUnknownEventType, event.Type)
		}
		return err
	})
	if err != nil {
		return err
	}

	if ownerNotification != nil {
		if err := r.notifier.Notify(ctx, ownerID, *ownerNotification); err != nil {
			r.logger.Warn("webhook notification failed", "event_id", event.ID, "error", err)
		}
	}

	return nil
}

// applyChargeSucceeded credits the charge: the payment lands on the ledger,
// the due date advances one cycle, and any open retry record closes. A
// pending attempt recorded by the retry manager is confirmed here; a charge
// it already settled is only topped up with the due-date advance it
// deliberately left to this path.
func (r *Reconciler) applyChargeSucceeded(ctx context.Context, contract *contractsDomain.Contract, event *gateway.Event, now time.Time) (*notify.Notification, error) {
	amount := contractsDomain.AmountFromCents(event.AmountCents)

	existing, err := r.payments.FindByGatewayChargeID(ctx, event.ObjectID)
	if err != nil {
		return nil, err
	}

	switch {
	case existing == nil:
		payment, err := contractsDomain.NewPayment(contract.ID(), amount, event.ObjectID, contractsDomain.PaymentSucceeded, now)
		if err != nil {
			return nil, err
		}
		if err := r.payments.Add(ctx, payment); err != nil {
			return nil, err
		}
		if err := contract.RecordPayment(amount, now); err != nil {
			return nil, err
		}
	case existing.Status() == contractsDomain.PaymentPending:
		// The retry manager recorded the attempt but left settlement to this
		// path: confirm it and land the credit now.
		if err := existing.Confirm(contractsDomain.PaymentSucceeded); err != nil {
			return nil, err
		}
		if err := r.payments.Update(ctx, existing); err != nil {
			return nil, err
		}
		if err := contract.RecordPayment(existing.Amount(), now); err != nil {
			return nil, err
		}
	default:
		// Already settled on the ledger; only the due-date advance remains.
	}

	contract.AdvanceNextPaymentDue()
	if err := r.contracts.Save(ctx, contract); err != nil {
		return nil, err
	}

	var recovered bool
	open, err := r.failures.FindOpenByContract(ctx, contract.ID())
	if err != nil {
		return nil, err
	}
	if open != nil {
		if err := open.MarkResolved(); err != nil {
			return nil, err
		}
		if err := r.failures.Save(ctx, open); err != nil {
			return nil, err
		}
		recovered = true
	}

	events := contract.DomainEvents()
	if open != nil {
		events = append(events, open.DomainEvents()...)
	}
	if err := r.stageEvents(ctx, contract, events); err != nil {
		return nil, err
	}
	contract.ClearDomainEvents()
	if open != nil {
		open.ClearDomainEvents()
	}

	if recovered {
		return &notify.Notification{
			Kind:     notify.KindChargeRecovered,
			Title:    "Payment recovered",
			Message:  fmt.Sprintf("Your outstanding payment of %s went through.", amount.StringFixed(2)),
			Priority: notify.PriorityNormal,
		}, nil
	}
	return nil, nil
}

// applyChargeFailed settles any pending attempt for the charge, then opens
// a retry record unless the contract already has one open for this billing
// cycle.
func (r *Reconciler) applyChargeFailed(ctx context.Context, contract *contractsDomain.Contract, event *gateway.Event, now time.Time) (*notify.Notification, error) {
	var onLedger bool
	if event.ObjectID != "" {
		existing, err := r.payments.FindByGatewayChargeID(ctx, event.ObjectID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			onLedger = true
			if existing.Status() == contractsDomain.PaymentPending {
				if err := existing.Confirm(contractsDomain.PaymentFailed); err != nil {
					return nil, err
				}
				if err := r.payments.Update(ctx, existing); err != nil {
					return nil, err
				}
			}
		}
	}

	open, err := r.failures.FindOpenByContract(ctx, contract.ID())
	if err != nil {
		return nil, err
	}
	if open != nil {
		r.logger.Info("charge failure with retry already open, dropping",
			"contract_id", contract.ID(),
			"failed_payment_id", open.ID(),
		)
		return nil, nil
	}

	amount := contractsDomain.AmountFromCents(event.AmountCents)
	if amount.IsZero() {
		amount = contract.MonthlyPayment()
	}

	fp, err := contractsDomain.NewFailedPayment(contract.ID(), amount, now)
	if err != nil {
		return nil, err
	}
	if err := r.failures.Save(ctx, fp); err != nil {
		return nil, err
	}

	if event.ObjectID != "" && !onLedger {
		payment, err := contractsDomain.NewPayment(contract.ID(), amount, event.ObjectID, contractsDomain.PaymentFailed, now)
		if err != nil {
			return nil, err
		}
		if err := r.payments.Add(ctx, payment); err != nil {
			return nil, err
		}
	}

	if err := r.stageEvents(ctx, contract, fp.DomainEvents()); err != nil {
		return nil, err
	}
	fp.ClearDomainEvents()

	return &notify.Notification{
		Kind:     notify.KindChargeFailed,
		Title:    "Payment failed",
		Message:  fmt.Sprintf("Your payment of %s could not be collected. We will retry automatically tomorrow.", amount.StringFixed(2)),
		Priority: notify.PriorityHigh,
	}, nil
}

// applySubscriptionCancelled tears the contract down after the processor
// reports the recurring billing gone.
func (r *Reconciler) applySubscriptionCancelled(ctx context.Context, contract *contractsDomain.Contract, now time.Time) error {
	contract.TearDownSubscription(now)
	if err := r.contracts.Save(ctx, contract); err != nil {
		return err
	}
	if err := r.stageEvents(ctx, contract, contract.DomainEvents()); err != nil {
		return err
	}
	contract.ClearDomainEvents()
	return nil
}

func (r *Reconciler) stageEvents(ctx context.Context, contract *contractsDomain.Contract, events []sharedDomain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(contract.OwnerID()))
	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	return r.outboxRepo.SaveBatch(ctx, msgs)
}
