package commands

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/arrears/internal/contracts/domain"
	"github.com/felixgeelhaar/arrears/internal/gateway"
	sharedApplication "github.com/felixgeelhaar/arrears/internal/shared/application"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// ErrContractNotFound is returned when the referenced contract does not exist.
var ErrContractNotFound = errors.New("contract not found")

// AcceptContractCommand activates a contract: recurring billing is set up at
// the gateway and the first payment comes due one month out.
type AcceptContractCommand struct {
	ContractID        uuid.UUID
	GatewayCustomerID string
	PaymentMethodID   string
}

// AcceptContractHandler handles the AcceptContractCommand.
type AcceptContractHandler struct {
	contracts  domain.ContractRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	gateway    gateway.Client
	now        func() time.Time
}

// NewAcceptContractHandler creates a new AcceptContractHandler.
func NewAcceptContractHandler(
	contracts domain.ContractRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	gatewayClient gateway.Client,
) *AcceptContractHandler {
	return &AcceptContractHandler{
		contracts:  contracts,
		outboxRepo: outboxRepo,
		uow:        uow,
		gateway:    gatewayClient,
		now:        time.Now,
	}
}

// WithClock overrides the handler's clock.
func (h *AcceptContractHandler) WithClock(now func() time.Time) *AcceptContractHandler {
	h.now = now
	return h
}

// Handle executes the AcceptContractCommand. The gateway subscription is
// created before the transaction opens; if the later save fails the
// subscription is cancelled again on a best-effort basis.
func (h *AcceptContractHandler) Handle(ctx context.Context, cmd AcceptContractCommand) error {
	contract, err := h.contracts.FindByID(ctx, cmd.ContractID)
	if err != nil {
		return err
	}
	if contract == nil {
		return ErrContractNotFound
	}
	if contract.IsAccepted() {
		return domain.ErrAlreadyAccepted
	}

	var subscriptionID string
	if contract.MonthlyPayment().IsPositive() {
		subscriptionID, err = h.gateway.CreateSubscription(ctx,
			cmd.GatewayCustomerID,
			domain.AmountToCents(contract.MonthlyPayment()),
			gateway.IntervalMonthly,
		)
		if err != nil {
			return err
		}
	}

	firstDue := h.now().UTC().AddDate(0, 1, 0)

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := contract.Accept(cmd.GatewayCustomerID, subscriptionID, cmd.PaymentMethodID, firstDue); err != nil {
			return err
		}
		if err := h.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		events := contract.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(contract.OwnerID()))
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return err
		}
		return h.outboxRepo.SaveBatch(txCtx, msgs)
	})
	if err != nil {
		if subscriptionID != "" {
			_ = h.gateway.CancelSubscription(context.WithoutCancel(ctx), subscriptionID)
		}
		return err
	}
	contract.ClearDomainEvents()

	return nil
}
