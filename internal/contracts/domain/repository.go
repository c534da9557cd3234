package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContractRepository defines access for contract persistence. Save performs
// a versioned conditional update and returns
// shared/domain.ErrVersionConflict when the stored version moved underneath
// the caller.
type ContractRepository interface {
	Save(ctx context.Context, contract *Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*Contract, error)

	// FindOverdue returns accepted, non-cancelled contracts whose due date
	// is strictly before asOf.
	FindOverdue(ctx context.Context, asOf time.Time) ([]*Contract, error)

	// FindBilled returns accepted, non-cancelled contracts with a due date
	// set, for the due-soon reminder sweep.
	FindBilled(ctx context.Context) ([]*Contract, error)
}

// PaymentRepository defines access for the payment ledger. The ledger is
// append-only except for Update, which settles a pending attempt once the
// processor confirms its outcome.
type PaymentRepository interface {
	Add(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	FindByGatewayChargeID(ctx context.Context, gatewayChargeID string) (*Payment, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]*Payment, error)
}

// FailedPaymentRepository defines access for retry-state persistence.
type FailedPaymentRepository interface {
	Save(ctx context.Context, failedPayment *FailedPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*FailedPayment, error)

	// FindDueForRetry returns pending_retry records whose next_retry_date is
	// at or before asOf.
	FindDueForRetry(ctx context.Context, asOf time.Time) ([]*FailedPayment, error)

	// FindOpenByContract returns the contract's open retry record, if any.
	FindOpenByContract(ctx context.Context, contractID uuid.UUID) (*FailedPayment, error)
}
