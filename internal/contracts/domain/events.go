package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	contractAggregate      = "Contract"
	failedPaymentAggregate = "FailedPayment"
)

// ContractCreated is emitted when a contract is created.
type ContractCreated struct {
	sharedDomain.BaseEvent
	ContractID      uuid.UUID       `json:"contract_id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	TotalObligation decimal.Decimal `json:"total_obligation"`
	MonthlyPayment  decimal.Decimal `json:"monthly_payment"`
	CollateralType  string          `json:"collateral_type"`
}

// NewContractCreated creates a ContractCreated event.
func NewContractCreated(c *Contract) *ContractCreated {
	return &ContractCreated{
		BaseEvent:       sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.created"),
		ContractID:      c.ID(),
		OwnerID:         c.OwnerID(),
		TotalObligation: c.TotalObligation(),
		MonthlyPayment:  c.MonthlyPayment(),
		CollateralType:  string(c.CollateralType()),
	}
}

// ContractAccepted is emitted when billing setup succeeds.
type ContractAccepted struct {
	sharedDomain.BaseEvent
	ContractID     uuid.UUID  `json:"contract_id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	SubscriptionID string     `json:"subscription_id"`
	NextPaymentDue *time.Time `json:"next_payment_due"`
}

// NewContractAccepted creates a ContractAccepted event.
func NewContractAccepted(c *Contract) *ContractAccepted {
	return &ContractAccepted{
		BaseEvent:      sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.accepted"),
		ContractID:     c.ID(),
		OwnerID:        c.OwnerID(),
		SubscriptionID: c.GatewaySubscriptionID(),
		NextPaymentDue: c.NextPaymentDue(),
	}
}

// PenaltyApplied is emitted when a late penalty lands on the obligation.
type PenaltyApplied struct {
	sharedDomain.BaseEvent
	ContractID      uuid.UUID       `json:"contract_id"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Penalty         decimal.Decimal `json:"penalty"`
	TotalObligation decimal.Decimal `json:"total_obligation"`
}

// NewPenaltyApplied creates a PenaltyApplied event.
func NewPenaltyApplied(c *Contract, penalty decimal.Decimal) *PenaltyApplied {
	return &PenaltyApplied{
		BaseEvent:       sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.penalty_applied"),
		ContractID:      c.ID(),
		OwnerID:         c.OwnerID(),
		Penalty:         penalty,
		TotalObligation: c.TotalObligation(),
	}
}

// PaymentApplied is emitted when confirmed money lands on the contract.
type PaymentApplied struct {
	sharedDomain.BaseEvent
	ContractID uuid.UUID       `json:"contract_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// NewPaymentApplied creates a PaymentApplied event.
func NewPaymentApplied(c *Contract, amount decimal.Decimal) *PaymentApplied {
	return &PaymentApplied{
		BaseEvent:  sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.payment_applied"),
		ContractID: c.ID(),
		OwnerID:    c.OwnerID(),
		Amount:     amount,
		AmountPaid: c.AmountPaid(),
	}
}

// ContractResolved is emitted when the obligation is fully paid.
type ContractResolved struct {
	sharedDomain.BaseEvent
	ContractID uuid.UUID       `json:"contract_id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

// NewContractResolved creates a ContractResolved event.
func NewContractResolved(c *Contract) *ContractResolved {
	return &ContractResolved{
		BaseEvent:  sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.resolved"),
		ContractID: c.ID(),
		OwnerID:    c.OwnerID(),
		AmountPaid: c.AmountPaid(),
	}
}

// ContractCancelled is emitted when the upstream subscription is torn down.
type ContractCancelled struct {
	sharedDomain.BaseEvent
	ContractID uuid.UUID `json:"contract_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
}

// NewContractCancelled creates a ContractCancelled event.
func NewContractCancelled(c *Contract) *ContractCancelled {
	return &ContractCancelled{
		BaseEvent:  sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.cancelled"),
		ContractID: c.ID(),
		OwnerID:    c.OwnerID(),
	}
}

// LiquidationStarted is emitted when a contract is flagged for collateral
// liquidation.
type LiquidationStarted struct {
	sharedDomain.BaseEvent
	ContractID     uuid.UUID `json:"contract_id"`
	OwnerID        uuid.UUID `json:"owner_id"`
	CollateralType string    `json:"collateral_type"`
}

// NewLiquidationStarted creates a LiquidationStarted event.
func NewLiquidationStarted(c *Contract) *LiquidationStarted {
	return &LiquidationStarted{
		BaseEvent:      sharedDomain.NewBaseEvent(c.ID(), contractAggregate, "contracts.contract.liquidation_started"),
		ContractID:     c.ID(),
		OwnerID:        c.OwnerID(),
		CollateralType: string(c.CollateralType()),
	}
}

// ChargeFailureRecorded is emitted when a failed charge opens a retry record.
type ChargeFailureRecorded struct {
	sharedDomain.BaseEvent
	FailedPaymentID uuid.UUID       `json:"failed_payment_id"`
	ContractID      uuid.UUID       `json:"contract_id"`
	Amount          decimal.Decimal `json:"amount"`
	NextRetryDate   time.Time       `json:"next_retry_date"`
}

// NewChargeFailureRecorded creates a ChargeFailureRecorded event.
func NewChargeFailureRecorded(f *FailedPayment) *ChargeFailureRecorded {
	return &ChargeFailureRecorded{
		BaseEvent:       sharedDomain.NewBaseEvent(f.ID(), failedPaymentAggregate, "contracts.failed_payment.recorded"),
		FailedPaymentID: f.ID(),
		ContractID:      f.ContractID(),
		Amount:          f.Amount(),
		NextRetryDate:   f.NextRetryDate(),
	}
}

// FailedPaymentResolved is emitted when a retry record closes successfully.
type FailedPaymentResolved struct {
	sharedDomain.BaseEvent
	FailedPaymentID uuid.UUID       `json:"failed_payment_id"`
	ContractID      uuid.UUID       `json:"contract_id"`
	Amount          decimal.Decimal `json:"amount"`
	RetryCount      int             `json:"retry_count"`
}

// NewFailedPaymentResolved creates a FailedPaymentResolved event.
func NewFailedPaymentResolved(f *FailedPayment) *FailedPaymentResolved {
	return &FailedPaymentResolved{
		BaseEvent:       sharedDomain.NewBaseEvent(f.ID(), failedPaymentAggregate, "contracts.failed_payment.resolved"),
		FailedPaymentID: f.ID(),
		ContractID:      f.ContractID(),
		Amount:          f.Amount(),
		RetryCount:      f.RetryCount(),
	}
}

// FailedPaymentAbandoned is emitted when the retry ceiling is reached.
type FailedPaymentAbandoned struct {
	sharedDomain.BaseEvent
	FailedPaymentID uuid.UUID       `json:"failed_payment_id"`
	ContractID      uuid.UUID       `json:"contract_id"`
	Amount          decimal.Decimal `json:"amount"`
	RetryCount      int             `json:"retry_count"`
}

// NewFailedPaymentAbandoned creates a FailedPaymentAbandoned event.
func NewFailedPaymentAbandoned(f *FailedPayment) *FailedPaymentAbandoned {
	return &FailedPaymentAbandoned{
		BaseEvent:       sharedDomain.NewBaseEvent(f.ID(), failedPaymentAggregate, "contracts.failed_payment.abandoned"),
		FailedPaymentID: f.ID(),
		ContractID:      f.ContractID(),
		Amount:          f.Amount(),
		RetryCount:      f.RetryCount(),
	}
}
