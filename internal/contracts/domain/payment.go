package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPaymentStatus = errors.New("invalid payment status")
	ErrPaymentNotPending    = errors.New("payment is not pending")
)

// PaymentStatus is the outcome of one charge attempt.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
)

// IsValid checks if the status is valid.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentPending:
		return true
	default:
		return false
	}
}

// Payment is an append-only record of one charge attempt outcome. The only
// permitted mutation is confirming a pending attempt.
type Payment struct {
	sharedDomain.BaseEntity
	contractID      uuid.UUID
	amount          decimal.Decimal
	gatewayChargeID string
	status          PaymentStatus
	occurredAt      time.Time
}

// NewPayment records a charge attempt outcome.
func NewPayment(contractID uuid.UUID, amount decimal.Decimal, gatewayChargeID string, status PaymentStatus, occurredAt time.Time) (*Payment, error) {
	if !status.IsValid() {
		return nil, ErrInvalidPaymentStatus
	}
	if !amount.IsPositive() {
		return nil, ErrNonPositivePayment
	}

	return &Payment{
		BaseEntity:      sharedDomain.NewBaseEntity(),
		contractID:      contractID,
		amount:          amount,
		gatewayChargeID: gatewayChargeID,
		status:          status,
		occurredAt:      occurredAt.UTC(),
	}, nil
}

// Getters
func (p *Payment) ContractID() uuid.UUID     { return p.contractID }
func (p *Payment) Amount() decimal.Decimal   { return p.amount }
func (p *Payment) GatewayChargeID() string   { return p.gatewayChargeID }
func (p *Payment) Status() PaymentStatus     { return p.status }
func (p *Payment) OccurredAt() time.Time     { return p.occurredAt }

// Confirm moves a pending payment to its processor-confirmed outcome.
func (p *Payment) Confirm(status PaymentStatus) error {
	if p.status != PaymentPending {
		return ErrPaymentNotPending
	}
	if status != PaymentSucceeded && status != PaymentFailed {
		return ErrInvalidPaymentStatus
	}
	p.status = status
	p.Touch()
	return nil
}

// RehydratePayment recreates a payment from persisted state.
func RehydratePayment(id, contractID uuid.UUID, amount decimal.Decimal, gatewayChargeID string, status PaymentStatus, occurredAt, createdAt, updatedAt time.Time) *Payment {
	return &Payment{
		BaseEntity:      sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		contractID:      contractID,
		amount:          amount,
		gatewayChargeID: gatewayChargeID,
		status:          status,
		occurredAt:      occurredAt,
	}
}
