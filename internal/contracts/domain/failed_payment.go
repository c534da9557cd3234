package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrRetryNotPending    = errors.New("failed payment is not pending retry")
	ErrRetryNotInProgress = errors.New("failed payment retry is not in progress")
	ErrRetriesExhausted   = errors.New("failed payment retries are exhausted")
)

// MaxRetryAttempts is the retry ceiling: a failed charge is attempted at
// most this many times before the record is abandoned.
const MaxRetryAttempts = 3

// FailedPaymentStatus is the retry lifecycle state of a delinquent charge.
type FailedPaymentStatus string

const (
	RetryPending   FailedPaymentStatus = "pending_retry"
	RetryInFlight  FailedPaymentStatus = "retrying"
	RetryResolved  FailedPaymentStatus = "resolved"
	RetryAbandoned FailedPaymentStatus = "abandoned"
)

// FailedPayment tracks the bounded-retry lifecycle of one delinquent charge.
type FailedPayment struct {
	sharedDomain.BaseAggregateRoot
	contractID        uuid.UUID
	amount            decimal.Decimal
	retryCount        int
	nextRetryDate     time.Time
	status            FailedPaymentStatus
	lastFailureReason string
}

// NewFailedPayment opens a retry record for a failed charge. The first retry
// comes due one day out.
func NewFailedPayment(contractID uuid.UUID, amount decimal.Decimal, now time.Time) (*FailedPayment, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositivePayment
	}

	fp := &FailedPayment{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		contractID:        contractID,
		amount:            amount,
		retryCount:        0,
		nextRetryDate:     now.UTC().Add(24 * time.Hour),
		status:            RetryPending,
	}

	fp.AddDomainEvent(NewChargeFailureRecorded(fp))

	return fp, nil
}

// Getters
func (f *FailedPayment) ContractID() uuid.UUID       { return f.contractID }
func (f *FailedPayment) Amount() decimal.Decimal     { return f.amount }
func (f *FailedPayment) RetryCount() int             { return f.retryCount }
func (f *FailedPayment) NextRetryDate() time.Time    { return f.nextRetryDate }
func (f *FailedPayment) Status() FailedPaymentStatus { return f.status }
func (f *FailedPayment) LastFailureReason() string   { return f.lastFailureReason }

// IsOpen reports whether the record still wants attention from the retry
// manager or the reconciler.
func (f *FailedPayment) IsOpen() bool {
	return f.status == RetryPending || f.status == RetryInFlight
}

// RetriesExhausted reports whether the retry ceiling has been reached.
func (f *FailedPayment) RetriesExhausted() bool {
	return f.retryCount >= MaxRetryAttempts
}

// Abandon terminates the record after the retry ceiling: no charge is ever
// attempted for it again.
func (f *FailedPayment) Abandon() error {
	if f.status != RetryPending {
		return ErrRetryNotPending
	}
	f.status = RetryAbandoned
	f.Touch()

	f.AddDomainEvent(NewFailedPaymentAbandoned(f))

	return nil
}

// BeginRetry consumes one attempt and marks the charge in flight.
func (f *FailedPayment) BeginRetry() error {
	if f.status != RetryPending {
		return ErrRetryNotPending
	}
	if f.RetriesExhausted() {
		return ErrRetriesExhausted
	}
	f.status = RetryInFlight
	f.retryCount++
	f.Touch()
	return nil
}

// MarkResolved closes the record after a successful charge. A webhook-driven
// resolution may arrive while the record is still pending, so both open
// states are accepted.
func (f *FailedPayment) MarkResolved() error {
	if !f.IsOpen() {
		return ErrRetryNotInProgress
	}
	f.status = RetryResolved
	f.Touch()

	f.AddDomainEvent(NewFailedPaymentResolved(f))

	return nil
}

// ScheduleNextRetry returns an in-flight record to pending with linear
// backoff: retry n waits n days.
func (f *FailedPayment) ScheduleNextRetry(reason string, now time.Time) error {
	if f.status != RetryInFlight {
		return ErrRetryNotInProgress
	}
	f.status = RetryPending
	f.lastFailureReason = reason
	f.nextRetryDate = now.UTC().Add(time.Duration(f.retryCount) * 24 * time.Hour)
	f.Touch()
	return nil
}

// RehydratedFailedPayment carries persisted state back into a FailedPayment.
type RehydratedFailedPayment struct {
	ID                uuid.UUID
	ContractID        uuid.UUID
	Amount            decimal.Decimal
	RetryCount        int
	NextRetryDate     time.Time
	Status            FailedPaymentStatus
	LastFailureReason string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Version           int
}

// RehydrateFailedPayment recreates a failed payment from persisted state.
func RehydrateFailedPayment(state RehydratedFailedPayment) *FailedPayment {
	return &FailedPayment{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(state.ID, state.CreatedAt, state.UpdatedAt),
			state.Version,
		),
		contractID:        state.ContractID,
		amount:            state.Amount,
		retryCount:        state.RetryCount,
		nextRetryDate:     state.NextRetryDate,
		status:            state.Status,
		lastFailureReason: state.LastFailureReason,
	}
}
