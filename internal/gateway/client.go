// Package gateway is the boundary to the external card/ACH payment
// processor. The engine only depends on the Client interface; the HTTP
// implementation and webhook verification live alongside it.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrMissingPaymentMethod marks a charge that cannot even be attempted
	// because the owner has no payment method on file. It never consumes a
	// retry attempt.
	ErrMissingPaymentMethod = errors.New("no payment method on file")
)

// ChargeStatus is the processor-reported outcome of a charge.
type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargeFailed    ChargeStatus = "failed"
	ChargePending   ChargeStatus = "pending"
)

// ChargeResult is the outcome of one charge request.
type ChargeResult struct {
	ID            string
	Status        ChargeStatus
	FailureReason string
}

// Succeeded reports whether the processor confirmed the charge.
func (r *ChargeResult) Succeeded() bool {
	return r.Status == ChargeSucceeded
}

// BillingInterval is the recurrence of a subscription.
type BillingInterval string

const (
	IntervalMonthly BillingInterval = "month"
)

// Client issues charges and subscriptions against the payment processor.
// Amounts cross this boundary in cents.
type Client interface {
	// Charge attempts a one-off charge against a customer's payment method.
	// A declined charge is NOT an error: it comes back as a ChargeResult
	// with status failed. Errors are transport-level failures only.
	Charge(ctx context.Context, amountCents int64, customerRef, paymentMethodRef string) (*ChargeResult, error)

	// CreateSubscription opens a recurring charge.
	CreateSubscription(ctx context.Context, customerRef string, amountCents int64, interval BillingInterval) (string, error)

	// CancelSubscription tears down a recurring charge.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
