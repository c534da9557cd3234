package domain

import (
	"errors"
	"math"
	"time"

	sharedDomain "github.com/felixgeelhaar/arrears/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidObligation    = errors.New("total obligation must be positive")
	ErrNegativeAmount       = errors.New("amount cannot be negative")
	ErrInvalidFrequency     = errors.New("invalid compound frequency")
	ErrInvalidCollateral    = errors.New("invalid collateral type")
	ErrInvalidDuration      = errors.New("duration months cannot be negative")
	ErrAlreadyAccepted      = errors.New("contract is already accepted")
	ErrNotAccepted          = errors.New("contract is not accepted")
	ErrContractCancelled    = errors.New("contract is cancelled")
	ErrNoCollateral         = errors.New("contract has no collateral")
	ErrAlreadyInLiquidation = errors.New("contract is already in liquidation")
	ErrNotInLiquidation     = errors.New("contract is not in liquidation")
	ErrPenaltyNotDue        = errors.New("penalty is not due")
	ErrNonPositivePayment   = errors.New("payment amount must be positive")
)

// CompoundFrequency determines how interest compounds on a contract.
type CompoundFrequency string

const (
	CompoundNone      CompoundFrequency = "none"
	CompoundDaily     CompoundFrequency = "daily"
	CompoundWeekly    CompoundFrequency = "weekly"
	CompoundMonthly   CompoundFrequency = "monthly"
	CompoundQuarterly CompoundFrequency = "quarterly"
)

// IsValid checks if the frequency is valid.
func (f CompoundFrequency) IsValid() bool {
	switch f {
	case CompoundNone, CompoundDaily, CompoundWeekly, CompoundMonthly, CompoundQuarterly:
		return true
	default:
		return false
	}
}

// CollateralType is the category of asset pledged against a contract.
type CollateralType string

const (
	CollateralNone      CollateralType = "none"
	CollateralVehicle   CollateralType = "vehicle"
	CollateralProperty  CollateralType = "property"
	CollateralEquipment CollateralType = "equipment"
	CollateralJewelry   CollateralType = "jewelry"
	CollateralOther     CollateralType = "other"
)

// IsValid checks if the collateral type is valid.
func (c CollateralType) IsValid() bool {
	switch c {
	case CollateralNone, CollateralVehicle, CollateralProperty,
		CollateralEquipment, CollateralJewelry, CollateralOther:
		return true
	default:
		return false
	}
}

// Delinquency stage thresholds in days past due.
const (
	FirstWarningDays      = 3
	PenaltyDays           = 5
	FinalWarningDays      = 7
	LiquidationDays       = 7
	RecurringReminderDays = 10
)

// ContractTerms are the immutable terms a contract is created with.
type ContractTerms struct {
	MonthlyPayment    decimal.Decimal // zero means percentage-of-income
	DurationMonths    int             // zero means unbounded
	TotalObligation   decimal.Decimal
	PenaltyPercentage decimal.Decimal
	InterestRate      decimal.Decimal
	CompoundFrequency CompoundFrequency
	CollateralType    CollateralType
}

// Contract is a recurring financial obligation between the platform and a
// user. It is the aggregate the escalation sweeps, the retry manager, the
// webhook reconciler, and the liquidation settlement all mutate; every money
// mutation must go through a versioned conditional update in persistence.
type Contract struct {
	sharedDomain.BaseAggregateRoot
	ownerID           uuid.UUID
	monthlyPayment    decimal.Decimal
	durationMonths    int
	totalObligation   decimal.Decimal
	amountPaid        decimal.Decimal
	nextPaymentDue    *time.Time
	penaltyPercentage decimal.Decimal
	interestRate      decimal.Decimal
	compoundFrequency CompoundFrequency
	collateralType    CollateralType
	accepted          bool
	inLiquidation     bool
	cancelledAt       *time.Time

	gatewayCustomerID      string
	gatewaySubscriptionID  string
	gatewayPaymentMethodID string

	// Per-stage markers. A stage has fired for the current overdue episode
	// when its marker is at or after next_payment_due; advancing the due date
	// starts a fresh episode without touching the markers.
	lastFirstWarningAt  *time.Time
	lastPenaltyAppliedAt *time.Time
	lastFinalWarningAt  *time.Time
	lastReminderAt      *time.Time
}

// NewContract creates an unaccepted contract from its terms.
func NewContract(ownerID uuid.UUID, terms ContractTerms) (*Contract, error) {
	if !terms.TotalObligation.IsPositive() {
		return nil, ErrInvalidObligation
	}
	if terms.MonthlyPayment.IsNegative() || terms.PenaltyPercentage.IsNegative() || terms.InterestRate.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if terms.DurationMonths < 0 {
		return nil, ErrInvalidDuration
	}
	if !terms.CompoundFrequency.IsValid() {
		return nil, ErrInvalidFrequency
	}
	if !terms.CollateralType.IsValid() {
		return nil, ErrInvalidCollateral
	}

	c := &Contract{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		ownerID:           ownerID,
		monthlyPayment:    terms.MonthlyPayment,
		durationMonths:    terms.DurationMonths,
		totalObligation:   terms.TotalObligation,
		amountPaid:        decimal.Zero,
		penaltyPercentage: terms.PenaltyPercentage,
		interestRate:      terms.InterestRate,
		compoundFrequency: terms.CompoundFrequency,
		collateralType:    terms.CollateralType,
	}

	c.AddDomainEvent(NewContractCreated(c))

	return c, nil
}

// Getters
func (c *Contract) OwnerID() uuid.UUID                  { return c.ownerID }
func (c *Contract) MonthlyPayment() decimal.Decimal     { return c.monthlyPayment }
func (c *Contract) DurationMonths() int                 { return c.durationMonths }
func (c *Contract) TotalObligation() decimal.Decimal    { return c.totalObligation }
func (c *Contract) AmountPaid() decimal.Decimal         { return c.amountPaid }
func (c *Contract) NextPaymentDue() *time.Time          { return c.nextPaymentDue }
func (c *Contract) PenaltyPercentage() decimal.Decimal  { return c.penaltyPercentage }
func (c *Contract) InterestRate() decimal.Decimal       { return c.interestRate }
func (c *Contract) CompoundFrequency() CompoundFrequency { return c.compoundFrequency }
func (c *Contract) CollateralType() CollateralType      { return c.collateralType }
func (c *Contract) IsAccepted() bool                    { return c.accepted }
func (c *Contract) InLiquidation() bool                 { return c.inLiquidation }
func (c *Contract) CancelledAt() *time.Time             { return c.cancelledAt }
func (c *Contract) GatewayCustomerID() string           { return c.gatewayCustomerID }
func (c *Contract) GatewaySubscriptionID() string       { return c.gatewaySubscriptionID }
func (c *Contract) GatewayPaymentMethodID() string      { return c.gatewayPaymentMethodID }
func (c *Contract) LastFirstWarningAt() *time.Time      { return c.lastFirstWarningAt }
func (c *Contract) LastPenaltyAppliedAt() *time.Time    { return c.lastPenaltyAppliedAt }
func (c *Contract) LastFinalWarningAt() *time.Time      { return c.lastFinalWarningAt }
func (c *Contract) LastReminderAt() *time.Time          { return c.lastReminderAt }

// RemainingBalance is what the owner still owes.
func (c *Contract) RemainingBalance() decimal.Decimal {
	balance := c.totalObligation.Sub(c.amountPaid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// OutstandingBalance is the remaining balance with interest accrued since
// the missed due date. Contracts that do not compound daily, and contracts
// that are not overdue, owe the flat remaining balance.
func (c *Contract) OutstandingBalance(now time.Time) decimal.Decimal {
	balance := c.RemainingBalance()
	if c.nextPaymentDue == nil || !now.After(*c.nextPaymentDue) {
		return balance
	}
	return AccrueInterest(balance, c.interestRate, c.compoundFrequency, *c.nextPaymentDue, now)
}

// IsCancelled reports whether the contract has reached a terminal state,
// either fully paid or torn down.
func (c *Contract) IsCancelled() bool {
	return c.cancelledAt != nil
}

// IsResolved reports whether the obligation is fully paid.
func (c *Contract) IsResolved() bool {
	return c.amountPaid.GreaterThanOrEqual(c.totalObligation)
}

// Accept records a successful billing setup: gateway references are stored,
// the contract becomes accepted, and the first payment comes due.
func (c *Contract) Accept(customerID, subscriptionID, paymentMethodID string, firstDue time.Time) error {
	if c.accepted {
		return ErrAlreadyAccepted
	}
	if c.IsCancelled() {
		return ErrContractCancelled
	}

	c.accepted = true
	c.gatewayCustomerID = customerID
	c.gatewaySubscriptionID = subscriptionID
	c.gatewayPaymentMethodID = paymentMethodID
	due := firstDue.UTC()
	c.nextPaymentDue = &due
	c.Touch()

	c.AddDomainEvent(NewContractAccepted(c))

	return nil
}

// DaysPastDue returns whole days elapsed since next_payment_due. The second
// return value is false when the contract has no due date (unbilled or
// resolved). A negative count means the due date is still in the future.
func (c *Contract) DaysPastDue(now time.Time) (int, bool) {
	if c.nextPaymentDue == nil {
		return 0, false
	}
	diff := now.Sub(*c.nextPaymentDue)
	days := int(math.Floor(diff.Hours() / 24))
	return days, true
}

func (c *Contract) stageFired(marker *time.Time) bool {
	if marker == nil || c.nextPaymentDue == nil {
		return false
	}
	return !marker.Before(*c.nextPaymentDue)
}

// NeedsFirstWarning reports whether the first overdue warning is due.
func (c *Contract) NeedsFirstWarning(now time.Time) bool {
	days, ok := c.DaysPastDue(now)
	return ok && days >= FirstWarningDays && !c.stageFired(c.lastFirstWarningAt)
}

// MarkFirstWarningSent records that the first warning went out this episode.
func (c *Contract) MarkFirstWarningSent(now time.Time) {
	t := now.UTC()
	c.lastFirstWarningAt = &t
	c.Touch()
}

// PenaltyDue reports whether the late penalty should be applied.
func (c *Contract) PenaltyDue(now time.Time) bool {
	days, ok := c.DaysPastDue(now)
	if !ok || days < PenaltyDays {
		return false
	}
	if c.stageFired(c.lastPenaltyAppliedAt) {
		return false
	}
	// Percentage-of-income contracts have no fixed monthly amount to derive
	// a penalty from.
	return c.monthlyPayment.IsPositive() && c.penaltyPercentage.IsPositive()
}

// ApplyLatePenalty adds monthly_payment × penalty_percentage / 100 to the
// total obligation, at most once per overdue episode.
func (c *Contract) ApplyLatePenalty(now time.Time) (decimal.Decimal, error) {
	if !c.accepted {
		return decimal.Zero, ErrNotAccepted
	}
	if c.IsCancelled() {
		return decimal.Zero, ErrContractCancelled
	}
	if !c.PenaltyDue(now) {
		return decimal.Zero, ErrPenaltyNotDue
	}

	penalty := LatePenalty(c.monthlyPayment, c.penaltyPercentage)
	c.totalObligation = c.totalObligation.Add(penalty)
	t := now.UTC()
	c.lastPenaltyAppliedAt = &t
	c.Touch()

	c.AddDomainEvent(NewPenaltyApplied(c, penalty))

	return penalty, nil
}

// NeedsFinalWarning reports whether the pre-liquidation final warning is due.
func (c *Contract) NeedsFinalWarning(now time.Time) bool {
	days, ok := c.DaysPastDue(now)
	if !ok || days < FinalWarningDays {
		return false
	}
	return c.collateralType != CollateralNone &&
		!c.inLiquidation &&
		!c.stageFired(c.lastFinalWarningAt)
}

// MarkFinalWarningSent records that the final warning went out this episode.
func (c *Contract) MarkFinalWarningSent(now time.Time) {
	t := now.UTC()
	c.lastFinalWarningAt = &t
	c.Touch()
}

// NeedsRecurringReminder reports whether the every-seven-days reminder is
// due: ten or more days past due, on a seven-day boundary, at most once per
// calendar day.
func (c *Contract) NeedsRecurringReminder(now time.Time) bool {
	days, ok := c.DaysPastDue(now)
	if !ok || days < RecurringReminderDays || days%7 != 0 {
		return false
	}
	if c.lastReminderAt != nil && sameDay(*c.lastReminderAt, now) {
		return false
	}
	return true
}

// MarkReminderSent records that a reminder went out.
func (c *Contract) MarkReminderSent(now time.Time) {
	t := now.UTC()
	c.lastReminderAt = &t
	c.Touch()
}

// EligibleForLiquidation reports whether a liquidation listing should be
// opened against this contract's collateral.
func (c *Contract) EligibleForLiquidation(now time.Time) bool {
	if !c.accepted || c.IsCancelled() || c.inLiquidation {
		return false
	}
	if c.collateralType == CollateralNone {
		return false
	}
	days, ok := c.DaysPastDue(now)
	return ok && days >= LiquidationDays
}

// BeginLiquidation flags the contract as under collateral liquidation.
func (c *Contract) BeginLiquidation() error {
	if c.collateralType == CollateralNone {
		return ErrNoCollateral
	}
	if c.inLiquidation {
		return ErrAlreadyInLiquidation
	}

	c.inLiquidation = true
	c.Touch()

	c.AddDomainEvent(NewLiquidationStarted(c))

	return nil
}

// EndLiquidation clears the liquidation flag after a listing settles.
func (c *Contract) EndLiquidation() error {
	if !c.inLiquidation {
		return ErrNotInLiquidation
	}
	c.inLiquidation = false
	c.Touch()
	return nil
}

// RecordPayment applies confirmed money to the contract. amount_paid only
// ever grows. When the obligation is fully covered the contract resolves:
// the due date clears and cancelled_at is set.
func (c *Contract) RecordPayment(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return ErrNonPositivePayment
	}

	c.amountPaid = c.amountPaid.Add(amount)
	c.Touch()

	c.AddDomainEvent(NewPaymentApplied(c, amount))

	if c.IsResolved() {
		c.nextPaymentDue = nil
		t := now.UTC()
		c.cancelledAt = &t
		c.AddDomainEvent(NewContractResolved(c))
	}

	return nil
}

// AdvanceNextPaymentDue moves the due date one billing cycle forward,
// opening a fresh delinquency episode. No-op on resolved contracts.
func (c *Contract) AdvanceNextPaymentDue() {
	if c.nextPaymentDue == nil || c.IsCancelled() {
		return
	}
	next := c.nextPaymentDue.AddDate(0, 1, 0)
	c.nextPaymentDue = &next
	c.Touch()
}

// TearDownSubscription handles an upstream subscription cancellation: the
// gateway reference is cleared and the contract goes terminal.
func (c *Contract) TearDownSubscription(now time.Time) {
	c.gatewaySubscriptionID = ""
	if c.cancelledAt == nil {
		t := now.UTC()
		c.cancelledAt = &t
	}
	c.nextPaymentDue = nil
	c.Touch()

	c.AddDomainEvent(NewContractCancelled(c))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// RehydratedContract carries persisted state back into a Contract.
type RehydratedContract struct {
	ID                     uuid.UUID
	OwnerID                uuid.UUID
	MonthlyPayment         decimal.Decimal
	DurationMonths         int
	TotalObligation        decimal.Decimal
	AmountPaid             decimal.Decimal
	NextPaymentDue         *time.Time
	PenaltyPercentage      decimal.Decimal
	InterestRate           decimal.Decimal
	CompoundFrequency      CompoundFrequency
	CollateralType         CollateralType
	Accepted               bool
	InLiquidation          bool
	CancelledAt            *time.Time
	GatewayCustomerID      string
	GatewaySubscriptionID  string
	GatewayPaymentMethodID string
	LastFirstWarningAt     *time.Time
	LastPenaltyAppliedAt   *time.Time
	LastFinalWarningAt     *time.Time
	LastReminderAt         *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Version                int
}

// RehydrateContract recreates a contract from persisted state.
func RehydrateContract(state RehydratedContract) *Contract {
	return &Contract{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(state.ID, state.CreatedAt, state.UpdatedAt),
			state.Version,
		),
		ownerID:                state.OwnerID,
		monthlyPayment:         state.MonthlyPayment,
		durationMonths:         state.DurationMonths,
		totalObligation:        state.TotalObligation,
		amountPaid:             state.AmountPaid,
		nextPaymentDue:         state.NextPaymentDue,
		penaltyPercentage:      state.PenaltyPercentage,
		interestRate:           state.InterestRate,
		compoundFrequency:      state.CompoundFrequency,
		collateralType:         state.CollateralType,
		accepted:               state.Accepted,
		inLiquidation:          state.InLiquidation,
		cancelledAt:            state.CancelledAt,
		gatewayCustomerID:      state.GatewayCustomerID,
		gatewaySubscriptionID:  state.GatewaySubscriptionID,
		gatewayPaymentMethodID: state.GatewayPaymentMethodID,
		lastFirstWarningAt:     state.LastFirstWarningAt,
		lastPenaltyAppliedAt:   state.LastPenaltyAppliedAt,
		lastFinalWarningAt:     state.LastFinalWarningAt,
		lastReminderAt:         state.LastReminderAt,
	}
}
