// Package notify is the outbound notification surface for sweeps and the
// reconciler. Delivery is fire-and-forget: a failed notification is logged
// and never aborts the calling sweep.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Priority ranks a notification for the delivery channel.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Kind is the closed set of notification types this engine emits.
type Kind string

const (
	KindPaymentReminder   Kind = "payment_reminder"
	KindOverdueWarning    Kind = "overdue_warning"
	KindPenaltyApplied    Kind = "penalty_applied"
	KindFinalWarning      Kind = "final_warning"
	KindChargeFailed      Kind = "charge_failed"
	KindChargeRecovered   Kind = "charge_recovered"
	KindFinalNotice       Kind = "final_notice"
	KindLiquidationOpened Kind = "liquidation_opened"
	KindLiquidationClosed Kind = "liquidation_closed"
)

// Notification is one user-facing message.
type Notification struct {
	Kind     Kind
	Title    string
	Message  string
	Priority Priority
}

// Notifier delivers notifications and emails to contract owners.
type Notifier interface {
	Notify(ctx context.Context, ownerID uuid.UUID, n Notification) error
	SendEmail(ctx context.Context, ownerID uuid.UUID, subject, body string) error
}
