package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// BusNotifier publishes notifications onto the event bus for a downstream
// delivery service to fan out (push, in-app, email rendering).
type BusNotifier struct {
	publisher eventbus.Publisher
	logger    *slog.Logger
}

// NewBusNotifier creates a notifier backed by the event bus.
func NewBusNotifier(publisher eventbus.Publisher, logger *slog.Logger) *BusNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusNotifier{publisher: publisher, logger: logger}
}

type notificationEnvelope struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

type emailEnvelope struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notify publishes a notification envelope.
func (n *BusNotifier) Notify(ctx context.Context, ownerID uuid.UUID, notification Notification) error {
	payload, err := json.Marshal(notificationEnvelope{
		OwnerID:   ownerID,
		Kind:      notification.Kind,
		Title:     notification.Title,
		Message:   notification.Message,
		Priority:  notification.Priority,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, "notify.user."+string(notification.Kind), payload)
}

// SendEmail publishes an email envelope.
func (n *BusNotifier) SendEmail(ctx context.Context, ownerID uuid.UUID, subject, body string) error {
	payload, err := json.Marshal(emailEnvelope{
		OwnerID:   ownerID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.publisher.Publish(ctx, "notify.email", payload)
}

// LogNotifier writes notifications to the log. Used in development and as
// the fallback when no broker is available.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notification.
func (n *LogNotifier) Notify(_ context.Context, ownerID uuid.UUID, notification Notification) error {
	n.logger.Info("notification",
		"owner_id", ownerID,
		"kind", notification.Kind,
		"title", notification.Title,
		"priority", notification.Priority,
	)
	return nil
}

// SendEmail logs the email.
func (n *LogNotifier) SendEmail(_ context.Context, ownerID uuid.UUID, subject, _ string) error {
	n.logger.Info("email",
		"owner_id", ownerID,
		"subject", subject,
	)
	return nil
}
