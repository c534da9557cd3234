package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnknownEventType = errors.New("unknown webhook event type")
)

// EventType is the closed set of processor events this engine consumes.
// Switches over it are exhaustive: a new event kind must be added here and
// handled everywhere, not silently dropped.
type EventType string

const (
	EventChargeSucceeded       EventType = "charge.succeeded"
	EventChargeFailed          EventType = "charge.failed"
	EventSubscriptionCancelled EventType = "subscription.cancelled"
)

// IsValid checks if the event type is one this engine handles.
func (t EventType) IsValid() bool {
	switch t {
	case EventChargeSucceeded, EventChargeFailed, EventSubscriptionCancelled:
		return true
	default:
		return false
	}
}

// Event is one inbound webhook delivery, already signature-verified.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ObjectID    string    `json:"object_id"`
	AmountCents int64     `json:"amount_cents"`
	Metadata    Metadata  `json:"metadata"`
	Reason      string    `json:"reason,omitempty"`
}

// Metadata links the processor object back to the local ledger.
type Metadata struct {
	ContractID uuid.UUID `json:"contract_id"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 signature the
// processor computes over the raw payload with the shared webhook secret.
func VerifySignature(payload []byte, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	expectedRaw, _ := hex.DecodeString(expected)
	if !hmac.Equal(provided, expectedRaw) {
		return ErrInvalidSignature
	}
	return nil
}

// SignPayload computes the signature the processor would attach. Used by
// tests and the local development sender.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent decodes and validates a verified payload.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if event.ID == "" {
		return nil, errors.New("webhook event missing id")
	}
	if !event.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, event.Type)
	}
	return &event, nil
}
