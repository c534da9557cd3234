package gateway

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1","type":"charge.succeeded"}`)

	t.Run("round trips with SignPayload", func(t *testing.T) {
		sig := SignPayload(payload, secret)
		assert.NoError(t, VerifySignature(payload, sig, secret))
	})

	t.Run("rejects a tampered payload", func(t *testing.T) {
		sig := SignPayload(payload, secret)
		tampered := []byte(`{"id":"evt_1","type":"charge.succeeded","amount_cents":1}`)
		assert.ErrorIs(t, VerifySignature(tampered, sig, secret), ErrInvalidSignature)
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		sig := SignPayload(payload, "whsec_other")
		assert.ErrorIs(t, VerifySignature(payload, sig, secret), ErrInvalidSignature)
	})

	t.Run("rejects a malformed signature", func(t *testing.T) {
		assert.ErrorIs(t, VerifySignature(payload, "not-hex", secret), ErrInvalidSignature)
	})
}

func TestParseEvent(t *testing.T) {
	contractID := uuid.New()

	t.Run("decodes a valid event", func(t *testing.T) {
		payload, err := json.Marshal(map[string]interface{}{
			"id":           "evt_1",
			"type":         "charge.failed",
			"object_id":    "ch_1",
			"amount_cents": 10000,
			"metadata":     map[string]string{"contract_id": contractID.String()},
			"reason":       "card_declined",
		})
		require.NoError(t, err)

		event, err := ParseEvent(payload)

		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, EventChargeFailed, event.Type)
		assert.Equal(t, "ch_1", event.ObjectID)
		assert.Equal(t, int64(10000), event.AmountCents)
		assert.Equal(t, contractID, event.Metadata.ContractID)
		assert.Equal(t, "card_declined", event.Reason)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{`))
		assert.Error(t, err)
	})

	t.Run("rejects a missing id", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"type":"charge.succeeded"}`))
		assert.Error(t, err)
	})

	t.Run("rejects an unknown event type", func(t *testing.T) {
		_, err := ParseEvent([]byte(`{"id":"evt_1","type":"invoice.created"}`))
		assert.ErrorIs(t, err, ErrUnknownEventType)
	})
}
