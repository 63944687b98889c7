package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	IdentityID string `json:"identity_id"`
	Email      string `json:"email"`
}

func TestNewEvent(t *testing.T) {
	payload := testPayload{IdentityID: "id-1", Email: "owner@example.com"}

	event, err := NewEvent("housing.identity.registered", "id-1", "identity", "identity-service", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "housing.identity.registered", event.EventType)
	assert.Equal(t, "id-1", event.AggregateID)
	assert.Equal(t, "identity", event.AggregateType)
	assert.Equal(t, "identity-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.False(t, event.Timestamp.IsZero())
	assert.Empty(t, event.CorrelationID)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("housing.identity.registered", "id-1", "identity", "identity-service", make(chan int))
	assert.Error(t, err)
}

func TestEvent_Builders(t *testing.T) {
	event, err := NewEvent("housing.auth.locked_out", "id-1", "identity", "identity-service", testPayload{})
	require.NoError(t, err)

	event.WithCorrelationID("corr-123").WithMetadata("auth_domain", "tenant")

	assert.Equal(t, "corr-123", event.CorrelationID)
	assert.Equal(t, "tenant", event.Metadata["auth_domain"])
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	original, err := NewEvent("housing.identity.registered", "id-1", "identity", "identity-service",
		testPayload{IdentityID: "id-1", Email: "owner@example.com"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-456")

	raw, err := original.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, decoded.EventID)
	assert.Equal(t, original.EventType, decoded.EventType)
	assert.Equal(t, "corr-456", decoded.CorrelationID)

	var payload testPayload
	require.NoError(t, decoded.UnmarshalData(&payload))
	assert.Equal(t, "id-1", payload.IdentityID)
	assert.Equal(t, "owner@example.com", payload.Email)
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}
