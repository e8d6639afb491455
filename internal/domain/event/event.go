package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event raised after the backend confirmed a change
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	VoucherID     int64                  `json:"voucher_id"`
	PublicCode    string                 `json:"public_code"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID and timestamp
func NewEvent(eventType Type, voucherID int64, publicCode, actorID string, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		VoucherID:     voucherID,
		PublicCode:    publicCode,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// WithCorrelation links the event to the request that caused it
func (e *Event) WithCorrelation(correlationID string) *Event {
	if correlationID == "" {
		return e
	}
	copied := *e
	copied.CorrelationID = correlationID
	return &copied
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	copied := *e
	copied.Payload = payload
	return &copied
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
