package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
)

// Envelope is the frame written to clients for every outbound event
type Envelope struct {
	ID        string          `json:"id"`        // Event UUID
	Type      events.Type     `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// MessageType is the type of a client frame
type MessageType string

const (
	MessageJoin  MessageType = "join"
	MessageDraw  MessageType = "draw"
	MessageClear MessageType = "clear"
	MessageRate  MessageType = "rate"
	MessageLeave MessageType = "leave"
)

// ClientMessage is a frame read from a client
type ClientMessage struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// RatePayload is the data of a rate frame
type RatePayload struct {
	TargetName string  `json:"targetName"`
	Value      float64 `json:"value"`
}

func newEnvelope(evt events.Event, now time.Time) ([]byte, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", evt.Type, err)
	}
	return json.Marshal(Envelope{
		ID:        uuid.New().String(),
		Type:      evt.Type,
		Timestamp: now.UTC(),
		Data:      data,
	})
}
