package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox/worker"
)

// RoundEvent is what websocket clients receive for every auction event of
// the round they watch.
type RoundEvent struct {
	ID        string          `json:"id"`
	RoundID   string          `json:"round_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FromEnvelope validates a stream envelope and converts it for clients
func FromEnvelope(env worker.Envelope) (*RoundEvent, uuid.UUID, error) {
	if !events.IsKnown(env.EventType) {
		return nil, uuid.Nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}
	roundID, err := uuid.Parse(env.RoundID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("parse round ID: %w", err)
	}
	if len(env.Payload) == 0 || !json.Valid(env.Payload) {
		return nil, uuid.Nil, fmt.Errorf("event %s has an invalid payload", env.EventID)
	}

	return &RoundEvent{
		ID:        env.EventID,
		RoundID:   roundID.String(),
		Type:      env.EventType,
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, roundID, nil
}

// ParseEventPayload decodes the event data into its payload struct
func ParseEventPayload(event *RoundEvent) (interface{}, error) {
	var payload interface{}
	switch event.Type {
	case events.EventTypeRoundOpened:
		payload = &events.RoundOpenedPayload{}
	case events.EventTypeRoundFinalizing:
		payload = &events.RoundFinalizingPayload{}
	case events.EventTypePlayerAllocated:
		payload = &events.PlayerAllocatedPayload{}
	case events.EventTypePlayerUnsold:
		payload = &events.PlayerUnsoldPayload{}
	case events.EventTypeTiebreakerOpened:
		payload = &events.TiebreakerOpenedPayload{}
	case events.EventTypeTiebreakerResolved:
		payload = &events.TiebreakerResolvedPayload{}
	case events.EventTypeRoundCompleted:
		payload = &events.RoundCompletedPayload{}
	case events.EventTypeRoundReset:
		payload = &events.RoundResetPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
