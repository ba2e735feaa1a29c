package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Sink is what the engine needs from the outbox.
type Sink interface {
	InsertEvent(ctx context.Context, roundID uuid.UUID, eventType string, payload []byte) error
}

// Emit marshals payload and hands it to the sink. Failures are logged, not returned.
func Emit(ctx context.Context, sink Sink, roundID uuid.UUID, eventType string, payload any) {
	if sink == nil {
		return
	}
	if err := emit(ctx, sink, roundID, eventType, payload); err != nil {
		log.Warn().
			Err(err).
			Str("round_id", roundID.String()).
			Str("event_type", eventType).
			Msg("failed to emit auction event")
	}
}

func emit(ctx context.Context, sink Sink, roundID uuid.UUID, eventType string, payload any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return sink.InsertEvent(ctx, roundID, eventType, payloadBytes)
}
