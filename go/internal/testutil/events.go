package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// RecordedEvent is one event captured by EventRecorder.
type RecordedEvent struct {
	RoundID   uuid.UUID
	EventType string
	Payload   json.RawMessage
}

// EventRecorder is an events.Sink that keeps everything in memory.
type EventRecorder struct {
	mu     sync.Mutex
	events []RecordedEvent
}

func (r *EventRecorder) InsertEvent(ctx context.Context, roundID uuid.UUID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedEvent{RoundID: roundID, EventType: eventType, Payload: payload})
	return nil
}

// OfType returns the recorded events of one type, oldest first.
func (r *EventRecorder) OfType(eventType string) []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedEvent
	for _, e := range r.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
