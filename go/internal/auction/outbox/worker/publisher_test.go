package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/peterldowns/testy/check"
)

func TestSubject(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	check.Equal(t, "auction.events.RoundCompleted", Subject(cfg.SubjectPrefix, "RoundCompleted"))
}

func TestNewEnvelope(t *testing.T) {
	event := OutboxEvent{
		ID:        uuid.New(),
		RoundID:   uuid.New(),
		EventType: "PlayerAllocated",
		Payload:   []byte(`{"amount":"40.00"}`),
	}
	at := time.Date(2026, 3, 1, 14, 0, 0, 0, time.FixedZone("x", 3600))

	env := NewEnvelope(event, at)
	check.Equal(t, event.ID.String(), env.EventID)
	check.Equal(t, event.RoundID.String(), env.RoundID)
	check.Equal(t, "PlayerAllocated", env.EventType)
	check.True(t, env.Timestamp.Equal(at))
	check.True(t, env.Timestamp.Location() == time.UTC)
	check.Equal(t, `{"amount":"40.00"}`, string(env.Payload))
}

func TestStreamConfig(t *testing.T) {
	p := &JetStreamPublisher{config: DefaultJetStreamConfig()}
	sc := p.streamConfig()
	check.Equal(t, "AUCTION_EVENTS", sc.Name)
	check.Equal(t, []string{"auction.events.>"}, sc.Subjects)
	check.True(t, isStreamConfigEqual(sc, sc))

	changed := sc
	changed.MaxAge = time.Hour
	check.False(t, isStreamConfigEqual(sc, changed))
	check.Equal(t, jetstream.FileStorage, sc.Storage)
}
