package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox/worker"
)

type memRepo struct {
	mu     sync.Mutex
	events []*worker.OutboxEvent
}

func (r *memRepo) InsertOutboxEvent(ctx context.Context, roundID uuid.UUID, eventType string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, &worker.OutboxEvent{
		ID:        uuid.New(),
		RoundID:   roundID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (r *memRepo) FetchUnsentOutbox(ctx context.Context, limit int32) ([]worker.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []worker.OutboxEvent
	for _, e := range r.events {
		if e.SentAt == nil && len(out) < int(limit) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memRepo) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.SentAt = &now
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", id, auctionerr.ErrNotFound)
}

func (r *memRepo) FetchOutboxByID(ctx context.Context, id uuid.UUID) (*worker.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id && e.SentAt == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("event %s: %w", id, auctionerr.ErrNotFound)
}

func (r *memRepo) CountUnsentOutbox(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.SentAt == nil {
			n++
		}
	}
	return n, nil
}

// fakePublisher fails the first failures calls, then records.
type fakePublisher struct {
	mu        sync.Mutex
	failures  int
	published []worker.OutboxEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event worker.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("nats: no responders")
	}
	p.published = append(p.published, event)
	return nil
}
