package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox/worker"
)

// EventStore is the part of App the relay drives.
type EventStore interface {
	GetEventByID(ctx context.Context, eventID uuid.UUID) (*worker.OutboxEvent, error)
	MarkEventSent(ctx context.Context, eventID uuid.UUID) error
	ProcessUnsentEvents(ctx context.Context, batchSize int32, processor func(event worker.OutboxEvent) error) (int, error)
}

type RelayConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	BatchSize  int32 // Max events to fetch per fallback batch
}

// Relay moves outbox rows to the publisher. It is driven by the Listener
// but has no database connection of its own.
type Relay struct {
	store     EventStore
	publisher worker.EventPublisher
	cfg       RelayConfig

	mu        sync.Mutex
	processed uint64
	lastEvent time.Time
}

func NewRelay(store EventStore, publisher worker.EventPublisher, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
	}
}

// HandleNotification publishes the outbox row named by a NOTIFY payload.
// Rows already sent by the fallback drain are skipped.
func (r *Relay) HandleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := r.store.GetEventByID(ctx, id)
	if errors.Is(err, auctionerr.ErrNotFound) {
		log.Debug().Str("event_id", id.String()).Msg("outbox event already sent")
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.publishWithRetry(ctx, *event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := r.store.MarkEventSent(ctx, id); err != nil {
		return err
	}
	r.record(1)

	log.Info().Str("event_id", id.String()).Str("event_type", event.EventType).Msg("published and marked event as sent")
	return nil
}

// Drain publishes one batch of unsent events. It catches notifications
// missed while the listener was disconnected.
func (r *Relay) Drain(ctx context.Context) error {
	n, err := r.store.ProcessUnsentEvents(ctx, r.cfg.BatchSize, func(event worker.OutboxEvent) error {
		return r.publishWithRetry(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("failed to process unsent events: %w", err)
	}
	r.record(n)
	return nil
}

// Stats returns how many events were published and when the last one went out.
func (r *Relay) Stats() (uint64, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed, r.lastEvent
}

func (r *Relay) record(n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed += uint64(n)
	r.lastEvent = time.Now()
}

// publishWithRetry attempts to publish an outbox event with a linear backoff.
func (r *Relay) publishWithRetry(ctx context.Context, event worker.OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
