package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/outbox/worker"
)

// OutboxRepository defines what the app layer needs from the repository
type OutboxRepository interface {
	InsertOutboxEvent(ctx context.Context, roundID uuid.UUID, eventType string, payload []byte) error
	FetchUnsentOutbox(ctx context.Context, limit int32) ([]worker.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*worker.OutboxEvent, error)
	CountUnsentOutbox(ctx context.Context) (int, error)
}

// App handles outbox business logic
type App struct {
	repo OutboxRepository
}

// NewApp creates a new outbox App
func NewApp(repo OutboxRepository) *App {
	return &App{
		repo: repo,
	}
}

// InsertEvent records an auction event for the relay to publish. It
// satisfies events.Sink.
func (a *App) InsertEvent(ctx context.Context, roundID uuid.UUID, eventType string, payload []byte) error {
	if !events.IsKnown(eventType) {
		return fmt.Errorf("unknown event type %q: %w", eventType, auctionerr.ErrValidation)
	}
	if err := a.validateEventPayload(payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", eventType, err)
	}

	if err := a.repo.InsertOutboxEvent(ctx, roundID, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}

	log.Info().
		Str("round_id", roundID.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")

	return nil
}

// FetchUnsentEvents fetches unsent outbox events
func (a *App) FetchUnsentEvents(ctx context.Context, limit int32) ([]worker.OutboxEvent, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0: %w", auctionerr.ErrValidation)
	}

	unsent, err := a.repo.FetchUnsentOutbox(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}

	if len(unsent) > 0 {
		log.Debug().
			Int("count", len(unsent)).
			Msg("fetched unsent outbox events")
	}

	return unsent, nil
}

// MarkEventSent marks an outbox event as sent
func (a *App) MarkEventSent(ctx context.Context, eventID uuid.UUID) error {
	if err := a.repo.MarkOutboxSent(ctx, eventID); err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}

	log.Debug().
		Str("event_id", eventID.String()).
		Msg("marked outbox event as sent")

	return nil
}

// GetEventByID fetches a specific unsent outbox event by ID
func (a *App) GetEventByID(ctx context.Context, eventID uuid.UUID) (*worker.OutboxEvent, error) {
	event, err := a.repo.FetchOutboxByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event by ID: %w", err)
	}

	return event, nil
}

// CountPending returns how many events still wait for the relay
func (a *App) CountPending(ctx context.Context) (int, error) {
	return a.repo.CountUnsentOutbox(ctx)
}

// ProcessUnsentEvents runs processor over one batch of unsent events and
// marks each success as sent. It returns how many were sent.
func (a *App) ProcessUnsentEvents(ctx context.Context, batchSize int32, processor func(event worker.OutboxEvent) error) (int, error) {
	unsent, err := a.FetchUnsentEvents(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	processedCount := 0
	errorCount := 0

	for _, event := range unsent {
		if err := processor(event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to process event")
			errorCount++
			continue
		}

		if err := a.MarkEventSent(ctx, event.ID); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Msg("failed to mark event as sent after processing")
			errorCount++
			continue
		}

		processedCount++
	}

	if processedCount > 0 || errorCount > 0 {
		log.Info().
			Int("processed", processedCount).
			Int("errors", errorCount).
			Int("total", len(unsent)).
			Msg("processed unsent events batch")
	}

	return processedCount, nil
}

// validateEventPayload checks the payload is a non-empty JSON document
func (a *App) validateEventPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("event payload cannot be empty: %w", auctionerr.ErrValidation)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("event payload must be JSON: %w", auctionerr.ErrValidation)
	}
	return nil
}
