package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const insertOutboxEvent = `-- name: InsertOutboxEvent :exec
INSERT INTO auction_outbox (id, round_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

type InsertOutboxEventParams struct {
	ID        uuid.UUID
	RoundID   uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

func (q *Queries) InsertOutboxEvent(ctx context.Context, arg InsertOutboxEventParams) error {
	_, err := q.db.ExecContext(ctx, insertOutboxEvent,
		arg.ID,
		arg.RoundID,
		arg.EventType,
		[]byte(arg.Payload),
		arg.CreatedAt,
	)
	return err
}

const fetchUnsentOutbox = `-- name: FetchUnsentOutbox :many
SELECT id, round_id, event_type, payload, created_at, sent_at
FROM auction_outbox
WHERE sent_at IS NULL
ORDER BY created_at ASC
LIMIT $1`

func (q *Queries) FetchUnsentOutbox(ctx context.Context, limit int32) ([]AuctionOutbox, error) {
	rows, err := q.db.QueryContext(ctx, fetchUnsentOutbox, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AuctionOutbox{}
	for rows.Next() {
		var i AuctionOutbox
		if err := rows.Scan(
			&i.ID,
			&i.RoundID,
			&i.EventType,
			&i.Payload,
			&i.CreatedAt,
			&i.SentAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const fetchOutboxByID = `-- name: FetchOutboxByID :one
SELECT id, round_id, event_type, payload, created_at, sent_at
FROM auction_outbox
WHERE id = $1 AND sent_at IS NULL`

func (q *Queries) FetchOutboxByID(ctx context.Context, id uuid.UUID) (AuctionOutbox, error) {
	row := q.db.QueryRowContext(ctx, fetchOutboxByID, id)
	var i AuctionOutbox
	err := row.Scan(
		&i.ID,
		&i.RoundID,
		&i.EventType,
		&i.Payload,
		&i.CreatedAt,
		&i.SentAt,
	)
	return i, err
}

const markOutboxSent = `-- name: MarkOutboxSent :exec
UPDATE auction_outbox SET sent_at = NOW() WHERE id = $1`

func (q *Queries) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, markOutboxSent, id)
	return err
}

const countUnsentOutbox = `-- name: CountUnsentOutbox :one
SELECT COUNT(*) FROM auction_outbox WHERE sent_at IS NULL`

func (q *Queries) CountUnsentOutbox(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countUnsentOutbox)
	var count int64
	err := row.Scan(&count)
	return count, err
}
