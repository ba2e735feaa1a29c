package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sqlc-dev/pqtype"
)

const roundColumns = `id, season_id, position, round_type, player_id, status, start_time, end_time, min_bid, metadata,
    finalizing_at, pass_completed_at, completed_at, created_at, updated_at`

func scanRound(row scanner) (Round, error) {
	var i Round
	err := row.Scan(
		&i.ID,
		&i.SeasonID,
		&i.Position,
		&i.RoundType,
		&i.PlayerID,
		&i.Status,
		&i.StartTime,
		&i.EndTime,
		&i.MinBid,
		&i.Metadata,
		&i.FinalizingAt,
		&i.PassCompletedAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listRounds(ctx context.Context, query string, args ...interface{}) ([]Round, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Round{}
	for rows.Next() {
		i, err := scanRound(rows)
		if err != nil {
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

const createRound = `-- name: CreateRound :one
INSERT INTO rounds (id, season_id, position, round_type, player_id, status, start_time, end_time, min_bid, metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'ACTIVE', $6, $7, $8, $9, $10, $10)
RETURNING ` + roundColumns

type CreateRoundParams struct {
	ID        uuid.UUID
	SeasonID  uuid.UUID
	Position  string
	RoundType RoundType
	PlayerID  uuid.NullUUID
	StartTime time.Time
	EndTime   time.Time
	MinBid    decimal.Decimal
	Metadata  pqtype.NullRawMessage
	CreatedAt time.Time
}

func (q *Queries) CreateRound(ctx context.Context, arg CreateRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, createRound,
		arg.ID,
		arg.SeasonID,
		arg.Position,
		arg.RoundType,
		arg.PlayerID,
		arg.StartTime,
		arg.EndTime,
		arg.MinBid,
		arg.Metadata,
		arg.CreatedAt,
	)
	return scanRound(row)
}

const getRound = `-- name: GetRound :one
SELECT ` + roundColumns + `
FROM rounds
WHERE id = $1`

func (q *Queries) GetRound(ctx context.Context, id uuid.UUID) (Round, error) {
	row := q.db.QueryRowContext(ctx, getRound, id)
	return scanRound(row)
}

const lockRoundForBid = `-- name: LockRoundForBid :one
SELECT ` + roundColumns + `
FROM rounds
WHERE id = $1 AND status = 'ACTIVE' AND start_time <= $2 AND end_time > $2
FOR SHARE`

// LockRoundForBid holds the round open while a bid is written. Every status
// or end_time change waits for the lock, so a finalization pass sees either
// the committed bid or none. Returns sql.ErrNoRows when bidding is closed at.
func (q *Queries) LockRoundForBid(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, lockRoundForBid, arg.ID, arg.At)
	return scanRound(row)
}

const beginFinalizing = `-- name: BeginFinalizing :one
UPDATE rounds
SET status = 'FINALIZING', finalizing_at = $2, updated_at = $2
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + roundColumns

type TransitionRoundParams struct {
	ID uuid.UUID
	At time.Time
}

// BeginFinalizing returns sql.ErrNoRows when the round is no longer ACTIVE.
func (q *Queries) BeginFinalizing(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, beginFinalizing, arg.ID, arg.At)
	return scanRound(row)
}

const markPassCompleted = `-- name: MarkPassCompleted :one
UPDATE rounds
SET pass_completed_at = COALESCE(pass_completed_at, $2), updated_at = $2
WHERE id = $1 AND status = 'FINALIZING'
RETURNING ` + roundColumns

func (q *Queries) MarkPassCompleted(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, markPassCompleted, arg.ID, arg.At)
	return scanRound(row)
}

const completeRound = `-- name: CompleteRound :one
UPDATE rounds
SET status = 'COMPLETED', completed_at = $2, updated_at = $2
WHERE id = $1
  AND status = 'FINALIZING'
  AND pass_completed_at IS NOT NULL
  AND NOT EXISTS (
    SELECT 1 FROM tiebreakers t WHERE t.round_id = $1 AND t.status = 'ACTIVE'
  )
RETURNING ` + roundColumns

// CompleteRound returns sql.ErrNoRows unless the round is FINALIZING, its
// allocation pass is done and no tiebreaker is still open.
func (q *Queries) CompleteRound(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, completeRound, arg.ID, arg.At)
	return scanRound(row)
}

const resetStuckRound = `-- name: ResetStuckRound :one
UPDATE rounds
SET status = 'ACTIVE', finalizing_at = NULL, pass_completed_at = NULL, updated_at = $2
WHERE id = $1 AND status = 'FINALIZING' AND pass_completed_at IS NULL
RETURNING ` + roundColumns

func (q *Queries) ResetStuckRound(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, resetStuckRound, arg.ID, arg.At)
	return scanRound(row)
}

const closeBidding = `-- name: CloseBidding :one
UPDATE rounds
SET end_time = LEAST(end_time, $2),
    start_time = LEAST(start_time, $2),
    updated_at = $2
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + roundColumns

func (q *Queries) CloseBidding(ctx context.Context, arg TransitionRoundParams) (Round, error) {
	row := q.db.QueryRowContext(ctx, closeBidding, arg.ID, arg.At)
	return scanRound(row)
}

const listRoundsDueForSettlement = `-- name: ListRoundsDueForSettlement :many
SELECT ` + roundColumns + `
FROM rounds
WHERE (status = 'ACTIVE' AND end_time <= $1)
   OR (status = 'FINALIZING' AND pass_completed_at IS NOT NULL)
ORDER BY end_time ASC
LIMIT $2`

type ListRoundsDueForSettlementParams struct {
	Now   time.Time
	Limit int32
}

func (q *Queries) ListRoundsDueForSettlement(ctx context.Context, arg ListRoundsDueForSettlementParams) ([]Round, error) {
	return q.listRounds(ctx, listRoundsDueForSettlement, arg.Now, arg.Limit)
}

const listStuckRounds = `-- name: ListStuckRounds :many
SELECT ` + roundColumns + `
FROM rounds
WHERE status = 'FINALIZING'
  AND pass_completed_at IS NULL
  AND finalizing_at <= $1
ORDER BY finalizing_at ASC`

func (q *Queries) ListStuckRounds(ctx context.Context, finalizingBefore time.Time) ([]Round, error) {
	return q.listRounds(ctx, listStuckRounds, finalizingBefore)
}

const listActiveRounds = `-- name: ListActiveRounds :many
SELECT ` + roundColumns + `
FROM rounds
WHERE status = 'ACTIVE'
ORDER BY end_time ASC, position ASC`

func (q *Queries) ListActiveRounds(ctx context.Context) ([]Round, error) {
	return q.listRounds(ctx, listActiveRounds)
}
