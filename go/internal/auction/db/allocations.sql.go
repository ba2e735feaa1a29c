package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const allocationColumns = `id, player_id, season_id, team_id, round_id, tiebreaker_id, amount, created_at`

func scanAllocation(row scanner) (Allocation, error) {
	var i Allocation
	err := row.Scan(
		&i.ID,
		&i.PlayerID,
		&i.SeasonID,
		&i.TeamID,
		&i.RoundID,
		&i.TiebreakerID,
		&i.Amount,
		&i.CreatedAt,
	)
	return i, err
}

const insertAllocation = `-- name: InsertAllocation :one
INSERT INTO allocations (id, player_id, season_id, team_id, round_id, tiebreaker_id, amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (player_id, season_id) DO NOTHING
RETURNING ` + allocationColumns

type InsertAllocationParams struct {
	ID           uuid.UUID
	PlayerID     uuid.UUID
	SeasonID     uuid.UUID
	TeamID       uuid.UUID
	RoundID      uuid.UUID
	TiebreakerID uuid.NullUUID
	Amount       decimal.Decimal
	CreatedAt    time.Time
}

// InsertAllocation returns sql.ErrNoRows when the player is already allocated
// for the season.
func (q *Queries) InsertAllocation(ctx context.Context, arg InsertAllocationParams) (Allocation, error) {
	row := q.db.QueryRowContext(ctx, insertAllocation,
		arg.ID,
		arg.PlayerID,
		arg.SeasonID,
		arg.TeamID,
		arg.RoundID,
		arg.TiebreakerID,
		arg.Amount,
		arg.CreatedAt,
	)
	return scanAllocation(row)
}

const getAllocationForPlayer = `-- name: GetAllocationForPlayer :one
SELECT ` + allocationColumns + `
FROM allocations
WHERE player_id = $1 AND season_id = $2`

type GetAllocationForPlayerParams struct {
	PlayerID uuid.UUID
	SeasonID uuid.UUID
}

func (q *Queries) GetAllocationForPlayer(ctx context.Context, arg GetAllocationForPlayerParams) (Allocation, error) {
	row := q.db.QueryRowContext(ctx, getAllocationForPlayer, arg.PlayerID, arg.SeasonID)
	return scanAllocation(row)
}

const listAllocationsForRound = `-- name: ListAllocationsForRound :many
SELECT ` + allocationColumns + `
FROM allocations
WHERE round_id = $1
ORDER BY created_at ASC`

func (q *Queries) ListAllocationsForRound(ctx context.Context, roundID uuid.UUID) ([]Allocation, error) {
	rows, err := q.db.QueryContext(ctx, listAllocationsForRound, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Allocation{}
	for rows.Next() {
		i, err := scanAllocation(rows)
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
