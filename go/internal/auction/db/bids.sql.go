package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const bidColumns = `id, round_id, player_id, team_id, amount, submitted_at, is_winning`

func scanBid(row scanner) (Bid, error) {
	var i Bid
	err := row.Scan(
		&i.ID,
		&i.RoundID,
		&i.PlayerID,
		&i.TeamID,
		&i.Amount,
		&i.SubmittedAt,
		&i.IsWinning,
	)
	return i, err
}

func (q *Queries) listBids(ctx context.Context, query string, args ...interface{}) ([]Bid, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Bid{}
	for rows.Next() {
		i, err := scanBid(rows)
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

const upsertBid = `-- name: UpsertBid :one
INSERT INTO bids (id, round_id, player_id, team_id, amount, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (round_id, player_id, team_id)
DO UPDATE SET amount = EXCLUDED.amount, submitted_at = EXCLUDED.submitted_at
WHERE bids.is_winning IS NULL
RETURNING ` + bidColumns

type UpsertBidParams struct {
	ID          uuid.UUID
	RoundID     uuid.UUID
	PlayerID    uuid.UUID
	TeamID      uuid.UUID
	Amount      decimal.Decimal
	SubmittedAt time.Time
}

// UpsertBid returns sql.ErrNoRows when the existing bid already has an outcome.
func (q *Queries) UpsertBid(ctx context.Context, arg UpsertBidParams) (Bid, error) {
	row := q.db.QueryRowContext(ctx, upsertBid,
		arg.ID,
		arg.RoundID,
		arg.PlayerID,
		arg.TeamID,
		arg.Amount,
		arg.SubmittedAt,
	)
	return scanBid(row)
}

const listBidsForPlayer = `-- name: ListBidsForPlayer :many
SELECT ` + bidColumns + `
FROM bids
WHERE round_id = $1 AND player_id = $2
ORDER BY amount DESC, submitted_at ASC`

type ListBidsForPlayerParams struct {
	RoundID  uuid.UUID
	PlayerID uuid.UUID
}

func (q *Queries) ListBidsForPlayer(ctx context.Context, arg ListBidsForPlayerParams) ([]Bid, error) {
	return q.listBids(ctx, listBidsForPlayer, arg.RoundID, arg.PlayerID)
}

const listBidsForRound = `-- name: ListBidsForRound :many
SELECT ` + bidColumns + `
FROM bids
WHERE round_id = $1
ORDER BY player_id, amount DESC, submitted_at ASC`

func (q *Queries) ListBidsForRound(ctx context.Context, roundID uuid.UUID) ([]Bid, error) {
	return q.listBids(ctx, listBidsForRound, roundID)
}

const listBidsForTeam = `-- name: ListBidsForTeam :many
SELECT ` + bidColumns + `
FROM bids
WHERE round_id = $1 AND team_id = $2
ORDER BY submitted_at ASC`

type ListBidsForTeamParams struct {
	RoundID uuid.UUID
	TeamID  uuid.UUID
}

func (q *Queries) ListBidsForTeam(ctx context.Context, arg ListBidsForTeamParams) ([]Bid, error) {
	return q.listBids(ctx, listBidsForTeam, arg.RoundID, arg.TeamID)
}

const markBidOutcomes = `-- name: MarkBidOutcomes :exec
UPDATE bids
SET is_winning = COALESCE(team_id = $3, FALSE)
WHERE round_id = $1 AND player_id = $2`

type MarkBidOutcomesParams struct {
	RoundID      uuid.UUID
	PlayerID     uuid.UUID
	WinnerTeamID uuid.NullUUID
}

// MarkBidOutcomes flags the winner's bid and every other bid as losing. A
// NULL winner marks every bid for the player as losing.
func (q *Queries) MarkBidOutcomes(ctx context.Context, arg MarkBidOutcomesParams) error {
	_, err := q.db.ExecContext(ctx, markBidOutcomes, arg.RoundID, arg.PlayerID, arg.WinnerTeamID)
	return err
}
