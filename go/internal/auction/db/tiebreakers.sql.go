package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const tiebreakerColumns = `id, round_id, player_id, parent_id, tied_amount, status, deadline, winner_team_id, winning_amount,
    created_at, resolved_at`

func scanTiebreaker(row scanner) (Tiebreaker, error) {
	var i Tiebreaker
	err := row.Scan(
		&i.ID,
		&i.RoundID,
		&i.PlayerID,
		&i.ParentID,
		&i.TiedAmount,
		&i.Status,
		&i.Deadline,
		&i.WinnerTeamID,
		&i.WinningAmount,
		&i.CreatedAt,
		&i.ResolvedAt,
	)
	return i, err
}

func (q *Queries) listTiebreakers(ctx context.Context, query string, args ...interface{}) ([]Tiebreaker, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Tiebreaker{}
	for rows.Next() {
		i, err := scanTiebreaker(rows)
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

const createTiebreaker = `-- name: CreateTiebreaker :one
INSERT INTO tiebreakers (id, round_id, player_id, parent_id, tied_amount, status, deadline, created_at)
VALUES ($1, $2, $3, $4, $5, 'ACTIVE', $6, $7)
ON CONFLICT (round_id, player_id) WHERE status = 'ACTIVE' DO NOTHING
RETURNING ` + tiebreakerColumns

type CreateTiebreakerParams struct {
	ID         uuid.UUID
	RoundID    uuid.UUID
	PlayerID   uuid.UUID
	ParentID   uuid.NullUUID
	TiedAmount decimal.Decimal
	Deadline   time.Time
	CreatedAt  time.Time
}

// CreateTiebreaker returns sql.ErrNoRows when an ACTIVE tiebreaker already
// exists for the round and player.
func (q *Queries) CreateTiebreaker(ctx context.Context, arg CreateTiebreakerParams) (Tiebreaker, error) {
	row := q.db.QueryRowContext(ctx, createTiebreaker,
		arg.ID,
		arg.RoundID,
		arg.PlayerID,
		arg.ParentID,
		arg.TiedAmount,
		arg.Deadline,
		arg.CreatedAt,
	)
	return scanTiebreaker(row)
}

const getTiebreaker = `-- name: GetTiebreaker :one
SELECT ` + tiebreakerColumns + `
FROM tiebreakers
WHERE id = $1`

func (q *Queries) GetTiebreaker(ctx context.Context, id uuid.UUID) (Tiebreaker, error) {
	row := q.db.QueryRowContext(ctx, getTiebreaker, id)
	return scanTiebreaker(row)
}

const getActiveTiebreakerForPlayer = `-- name: GetActiveTiebreakerForPlayer :one
SELECT ` + tiebreakerColumns + `
FROM tiebreakers
WHERE round_id = $1 AND player_id = $2 AND status = 'ACTIVE'`

type GetActiveTiebreakerForPlayerParams struct {
	RoundID  uuid.UUID
	PlayerID uuid.UUID
}

func (q *Queries) GetActiveTiebreakerForPlayer(ctx context.Context, arg GetActiveTiebreakerForPlayerParams) (Tiebreaker, error) {
	row := q.db.QueryRowContext(ctx, getActiveTiebreakerForPlayer, arg.RoundID, arg.PlayerID)
	return scanTiebreaker(row)
}

const listActiveTiebreakersForRound = `-- name: ListActiveTiebreakersForRound :many
SELECT ` + tiebreakerColumns + `
FROM tiebreakers
WHERE round_id = $1 AND status = 'ACTIVE'
ORDER BY deadline ASC`

func (q *Queries) ListActiveTiebreakersForRound(ctx context.Context, roundID uuid.UUID) ([]Tiebreaker, error) {
	return q.listTiebreakers(ctx, listActiveTiebreakersForRound, roundID)
}

const lockTiebreakerForEntry = `-- name: LockTiebreakerForEntry :one
SELECT ` + tiebreakerColumns + `
FROM tiebreakers
WHERE id = $1 AND status = 'ACTIVE' AND deadline > $2
FOR SHARE`

type LockTiebreakerForEntryParams struct {
	ID uuid.UUID
	At time.Time
}

// LockTiebreakerForEntry holds the tiebreaker open while an entry is written.
// CompleteTiebreaker waits for the lock, so no entry lands after the
// tiebreaker is settled. Returns sql.ErrNoRows once it is closed.
func (q *Queries) LockTiebreakerForEntry(ctx context.Context, arg LockTiebreakerForEntryParams) (Tiebreaker, error) {
	row := q.db.QueryRowContext(ctx, lockTiebreakerForEntry, arg.ID, arg.At)
	return scanTiebreaker(row)
}

const completeTiebreaker = `-- name: CompleteTiebreaker :one
UPDATE tiebreakers
SET status = 'COMPLETED', winner_team_id = $2, winning_amount = $3, resolved_at = $4
WHERE id = $1 AND status = 'ACTIVE'
RETURNING ` + tiebreakerColumns

type CompleteTiebreakerParams struct {
	ID            uuid.UUID
	WinnerTeamID  uuid.NullUUID
	WinningAmount decimal.NullDecimal
	ResolvedAt    time.Time
}

// CompleteTiebreaker returns sql.ErrNoRows if another resolver got there first.
func (q *Queries) CompleteTiebreaker(ctx context.Context, arg CompleteTiebreakerParams) (Tiebreaker, error) {
	row := q.db.QueryRowContext(ctx, completeTiebreaker,
		arg.ID,
		arg.WinnerTeamID,
		arg.WinningAmount,
		arg.ResolvedAt,
	)
	return scanTiebreaker(row)
}

const entryColumns = `tiebreaker_id, team_id, original_submitted_at, new_amount, submitted_at`

func scanEntry(row scanner) (TiebreakerEntry, error) {
	var i TiebreakerEntry
	err := row.Scan(
		&i.TiebreakerID,
		&i.TeamID,
		&i.OriginalSubmittedAt,
		&i.NewAmount,
		&i.SubmittedAt,
	)
	return i, err
}

const createTiebreakerEntry = `-- name: CreateTiebreakerEntry :one
INSERT INTO tiebreaker_entries (tiebreaker_id, team_id, original_submitted_at)
VALUES ($1, $2, $3)
RETURNING ` + entryColumns

type CreateTiebreakerEntryParams struct {
	TiebreakerID        uuid.UUID
	TeamID              uuid.UUID
	OriginalSubmittedAt time.Time
}

func (q *Queries) CreateTiebreakerEntry(ctx context.Context, arg CreateTiebreakerEntryParams) (TiebreakerEntry, error) {
	row := q.db.QueryRowContext(ctx, createTiebreakerEntry, arg.TiebreakerID, arg.TeamID, arg.OriginalSubmittedAt)
	return scanEntry(row)
}

const listTiebreakerEntries = `-- name: ListTiebreakerEntries :many
SELECT ` + entryColumns + `
FROM tiebreaker_entries
WHERE tiebreaker_id = $1
ORDER BY original_submitted_at ASC, team_id ASC`

func (q *Queries) ListTiebreakerEntries(ctx context.Context, tiebreakerID uuid.UUID) ([]TiebreakerEntry, error) {
	rows, err := q.db.QueryContext(ctx, listTiebreakerEntries, tiebreakerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TiebreakerEntry{}
	for rows.Next() {
		i, err := scanEntry(rows)
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

const lockTiebreakerEntries = `-- name: LockTiebreakerEntries :many
SELECT ` + entryColumns + `
FROM tiebreaker_entries
WHERE tiebreaker_id = $1
ORDER BY original_submitted_at ASC, team_id ASC
FOR UPDATE`

// LockTiebreakerEntries reads the latest committed entries and holds them
// until the transaction ends.
func (q *Queries) LockTiebreakerEntries(ctx context.Context, tiebreakerID uuid.UUID) ([]TiebreakerEntry, error) {
	rows, err := q.db.QueryContext(ctx, lockTiebreakerEntries, tiebreakerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []TiebreakerEntry{}
	for rows.Next() {
		i, err := scanEntry(rows)
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

const submitTiebreakerEntry = `-- name: SubmitTiebreakerEntry :one
UPDATE tiebreaker_entries e
SET new_amount = $3, submitted_at = $4
FROM tiebreakers t
WHERE e.tiebreaker_id = $1
  AND e.team_id = $2
  AND t.id = e.tiebreaker_id
  AND t.status = 'ACTIVE'
  AND t.deadline > $4
RETURNING e.tiebreaker_id, e.team_id, e.original_submitted_at, e.new_amount, e.submitted_at`

type SubmitTiebreakerEntryParams struct {
	TiebreakerID uuid.UUID
	TeamID       uuid.UUID
	NewAmount    decimal.Decimal
	SubmittedAt  time.Time
}

// SubmitTiebreakerEntry returns sql.ErrNoRows if the team has no entry or the
// tiebreaker closed in the meantime.
func (q *Queries) SubmitTiebreakerEntry(ctx context.Context, arg SubmitTiebreakerEntryParams) (TiebreakerEntry, error) {
	row := q.db.QueryRowContext(ctx, submitTiebreakerEntry,
		arg.TiebreakerID,
		arg.TeamID,
		arg.NewAmount,
		arg.SubmittedAt,
	)
	return scanEntry(row)
}
