package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createPlayer = `-- name: CreatePlayer :one
INSERT INTO players (id, season_id, full_name, position, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, season_id, full_name, position, created_at`

type CreatePlayerParams struct {
	ID        uuid.UUID
	SeasonID  uuid.UUID
	FullName  string
	Position  string
	CreatedAt time.Time
}

func (q *Queries) CreatePlayer(ctx context.Context, arg CreatePlayerParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, createPlayer,
		arg.ID,
		arg.SeasonID,
		arg.FullName,
		arg.Position,
		arg.CreatedAt,
	)
	var i Player
	err := row.Scan(
		&i.ID,
		&i.SeasonID,
		&i.FullName,
		&i.Position,
		&i.CreatedAt,
	)
	return i, err
}

const getPlayer = `-- name: GetPlayer :one
SELECT id, season_id, full_name, position, created_at
FROM players
WHERE id = $1`

func (q *Queries) GetPlayer(ctx context.Context, id uuid.UUID) (Player, error) {
	row := q.db.QueryRowContext(ctx, getPlayer, id)
	var i Player
	err := row.Scan(
		&i.ID,
		&i.SeasonID,
		&i.FullName,
		&i.Position,
		&i.CreatedAt,
	)
	return i, err
}
