package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const teamBudgetColumns = `team_id, season_id, team_name, starting_budget, remaining_budget, squad_used, squad_cap, updated_at`

func scanTeamBudget(row scanner) (TeamBudget, error) {
	var i TeamBudget
	err := row.Scan(
		&i.TeamID,
		&i.SeasonID,
		&i.TeamName,
		&i.StartingBudget,
		&i.RemainingBudget,
		&i.SquadUsed,
		&i.SquadCap,
		&i.UpdatedAt,
	)
	return i, err
}

const createTeamBudget = `-- name: CreateTeamBudget :one
INSERT INTO team_budgets (team_id, season_id, team_name, starting_budget, remaining_budget, squad_used, squad_cap, updated_at)
VALUES ($1, $2, $3, $4, $4, 0, $5, $6)
RETURNING ` + teamBudgetColumns

type CreateTeamBudgetParams struct {
	TeamID         uuid.UUID
	SeasonID       uuid.UUID
	TeamName       string
	StartingBudget decimal.Decimal
	SquadCap       int32
	UpdatedAt      time.Time
}

func (q *Queries) CreateTeamBudget(ctx context.Context, arg CreateTeamBudgetParams) (TeamBudget, error) {
	row := q.db.QueryRowContext(ctx, createTeamBudget,
		arg.TeamID,
		arg.SeasonID,
		arg.TeamName,
		arg.StartingBudget,
		arg.SquadCap,
		arg.UpdatedAt,
	)
	return scanTeamBudget(row)
}

const getTeamBudget = `-- name: GetTeamBudget :one
SELECT ` + teamBudgetColumns + `
FROM team_budgets
WHERE team_id = $1 AND season_id = $2`

type GetTeamBudgetParams struct {
	TeamID   uuid.UUID
	SeasonID uuid.UUID
}

func (q *Queries) GetTeamBudget(ctx context.Context, arg GetTeamBudgetParams) (TeamBudget, error) {
	row := q.db.QueryRowContext(ctx, getTeamBudget, arg.TeamID, arg.SeasonID)
	return scanTeamBudget(row)
}

const debitTeamBudget = `-- name: DebitTeamBudget :one
UPDATE team_budgets
SET remaining_budget = remaining_budget - $3,
    squad_used = squad_used + 1,
    updated_at = $4
WHERE team_id = $1
  AND season_id = $2
  AND remaining_budget >= $3
  AND squad_used < squad_cap
RETURNING ` + teamBudgetColumns

type DebitTeamBudgetParams struct {
	TeamID    uuid.UUID
	SeasonID  uuid.UUID
	Amount    decimal.Decimal
	UpdatedAt time.Time
}

// DebitTeamBudget returns sql.ErrNoRows when the team can no longer afford the
// amount or has no squad slot left.
func (q *Queries) DebitTeamBudget(ctx context.Context, arg DebitTeamBudgetParams) (TeamBudget, error) {
	row := q.db.QueryRowContext(ctx, debitTeamBudget,
		arg.TeamID,
		arg.SeasonID,
		arg.Amount,
		arg.UpdatedAt,
	)
	return scanTeamBudget(row)
}
