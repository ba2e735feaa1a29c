package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TeamBudget is the auction-relevant projection of a team within a season.
type TeamBudget struct {
	TeamID          uuid.UUID       `json:"team_id"`
	SeasonID        uuid.UUID       `json:"season_id"`
	TeamName        string          `json:"team_name"`
	StartingBudget  decimal.Decimal `json:"starting_budget"`
	RemainingBudget decimal.Decimal `json:"remaining_budget"`
	SquadUsed       int             `json:"squad_used"`
	SquadCap        int             `json:"squad_cap"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// HasCapacity reports whether the team can take one more player.
func (t TeamBudget) HasCapacity() bool {
	return t.SquadUsed < t.SquadCap
}

// CanAfford reports whether the remaining budget covers amount.
func (t TeamBudget) CanAfford(amount decimal.Decimal) bool {
	return t.RemainingBudget.GreaterThanOrEqual(amount)
}
