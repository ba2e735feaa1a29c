package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation is the immutable assignment of a player to a team for a season.
type Allocation struct {
	ID           uuid.UUID       `json:"id"`
	PlayerID     uuid.UUID       `json:"player_id"`
	SeasonID     uuid.UUID       `json:"season_id"`
	TeamID       uuid.UUID       `json:"team_id"`
	RoundID      uuid.UUID       `json:"round_id"`
	TiebreakerID *uuid.UUID      `json:"tiebreaker_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"created_at"`
}
