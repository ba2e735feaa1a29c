package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is a team's sealed offer for a player within a round.
type Bid struct {
	ID          uuid.UUID       `json:"id"`
	RoundID     uuid.UUID       `json:"round_id"`
	PlayerID    uuid.UUID       `json:"player_id"`
	TeamID      uuid.UUID       `json:"team_id"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
	IsWinning   *bool           `json:"is_winning,omitempty"` // nil until the player is settled
}
