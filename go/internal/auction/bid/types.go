package bid

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubmitBidRequest is one team's sealed bid for one player
type SubmitBidRequest struct {
	RoundID  uuid.UUID       `json:"round_id"`
	PlayerID uuid.UUID       `json:"player_id"`
	TeamID   uuid.UUID       `json:"team_id"`
	Amount   decimal.Decimal `json:"amount"`
}
