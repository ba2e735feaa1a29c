package round

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/models"
)

// OpenRoundRequest describes a new round. A zero StartTime opens bidding
// immediately; a future StartTime leaves the round pending until then.
type OpenRoundRequest struct {
	SeasonID  uuid.UUID        `json:"season_id"`
	Position  string           `json:"position"`
	Type      models.RoundType `json:"round_type"`
	PlayerID  *uuid.UUID       `json:"player_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	MinBid    decimal.Decimal  `json:"min_bid"`
	Metadata  json.RawMessage  `json:"metadata"`
}

// Phase is the effective bidding phase of a round at a point in time. It
// refines the stored status with the round's time window.
type Phase string

const (
	PhasePending    Phase = "PENDING"
	PhaseOpen       Phase = "OPEN"
	PhaseExpired    Phase = "EXPIRED"
	PhaseFinalizing Phase = "FINALIZING"
	PhaseCompleted  Phase = "COMPLETED"
)
