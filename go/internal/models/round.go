package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundType defines whether a round auctions one named player or a whole position pool.
type RoundType string

const (
	RoundTypeSingle RoundType = "SINGLE"
	RoundTypeBulk   RoundType = "BULK"
)

// RoundStatus defines the lifecycle status of a bidding round.
type RoundStatus string

const (
	RoundStatusActive     RoundStatus = "ACTIVE"
	RoundStatusFinalizing RoundStatus = "FINALIZING"
	RoundStatusCompleted  RoundStatus = "COMPLETED"
)

// Round is a time-boxed sealed-bid auction for one position within a season.
type Round struct {
	ID       uuid.UUID   `json:"id"`
	SeasonID uuid.UUID   `json:"season_id"`
	Position string      `json:"position"`
	Type     RoundType   `json:"round_type"`
	PlayerID *uuid.UUID  `json:"player_id,omitempty"` // SINGLE rounds only
	Status   RoundStatus `json:"status"`

	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	MinBid    decimal.Decimal `json:"min_bid"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`

	FinalizingAt    *time.Time `json:"finalizing_at,omitempty"`
	PassCompletedAt *time.Time `json:"pass_completed_at,omitempty"` // allocation pass finished, only tiebreakers outstanding
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
