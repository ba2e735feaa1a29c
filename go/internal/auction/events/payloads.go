// Package events defines the auction event types and payloads shared by the
// engine, the outbox relay and the websocket gateway.
package events

import (
	"time"
)

const (
	EventTypeRoundOpened        = "RoundOpened"
	EventTypeRoundFinalizing    = "RoundFinalizing"
	EventTypePlayerAllocated    = "PlayerAllocated"
	EventTypePlayerUnsold       = "PlayerUnsold"
	EventTypeTiebreakerOpened   = "TiebreakerOpened"
	EventTypeTiebreakerResolved = "TiebreakerResolved"
	EventTypeRoundCompleted     = "RoundCompleted"
	EventTypeRoundReset         = "RoundReset"
)

// All lists every event type the outbox accepts.
var All = []string{
	EventTypeRoundOpened,
	EventTypeRoundFinalizing,
	EventTypePlayerAllocated,
	EventTypePlayerUnsold,
	EventTypeTiebreakerOpened,
	EventTypeTiebreakerResolved,
	EventTypeRoundCompleted,
	EventTypeRoundReset,
}

// IsKnown reports whether eventType is one of All.
func IsKnown(eventType string) bool {
	for _, t := range All {
		if t == eventType {
			return true
		}
	}
	return false
}

// RoundOpenedPayload is the payload for a RoundOpened event
type RoundOpenedPayload struct {
	RoundID   string    `json:"round_id"`
	SeasonID  string    `json:"season_id"`
	Position  string    `json:"position"`
	RoundType string    `json:"round_type"`
	PlayerID  string    `json:"player_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	MinBid    string    `json:"min_bid"`
}

// RoundFinalizingPayload is the payload for a RoundFinalizing event
type RoundFinalizingPayload struct {
	RoundID      string    `json:"round_id"`
	Position     string    `json:"position"`
	FinalizingAt time.Time `json:"finalizing_at"`
	Forced       bool      `json:"forced"`
}

// PlayerAllocatedPayload is the payload for a PlayerAllocated event
type PlayerAllocatedPayload struct {
	RoundID      string `json:"round_id"`
	PlayerID     string `json:"player_id"`
	TeamID       string `json:"team_id"`
	Amount       string `json:"amount"`
	TiebreakerID string `json:"tiebreaker_id,omitempty"`
}

// PlayerUnsoldPayload is the payload for a PlayerUnsold event
type PlayerUnsoldPayload struct {
	RoundID  string `json:"round_id"`
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"`
}

// TiebreakerOpenedPayload is the payload for a TiebreakerOpened event.
// TeamIDs are the only teams allowed to bid.
type TiebreakerOpenedPayload struct {
	TiebreakerID string    `json:"tiebreaker_id"`
	RoundID      string    `json:"round_id"`
	PlayerID     string    `json:"player_id"`
	ParentID     string    `json:"parent_id,omitempty"`
	TeamIDs      []string  `json:"team_ids"`
	TiedAmount   string    `json:"tied_amount"`
	Deadline     time.Time `json:"deadline"`
}

// TiebreakerResolvedPayload is the payload for a TiebreakerResolved event
type TiebreakerResolvedPayload struct {
	TiebreakerID  string   `json:"tiebreaker_id"`
	RoundID       string   `json:"round_id"`
	PlayerID      string   `json:"player_id"`
	TeamIDs       []string `json:"team_ids"`
	WinnerTeamID  string   `json:"winner_team_id,omitempty"`
	WinningAmount string   `json:"winning_amount,omitempty"`
	Escalated     bool     `json:"escalated"`
}

// RoundCompletedPayload is the payload for a RoundCompleted event
type RoundCompletedPayload struct {
	RoundID         string    `json:"round_id"`
	Position        string    `json:"position"`
	AllocationCount int       `json:"allocation_count"`
	CompletedAt     time.Time `json:"completed_at"`
}

// RoundResetPayload is the payload for a RoundReset event
type RoundResetPayload struct {
	RoundID string    `json:"round_id"`
	ResetAt time.Time `json:"reset_at"`
}
