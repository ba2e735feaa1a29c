package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TiebreakerStatus defines the status of a tiebreaker sub-round.
type TiebreakerStatus string

const (
	TiebreakerStatusActive    TiebreakerStatus = "ACTIVE"
	TiebreakerStatusCompleted TiebreakerStatus = "COMPLETED"
)

// Tiebreaker is a secondary sealed-bid sub-round between teams tied at the top bid for one player.
type Tiebreaker struct {
	ID            uuid.UUID        `json:"id"`
	RoundID       uuid.UUID        `json:"round_id"`
	PlayerID      uuid.UUID        `json:"player_id"`
	ParentID      *uuid.UUID       `json:"parent_id,omitempty"` // set on escalations
	TiedAmount    decimal.Decimal  `json:"tied_amount"`
	Status        TiebreakerStatus `json:"status"`
	Deadline      time.Time        `json:"deadline"`
	WinnerTeamID  *uuid.UUID       `json:"winner_team_id,omitempty"`
	WinningAmount *decimal.Decimal `json:"winning_amount,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty"`

	Entries []TiebreakerEntry `json:"entries,omitempty"`
}

// TiebreakerEntry is one tied team's seat in a tiebreaker.
type TiebreakerEntry struct {
	TiebreakerID        uuid.UUID        `json:"tiebreaker_id"`
	TeamID              uuid.UUID        `json:"team_id"`
	OriginalSubmittedAt time.Time        `json:"original_submitted_at"`
	NewAmount           *decimal.Decimal `json:"new_amount,omitempty"`
	SubmittedAt         *time.Time       `json:"submitted_at,omitempty"`
}

// Submitted reports whether the team has placed a tiebreaker bid.
func (e TiebreakerEntry) Submitted() bool {
	return e.NewAmount != nil
}

// TeamIDs returns the tied teams in entry order.
func (t *Tiebreaker) TeamIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(t.Entries))
	for i, e := range t.Entries {
		ids[i] = e.TeamID
	}
	return ids
}

// SameEntries reports whether other holds exactly the submissions in a,
// matched by team.
func SameEntries(a, other []TiebreakerEntry) bool {
	if len(a) != len(other) {
		return false
	}
	byTeam := make(map[uuid.UUID]TiebreakerEntry, len(a))
	for _, e := range a {
		byTeam[e.TeamID] = e
	}
	for _, o := range other {
		e, ok := byTeam[o.TeamID]
		if !ok || e.Submitted() != o.Submitted() {
			return false
		}
		if e.Submitted() && !e.NewAmount.Equal(*o.NewAmount) {
			return false
		}
		if (e.SubmittedAt == nil) != (o.SubmittedAt == nil) {
			return false
		}
		if e.SubmittedAt != nil && !e.SubmittedAt.Equal(*o.SubmittedAt) {
			return false
		}
	}
	return true
}
