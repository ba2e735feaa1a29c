package tiebreak

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// Config holds the tiebreaker tunables.
type Config struct {
	// Window is how long tied teams have to submit from the moment a tiebreaker opens.
	Window time.Duration
	// MinIncrement is the smallest step over the tied amount a new bid must make.
	MinIncrement decimal.Decimal
}

// DefaultConfig returns a 10 minute window and a 1.00 increment.
func DefaultConfig() Config {
	return Config{
		Window:       10 * time.Minute,
		MinIncrement: decimal.NewFromInt(1),
	}
}

// OpenRequest opens a tiebreaker for the teams tied at the top of a player's bids
type OpenRequest struct {
	RoundID    uuid.UUID                   `json:"round_id"`
	PlayerID   uuid.UUID                   `json:"player_id"`
	Seats      []repository.TiebreakerSeat `json:"seats"`
	TiedAmount decimal.Decimal             `json:"tied_amount"`
	ParentID   *uuid.UUID                  `json:"parent_id"`
}

// SubmitRequest is a tied team's new bid
type SubmitRequest struct {
	TiebreakerID uuid.UUID       `json:"tiebreaker_id"`
	TeamID       uuid.UUID       `json:"team_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// Candidate is a team ranked by the decision, best first.
type Candidate struct {
	TeamID uuid.UUID
	Amount decimal.Decimal
	At     time.Time
}

// Outcome of deciding a tiebreaker.
type Outcome int

const (
	OutcomeWinner Outcome = iota
	OutcomeEscalate
)

func (o Outcome) String() string {
	if o == OutcomeEscalate {
		return "escalate"
	}
	return "winner"
}

// Decision is the pure result of Decide.
type Decision struct {
	Outcome Outcome
	// Ranking orders the teams still in contention, winner first. Empty on escalation.
	Ranking []Candidate
	// Seats and TiedAmount describe the child tiebreaker on escalation.
	Seats      []repository.TiebreakerSeat
	TiedAmount decimal.Decimal
}

// Winner returns the top-ranked candidate. Only meaningful for OutcomeWinner.
func (d Decision) Winner() Candidate {
	return d.Ranking[0]
}

// Resolution is what the allocation engine consumes. Either Escalated with
// the Child that replaced the tiebreaker, or a winner with its fallbacks.
type Resolution struct {
	Tiebreaker *models.Tiebreaker
	Escalated  bool
	Child      *models.Tiebreaker
	Ranking    []Candidate
}

// Winner returns the winning candidate of a non-escalated resolution.
func (r *Resolution) Winner() Candidate {
	return r.Ranking[0]
}
