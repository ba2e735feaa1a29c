package allocation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mcdev12/leagueauction/go/internal/models"
)

// Policy decides what happens when the winner fails the budget or squad
// re-check at commit time.
type Policy string

const (
	// PolicyUnsold leaves the player unsold for this round.
	PolicyUnsold Policy = "UNSOLD"
	// PolicyNextHighest falls through to the next bidder in rank order.
	PolicyNextHighest Policy = "NEXT_HIGHEST"
)

// ParsePolicy accepts the config spelling of a policy. Empty means PolicyUnsold.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToUpper(strings.TrimSpace(s))); p {
	case "":
		return PolicyUnsold, nil
	case PolicyUnsold, PolicyNextHighest:
		return p, nil
	default:
		return "", fmt.Errorf("unknown allocation policy %q", s)
	}
}

// Config for the allocation engine
type Config struct {
	Policy Policy
	// Workers bounds how many players of a round are settled concurrently.
	Workers int
}

func DefaultConfig() Config {
	return Config{
		Policy:  PolicyUnsold,
		Workers: 4,
	}
}

// OutcomeKind is what settling a player produced.
type OutcomeKind string

const (
	OutcomeAllocated       OutcomeKind = "ALLOCATED"
	OutcomeUnsold          OutcomeKind = "UNSOLD"
	OutcomeTiebreakPending OutcomeKind = "TIEBREAK_PENDING"
	OutcomeSkipped         OutcomeKind = "SKIPPED"
)

// PlayerOutcome is the result of settling one player.
type PlayerOutcome struct {
	PlayerID   uuid.UUID
	Kind       OutcomeKind
	Allocation *models.Allocation
	Tiebreaker *models.Tiebreaker
	Reason     string
}

// Report summarises one allocation pass.
type Report struct {
	RoundID  uuid.UUID
	Outcomes []PlayerOutcome
}

// Count returns how many outcomes are of kind k.
func (r *Report) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}
