package tiebreak

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// Decide picks the outcome of a closed tiebreaker.
//
// The highest new amount wins and teams that never submitted forfeit. When
// several teams share the top amount and they are a strict subset of the
// entries, the result is an escalation to a child tiebreaker for that subset
// at that amount. When nobody submitted the earliest original bid wins at
// the tied amount.
//
// Every escalation has fewer teams and a higher tied amount than its parent,
// so N tied teams see at most N-1 escalations. When every entry submitted the
// same amount the set cannot shrink and escalating would break that bound, so
// the earliest submission wins instead.
func Decide(tb *models.Tiebreaker) (Decision, error) {
	if len(tb.Entries) == 0 {
		return Decision{}, fmt.Errorf("tiebreaker %s has no entries: %w", tb.ID, auctionerr.ErrValidation)
	}

	var submitted []Candidate
	for _, e := range tb.Entries {
		if e.Submitted() {
			at := e.OriginalSubmittedAt
			if e.SubmittedAt != nil {
				at = *e.SubmittedAt
			}
			submitted = append(submitted, Candidate{TeamID: e.TeamID, Amount: *e.NewAmount, At: at})
		}
	}

	if len(submitted) == 0 {
		ranking := make([]Candidate, len(tb.Entries))
		for i, e := range tb.Entries {
			ranking[i] = Candidate{TeamID: e.TeamID, Amount: tb.TiedAmount, At: e.OriginalSubmittedAt}
		}
		sortCandidates(ranking)
		return Decision{Outcome: OutcomeWinner, Ranking: ranking}, nil
	}

	sortCandidates(submitted)
	top := submitted[0].Amount
	n := 1
	for n < len(submitted) && submitted[n].Amount.Equal(top) {
		n++
	}

	if n == 1 || n == len(tb.Entries) {
		return Decision{Outcome: OutcomeWinner, Ranking: submitted}, nil
	}

	if !top.GreaterThan(tb.TiedAmount) {
		return Decision{}, fmt.Errorf("tiebreaker %s escalation at %s does not exceed tied amount %s: %w",
			tb.ID, top, tb.TiedAmount, auctionerr.ErrValidation)
	}
	seats := make([]repository.TiebreakerSeat, n)
	for i, c := range submitted[:n] {
		seats[i] = repository.TiebreakerSeat{TeamID: c.TeamID, OriginalSubmittedAt: c.At}
	}
	return Decision{Outcome: OutcomeEscalate, Seats: seats, TiedAmount: top}, nil
}

// sortCandidates orders by amount desc, then time asc, then team id so the
// ranking is total.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if c := cs[i].Amount.Cmp(cs[j].Amount); c != 0 {
			return c > 0
		}
		if !cs[i].At.Equal(cs[j].At) {
			return cs[i].At.Before(cs[j].At)
		}
		return bytes.Compare(cs[i].TeamID[:], cs[j].TeamID[:]) < 0
	})
}
