package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	engine *Engine
	store  *testutil.MemStore
	events *testutil.EventRecorder
	clock  *clockwork.FakeClock
	season uuid.UUID
	round  *models.Round
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		store:  testutil.NewMemStore(),
		events: &testutil.EventRecorder{},
		clock:  clockwork.NewFakeClockAt(t0),
		season: uuid.New(),
	}
	tiebreaks := tiebreak.NewApp(f.store, f.events, f.clock, tiebreak.DefaultConfig())
	f.engine = NewEngine(f.store, tiebreaks, f.events, f.clock, Config{Policy: policy, Workers: 2})

	var err error
	f.round, err = f.store.CreateRound(context.Background(), repository.CreateRoundRequest{
		ID:        uuid.New(),
		SeasonID:  f.season,
		Position:  "GK",
		Type:      models.RoundTypeBulk,
		StartTime: t0.Add(-time.Hour),
		EndTime:   t0,
		CreatedAt: t0.Add(-time.Hour),
	})
	assert.NoError(t, err)
	return f
}

func (f *fixture) team(budget string) uuid.UUID {
	return f.store.AddTeam(f.season, "team", d(budget), 15).TeamID
}

func (f *fixture) bid(player, team uuid.UUID, amount string, offset time.Duration) {
	f.store.PutBid(f.round.ID, player, team, d(amount), t0.Add(-time.Hour+offset))
}

func (f *fixture) outcomeFor(t *testing.T, player uuid.UUID) map[uuid.UUID]bool {
	t.Helper()
	bids, err := f.store.ListBidsForPlayer(context.Background(), f.round.ID, player)
	assert.NoError(t, err)
	out := make(map[uuid.UUID]bool)
	for _, b := range bids {
		assert.NotNil(t, b.IsWinning)
		out[b.TeamID] = *b.IsWinning
	}
	return out
}

func TestAllocateRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PolicyUnsold)
	a, b, c := f.team("500"), f.team("500"), f.team("500")
	gk1 := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
	gk2 := f.store.AddPlayer(f.season, "Keeper Two", "GK").ID

	f.bid(gk1, a, "100", time.Minute)
	f.bid(gk1, b, "90.50", 2*time.Minute)
	f.bid(gk2, a, "40", time.Minute)
	f.bid(gk2, b, "40", 2*time.Minute)
	f.bid(gk2, c, "35", 3*time.Minute)

	report, err := f.engine.AllocateRound(ctx, f.round)
	assert.NoError(t, err)
	check.Equal(t, 1, report.Count(OutcomeAllocated))
	check.Equal(t, 1, report.Count(OutcomeTiebreakPending))

	alloc, err := f.store.GetAllocationForPlayer(ctx, gk1, f.season)
	assert.NoError(t, err)
	check.Equal(t, a, alloc.TeamID)
	check.Equal(t, "100.00", alloc.Amount.StringFixed(2))

	budget, err := f.store.GetTeamBudget(ctx, a, f.season)
	assert.NoError(t, err)
	check.Equal(t, "400.00", budget.RemainingBudget.StringFixed(2))
	check.Equal(t, 1, budget.SquadUsed)

	check.Equal(t, map[uuid.UUID]bool{a: true, b: false}, f.outcomeFor(t, gk1))

	tb, err := f.store.GetActiveTiebreakerForPlayer(ctx, f.round.ID, gk2)
	assert.NoError(t, err)
	check.True(t, tb.TiedAmount.Equal(d("40")))
	check.Equal(t, []uuid.UUID{a, b}, tb.TeamIDs())

	check.Equal(t, 1, len(f.events.OfType(events.EventTypePlayerAllocated)))
	check.Equal(t, 1, len(f.events.OfType(events.EventTypeTiebreakerOpened)))

	// a second pass changes nothing
	again, err := f.engine.AllocateRound(ctx, f.round)
	assert.NoError(t, err)
	check.Equal(t, 0, again.Count(OutcomeAllocated))
	check.Equal(t, 1, again.Count(OutcomeSkipped))
	check.Equal(t, 1, again.Count(OutcomeTiebreakPending))
	check.Equal(t, 1, len(f.store.Allocations()))
	check.Equal(t, 1, len(f.events.OfType(events.EventTypeTiebreakerOpened)))
}

func TestRecheckPolicy(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, policy Policy) (*fixture, uuid.UUID, uuid.UUID, uuid.UUID) {
		f := newFixture(t, policy)
		rich, poor := f.team("500"), f.team("50")
		player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
		// the poor team spent its budget after bidding
		f.bid(player, poor, "80", time.Minute)
		f.bid(player, rich, "70", 2*time.Minute)
		return f, player, rich, poor
	}

	t.Run("unsold", func(t *testing.T) {
		f, player, rich, poor := setup(t, PolicyUnsold)
		report, err := f.engine.AllocateRound(ctx, f.round)
		assert.NoError(t, err)
		check.Equal(t, 1, report.Count(OutcomeUnsold))
		check.Equal(t, 0, len(f.store.Allocations()))
		check.Equal(t, map[uuid.UUID]bool{rich: false, poor: false}, f.outcomeFor(t, player))
		check.Equal(t, 1, len(f.events.OfType(events.EventTypePlayerUnsold)))

		budget, err := f.store.GetTeamBudget(ctx, poor, f.season)
		assert.NoError(t, err)
		check.Equal(t, "50.00", budget.RemainingBudget.StringFixed(2))
	})

	t.Run("next highest", func(t *testing.T) {
		f, player, rich, poor := setup(t, PolicyNextHighest)
		report, err := f.engine.AllocateRound(ctx, f.round)
		assert.NoError(t, err)
		check.Equal(t, 1, report.Count(OutcomeAllocated))

		alloc, err := f.store.GetAllocationForPlayer(ctx, player, f.season)
		assert.NoError(t, err)
		check.Equal(t, rich, alloc.TeamID)
		check.Equal(t, "70.00", alloc.Amount.StringFixed(2))
		check.Equal(t, map[uuid.UUID]bool{rich: true, poor: false}, f.outcomeFor(t, player))
	})

	t.Run("squad full", func(t *testing.T) {
		f := newFixture(t, PolicyUnsold)
		full, other := f.team("500"), f.team("500")
		f.store.SetSquadUsed(full, f.season, 15)
		player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
		f.bid(player, full, "80", time.Minute)
		f.bid(player, other, "70", 2*time.Minute)

		report, err := f.engine.AllocateRound(ctx, f.round)
		assert.NoError(t, err)
		check.Equal(t, 1, report.Count(OutcomeUnsold))
		check.Equal(t, 0, len(f.store.Allocations()))
	})
}

func TestAllocateRoundFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, PolicyUnsold)
	a := f.team("500")
	player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
	f.bid(player, a, "10", 0)

	boom := errors.New("connection reset")
	f.store.FailOn("CommitAllocation", boom)
	_, err := f.engine.AllocateRound(ctx, f.round)
	check.True(t, errors.Is(err, boom))
	check.Equal(t, 0, len(f.store.Allocations()))

	f.store.FailOn("CommitAllocation", nil)
	report, err := f.engine.AllocateRound(ctx, f.round)
	assert.NoError(t, err)
	check.Equal(t, 1, report.Count(OutcomeAllocated))
}

func TestAwardTiebreak(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, f *fixture, player uuid.UUID, teams ...uuid.UUID) *models.Tiebreaker {
		var seats []repository.TiebreakerSeat
		for i, team := range teams {
			f.bid(player, team, "100", time.Duration(i)*time.Minute)
			seats = append(seats, repository.TiebreakerSeat{TeamID: team, OriginalSubmittedAt: t0.Add(time.Duration(i) * time.Minute)})
		}
		tb, _, err := f.store.OpenTiebreaker(ctx, repository.OpenTiebreakerRequest{
			RoundID:    f.round.ID,
			PlayerID:   player,
			TiedAmount: d("100"),
			Deadline:   t0.Add(10 * time.Minute),
			CreatedAt:  t0,
			Seats:      seats,
		})
		assert.NoError(t, err)
		return tb
	}

	t.Run("winner", func(t *testing.T) {
		f := newFixture(t, PolicyUnsold)
		a, b := f.team("500"), f.team("500")
		player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
		tb := open(t, f, player, a, b)

		out, err := f.engine.AwardTiebreak(ctx, f.round, &tiebreak.Resolution{
			Tiebreaker: tb,
			Ranking: []tiebreak.Candidate{
				{TeamID: b, Amount: d("130")},
				{TeamID: a, Amount: d("120")},
			},
		})
		assert.NoError(t, err)
		check.Equal(t, OutcomeAllocated, out.Kind)
		check.Equal(t, b, out.Allocation.TeamID)
		check.Equal(t, tb.ID, *out.Allocation.TiebreakerID)
		check.Equal(t, models.TiebreakerStatusCompleted, out.Tiebreaker.Status)
		check.Equal(t, b, *out.Tiebreaker.WinnerTeamID)
		check.Equal(t, map[uuid.UUID]bool{a: false, b: true}, f.outcomeFor(t, player))

		// the second resolver loses the race
		again, err := f.engine.AwardTiebreak(ctx, f.round, &tiebreak.Resolution{
			Tiebreaker: tb,
			Ranking:    []tiebreak.Candidate{{TeamID: a, Amount: d("120")}},
		})
		assert.NoError(t, err)
		check.Equal(t, OutcomeSkipped, again.Kind)
		check.Equal(t, 1, len(f.store.Allocations()))
	})

	t.Run("winner cannot pay", func(t *testing.T) {
		for _, tt := range []struct {
			policy Policy
			want   OutcomeKind
		}{
			{PolicyUnsold, OutcomeUnsold},
			{PolicyNextHighest, OutcomeAllocated},
		} {
			t.Run(string(tt.policy), func(t *testing.T) {
				f := newFixture(t, tt.policy)
				a, b := f.team("500"), f.team("110")
				player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
				tb := open(t, f, player, a, b)

				out, err := f.engine.AwardTiebreak(ctx, f.round, &tiebreak.Resolution{
					Tiebreaker: tb,
					Ranking: []tiebreak.Candidate{
						{TeamID: b, Amount: d("130")},
						{TeamID: a, Amount: d("120")},
					},
				})
				assert.NoError(t, err)
				check.Equal(t, tt.want, out.Kind)
				check.Equal(t, models.TiebreakerStatusCompleted, out.Tiebreaker.Status)

				_, err = f.store.GetActiveTiebreakerForPlayer(ctx, f.round.ID, player)
				check.Error(t, err)
			})
		}
	})

	t.Run("entries changed after the decision", func(t *testing.T) {
		f := newFixture(t, PolicyUnsold)
		a, b := f.team("500"), f.team("500")
		player := f.store.AddPlayer(f.season, "Keeper One", "GK").ID
		tb := open(t, f, player, a, b)

		_, err := f.store.SubmitTiebreakerEntry(ctx, repository.SubmitTiebreakerEntryRequest{
			TiebreakerID: tb.ID,
			TeamID:       b,
			Amount:       d("130"),
			SubmittedAt:  t0.Add(time.Minute),
		})
		assert.NoError(t, err)

		out, err := f.engine.AwardTiebreak(ctx, f.round, &tiebreak.Resolution{
			Tiebreaker: tb,
			Ranking:    []tiebreak.Candidate{{TeamID: a, Amount: d("120")}},
		})
		assert.NoError(t, err)
		check.Equal(t, OutcomeTiebreakPending, out.Kind)
		check.Equal(t, 0, len(f.store.Allocations()))

		still, err := f.store.GetActiveTiebreakerForPlayer(ctx, f.round.ID, player)
		assert.NoError(t, err)
		check.Equal(t, tb.ID, still.ID)
	})

	t.Run("escalated", func(t *testing.T) {
		f := newFixture(t, PolicyUnsold)
		child := &models.Tiebreaker{ID: uuid.New()}
		out, err := f.engine.AwardTiebreak(ctx, f.round, &tiebreak.Resolution{
			Tiebreaker: &models.Tiebreaker{ID: uuid.New()},
			Escalated:  true,
			Child:      child,
		})
		assert.NoError(t, err)
		check.Equal(t, OutcomeTiebreakPending, out.Kind)
		check.Equal(t, child.ID, out.Tiebreaker.ID)
	})
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	assert.NoError(t, err)
	check.Equal(t, PolicyUnsold, p)

	p, err = ParsePolicy(" next_highest ")
	assert.NoError(t, err)
	check.Equal(t, PolicyNextHighest, p)

	_, err = ParsePolicy("coin_flip")
	check.Error(t, err)
}
