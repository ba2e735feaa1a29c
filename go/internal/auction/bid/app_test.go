package bid

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

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	app    *App
	store  *testutil.MemStore
	clock  *clockwork.FakeClock
	season uuid.UUID
	round  *models.Round
	player *models.Player
	team   *models.TeamBudget
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  testutil.NewMemStore(),
		clock:  clockwork.NewFakeClockAt(t0),
		season: uuid.New(),
	}
	f.app = NewApp(f.store, f.clock)
	f.player = f.store.AddPlayer(f.season, "Keeper One", "GK")
	f.team = f.store.AddTeam(f.season, "Reds", decimal.NewFromInt(50), 15)

	var err error
	f.round, err = f.store.CreateRound(context.Background(), repository.CreateRoundRequest{
		ID:        uuid.New(),
		SeasonID:  f.season,
		Position:  "GK",
		Type:      models.RoundTypeBulk,
		StartTime: t0,
		EndTime:   t0.Add(time.Hour),
		MinBid:    decimal.NewFromInt(1),
		CreatedAt: t0,
	})
	assert.NoError(t, err)
	return f
}

func (f *fixture) req(amount string) SubmitBidRequest {
	return SubmitBidRequest{
		RoundID:  f.round.ID,
		PlayerID: f.player.ID,
		TeamID:   f.team.TeamID,
		Amount:   decimal.RequireFromString(amount),
	}
}

func TestSubmitBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stored, err := f.app.SubmitBid(ctx, f.req("20.50"))
	assert.NoError(t, err)
	check.Equal(t, "20.50", stored.Amount.StringFixed(2))
	check.True(t, stored.SubmittedAt.Equal(t0))
	check.True(t, stored.IsWinning == nil)

	// resubmission replaces the amount and the timestamp
	f.clock.Advance(time.Minute)
	_, err = f.app.SubmitBid(ctx, f.req("30"))
	assert.NoError(t, err)

	bids, err := f.app.ListBidsForPlayer(ctx, f.round.ID, f.player.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(bids))
	check.True(t, bids[0].Amount.Equal(decimal.NewFromInt(30)))
	check.True(t, bids[0].SubmittedAt.Equal(t0.Add(time.Minute)))

	mine, err := f.app.ListBidsForTeam(ctx, f.round.ID, f.team.TeamID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(mine))
}

func TestSubmitBidInsufficientBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.app.SubmitBid(ctx, f.req("60"))
	check.True(t, errors.Is(err, auctionerr.ErrInsufficientBudget))

	bids, err := f.app.ListBidsForPlayer(ctx, f.round.ID, f.player.ID)
	assert.NoError(t, err)
	check.Equal(t, 0, len(bids))

	// the whole remaining budget is a valid bid
	_, err = f.app.SubmitBid(ctx, f.req("50.00"))
	check.NoError(t, err)
}

func TestSubmitBidRejections(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func(f *fixture, req *SubmitBidRequest)
		want  error
	}{
		{"missing round", func(f *fixture, req *SubmitBidRequest) { req.RoundID = uuid.Nil }, auctionerr.ErrValidation},
		{"zero amount", func(f *fixture, req *SubmitBidRequest) { req.Amount = decimal.Zero }, auctionerr.ErrValidation},
		{"too many decimals", func(f *fixture, req *SubmitBidRequest) {
			req.Amount = decimal.RequireFromString("10.001")
		}, auctionerr.ErrValidation},
		{"unknown round", func(f *fixture, req *SubmitBidRequest) { req.RoundID = uuid.New() }, auctionerr.ErrNotFound},
		{"before the window", func(f *fixture, req *SubmitBidRequest) {
			f.clock.Advance(-time.Minute)
		}, auctionerr.ErrRoundNotActive},
		{"after the window", func(f *fixture, req *SubmitBidRequest) {
			f.clock.Advance(time.Hour)
		}, auctionerr.ErrRoundNotActive},
		{"below minimum", func(f *fixture, req *SubmitBidRequest) {
			req.Amount = decimal.RequireFromString("0.50")
		}, auctionerr.ErrValidation},
		{"wrong position", func(f *fixture, req *SubmitBidRequest) {
			req.PlayerID = f.store.AddPlayer(f.season, "Striker", "FWD").ID
		}, auctionerr.ErrValidation},
		{"other season", func(f *fixture, req *SubmitBidRequest) {
			req.PlayerID = f.store.AddPlayer(uuid.New(), "Keeper Two", "GK").ID
		}, auctionerr.ErrValidation},
		{"unknown team", func(f *fixture, req *SubmitBidRequest) { req.TeamID = uuid.New() }, auctionerr.ErrNotFound},
		{"squad full", func(f *fixture, req *SubmitBidRequest) {
			f.store.SetSquadUsed(f.team.TeamID, f.season, 15)
		}, auctionerr.ErrTeamNotEligible},
		{"already allocated", func(f *fixture, req *SubmitBidRequest) {
			_, err := f.store.CommitAllocation(context.Background(), repository.CommitAllocationRequest{
				RoundID:  uuid.New(),
				PlayerID: f.player.ID,
				SeasonID: f.season,
				TeamID:   f.store.AddTeam(f.season, "Blues", decimal.NewFromInt(100), 15).TeamID,
				Amount:   decimal.NewFromInt(10),
				At:       t0,
			})
			assert.NoError(t, err)
		}, auctionerr.ErrAlreadyAllocated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.req("10")
			tt.setup(f, &req)
			_, err := f.app.SubmitBid(ctx, req)
			check.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestSubmitBidSingleRound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	other := f.store.AddPlayer(f.season, "Keeper Two", "GK")

	single, err := f.store.CreateRound(ctx, repository.CreateRoundRequest{
		ID:        uuid.New(),
		SeasonID:  f.season,
		Position:  "DEF",
		Type:      models.RoundTypeSingle,
		PlayerID:  &other.ID,
		StartTime: t0,
		EndTime:   t0.Add(time.Hour),
		CreatedAt: t0,
	})
	assert.NoError(t, err)

	req := f.req("10")
	req.RoundID = single.ID
	_, err = f.app.SubmitBid(ctx, req)
	check.True(t, errors.Is(err, auctionerr.ErrValidation))
}

// closingStore runs onBudget between SubmitBid's checks and its write.
type closingStore struct {
	*testutil.MemStore
	onBudget func()
}

func (s *closingStore) GetTeamBudget(ctx context.Context, teamID, seasonID uuid.UUID) (*models.TeamBudget, error) {
	if s.onBudget != nil {
		s.onBudget()
	}
	return s.MemStore.GetTeamBudget(ctx, teamID, seasonID)
}

func TestSubmitBidRoundClosesMidway(t *testing.T) {
	ctx := context.Background()
	for name, closeRound := range map[string]func(f *fixture) error{
		"bidding closed": func(f *fixture) error {
			_, err := f.store.CloseBidding(ctx, f.round.ID, f.clock.Now())
			return err
		},
		"finalization claimed": func(f *fixture) error {
			_, err := f.store.BeginFinalizing(ctx, f.round.ID, f.clock.Now())
			return err
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.clock.Advance(time.Minute)
			store := &closingStore{MemStore: f.store}
			store.onBudget = func() { check.NoError(t, closeRound(f)) }
			app := NewApp(store, f.clock)

			_, err := app.SubmitBid(ctx, f.req("20"))
			check.True(t, errors.Is(err, auctionerr.ErrRoundNotActive))

			bids, err := f.store.ListBidsForPlayer(ctx, f.round.ID, f.player.ID)
			assert.NoError(t, err)
			check.Equal(t, 0, len(bids))
		})
	}
}

func TestUpsertBidKeepsSettledOutcome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.app.SubmitBid(ctx, f.req("20"))
	assert.NoError(t, err)

	_, err = f.store.CommitAllocation(ctx, repository.CommitAllocationRequest{
		RoundID:  f.round.ID,
		PlayerID: f.player.ID,
		SeasonID: f.season,
		TeamID:   f.team.TeamID,
		Amount:   decimal.NewFromInt(20),
		At:       t0,
	})
	assert.NoError(t, err)

	_, err = f.store.UpsertBid(ctx, repository.UpsertBidRequest{
		RoundID:     f.round.ID,
		PlayerID:    f.player.ID,
		TeamID:      f.team.TeamID,
		Amount:      decimal.NewFromInt(45),
		SubmittedAt: t0.Add(time.Minute),
	})
	check.True(t, errors.Is(err, auctionerr.ErrRoundNotActive))

	bids, err := f.store.ListBidsForPlayer(ctx, f.round.ID, f.player.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(bids))
	check.Equal(t, "20.00", bids[0].Amount.StringFixed(2))
	assert.NotNil(t, bids[0].IsWinning)
	check.True(t, *bids[0].IsWinning)
}
