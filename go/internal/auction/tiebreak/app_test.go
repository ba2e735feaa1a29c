package tiebreak

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
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/testutil"
)

type fixture struct {
	app    *App
	store  *testutil.MemStore
	events *testutil.EventRecorder
	clock  *clockwork.FakeClock
	round  *models.Round
	player *models.Player
	teams  []*models.TeamBudget
}

func newFixture(t *testing.T, teams int) *fixture {
	t.Helper()
	f := &fixture{
		store:  testutil.NewMemStore(),
		events: &testutil.EventRecorder{},
		clock:  clockwork.NewFakeClockAt(t0),
	}
	f.app = NewApp(f.store, f.events, f.clock, Config{})
	season := uuid.New()
	f.player = f.store.AddPlayer(season, "Keeper One", "GK")
	for i := 0; i < teams; i++ {
		f.teams = append(f.teams, f.store.AddTeam(season, "team", decimal.NewFromInt(200), 15))
	}
	var err error
	f.round, err = f.store.CreateRound(context.Background(), repository.CreateRoundRequest{
		ID:        uuid.New(),
		SeasonID:  season,
		Position:  "GK",
		Type:      models.RoundTypeBulk,
		StartTime: t0.Add(-time.Hour),
		EndTime:   t0,
		CreatedAt: t0.Add(-time.Hour),
	})
	assert.NoError(t, err)
	return f
}

func (f *fixture) open(t *testing.T, tied string) *models.Tiebreaker {
	t.Helper()
	var seats []repository.TiebreakerSeat
	for i, team := range f.teams {
		seats = append(seats, repository.TiebreakerSeat{TeamID: team.TeamID, OriginalSubmittedAt: t0.Add(time.Duration(i-10) * time.Minute)})
	}
	tb, created, err := f.app.OpenTiebreaker(context.Background(), OpenRequest{
		RoundID:    f.round.ID,
		PlayerID:   f.player.ID,
		Seats:      seats,
		TiedAmount: d(tied),
	})
	assert.NoError(t, err)
	assert.True(t, created)
	return tb
}

func (f *fixture) submit(tb *models.Tiebreaker, team int, amount string) error {
	_, err := f.app.SubmitTiebreakerBid(context.Background(), SubmitRequest{
		TiebreakerID: tb.ID,
		TeamID:       f.teams[team].TeamID,
		Amount:       d(amount),
	})
	return err
}

func TestOpenTiebreaker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2)
	tb := f.open(t, "100")

	check.Equal(t, models.TiebreakerStatusActive, tb.Status)
	check.True(t, tb.Deadline.Equal(t0.Add(10*time.Minute)))
	check.Equal(t, 2, len(tb.Entries))
	check.Equal(t, 1, len(f.events.OfType(events.EventTypeTiebreakerOpened)))

	// a second open for the same player returns the live one
	again, created, err := f.app.OpenTiebreaker(ctx, OpenRequest{
		RoundID:    f.round.ID,
		PlayerID:   f.player.ID,
		Seats:      []repository.TiebreakerSeat{{TeamID: uuid.New()}, {TeamID: uuid.New()}},
		TiedAmount: d("100"),
	})
	assert.NoError(t, err)
	check.False(t, created)
	check.Equal(t, tb.ID, again.ID)
	check.Equal(t, 1, len(f.events.OfType(events.EventTypeTiebreakerOpened)))

	dup := uuid.New()
	_, _, err = f.app.OpenTiebreaker(ctx, OpenRequest{
		RoundID:    f.round.ID,
		PlayerID:   uuid.New(),
		Seats:      []repository.TiebreakerSeat{{TeamID: dup}, {TeamID: dup}},
		TiedAmount: d("100"),
	})
	check.True(t, errors.Is(err, auctionerr.ErrValidation))

	_, _, err = f.app.OpenTiebreaker(ctx, OpenRequest{
		RoundID:    f.round.ID,
		PlayerID:   uuid.New(),
		Seats:      []repository.TiebreakerSeat{{TeamID: dup}},
		TiedAmount: d("100"),
	})
	check.True(t, errors.Is(err, auctionerr.ErrValidation))
}

func TestSubmitTiebreakerBid(t *testing.T) {
	f := newFixture(t, 2)
	tb := f.open(t, "100")
	outsider := f.store.AddTeam(f.round.SeasonID, "outsider", decimal.NewFromInt(500), 15)

	check.True(t, errors.Is(f.submit(tb, 0, "100.50"), auctionerr.ErrValidation))
	check.True(t, errors.Is(f.submit(tb, 0, "201"), auctionerr.ErrInsufficientBudget))
	check.NoError(t, f.submit(tb, 0, "101"))
	check.NoError(t, f.submit(tb, 0, "120"))

	_, err := f.app.SubmitTiebreakerBid(context.Background(), SubmitRequest{
		TiebreakerID: tb.ID,
		TeamID:       outsider.TeamID,
		Amount:       d("150"),
	})
	check.True(t, errors.Is(err, auctionerr.ErrTeamNotEligible))

	got, err := f.app.GetTiebreaker(context.Background(), tb.ID)
	assert.NoError(t, err)
	check.True(t, got.Entries[0].NewAmount.Equal(d("120")))
	check.False(t, got.Entries[1].Submitted())

	f.clock.Advance(10 * time.Minute)
	check.True(t, errors.Is(f.submit(tb, 1, "130"), auctionerr.ErrStateConflict))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("pending until ready", func(t *testing.T) {
		f := newFixture(t, 2)
		tb := f.open(t, "100")
		assert.NoError(t, f.submit(tb, 0, "110"))

		_, err := f.app.Resolve(ctx, tb.ID)
		check.True(t, errors.Is(err, auctionerr.ErrTiebreakerPending))

		f.clock.Advance(10 * time.Minute)
		res, err := f.app.Resolve(ctx, tb.ID)
		assert.NoError(t, err)
		check.False(t, res.Escalated)
		check.Equal(t, f.teams[0].TeamID, res.Winner().TeamID)
	})

	t.Run("winner once all submitted", func(t *testing.T) {
		f := newFixture(t, 2)
		tb := f.open(t, "100")
		assert.NoError(t, f.submit(tb, 0, "120"))
		assert.NoError(t, f.submit(tb, 1, "110"))

		res, err := f.app.Resolve(ctx, tb.ID)
		assert.NoError(t, err)
		check.Equal(t, f.teams[0].TeamID, res.Winner().TeamID)
		check.Equal(t, 2, len(res.Ranking))

		// a winner decision leaves the tiebreaker for the allocation engine to settle
		got, err := f.app.GetTiebreaker(ctx, tb.ID)
		assert.NoError(t, err)
		check.Equal(t, models.TiebreakerStatusActive, got.Status)
	})

	t.Run("escalation opens a child", func(t *testing.T) {
		f := newFixture(t, 3)
		tb := f.open(t, "100")
		assert.NoError(t, f.submit(tb, 0, "115"))
		assert.NoError(t, f.submit(tb, 1, "115"))
		assert.NoError(t, f.submit(tb, 2, "105"))

		res, err := f.app.Resolve(ctx, tb.ID)
		assert.NoError(t, err)
		check.True(t, res.Escalated)
		check.Equal(t, models.TiebreakerStatusCompleted, res.Tiebreaker.Status)
		assert.NotNil(t, res.Child)
		check.True(t, res.Child.TiedAmount.Equal(d("115")))
		check.Equal(t, 2, len(res.Child.Entries))
		check.Equal(t, tb.ID, *res.Child.ParentID)

		active, err := f.app.ListActiveForRound(ctx, f.round.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(active))
		check.Equal(t, res.Child.ID, active[0].ID)

		check.Equal(t, 1, len(f.events.OfType(events.EventTypeTiebreakerResolved)))
		check.Equal(t, 2, len(f.events.OfType(events.EventTypeTiebreakerOpened)))

		_, err = f.app.Resolve(ctx, tb.ID)
		check.True(t, errors.Is(err, auctionerr.ErrStateConflict))
	})
}
