package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/allocation"
	"github.com/mcdev12/leagueauction/go/internal/auction/bid"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/service"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/auth"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newServer(t *testing.T, store *testutil.MemStore, verifier *auth.Verifier) *httptest.Server {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	sink := &testutil.EventRecorder{}

	rounds := round.NewApp(store, clock)
	bids := bid.NewApp(store, clock)
	tiebreaks := tiebreak.NewApp(store, sink, clock, tiebreak.DefaultConfig())
	engine := allocation.NewEngine(store, tiebreaks, sink, clock, allocation.DefaultConfig())
	finalizer := finalize.NewFinalizer(rounds, engine, tiebreaks, store, sink, clock, finalize.Config{})

	mux := http.NewServeMux()
	mux.Handle(service.NewAuctionServiceHandler(
		service.NewAuctionService(rounds, bids, tiebreaks, finalizer, store, clock),
		connect.WithInterceptors(auth.NewInterceptor(verifier)),
	))
	mux.Handle(service.NewAdminServiceHandler(
		service.NewAdminService(rounds, finalizer, sink),
		connect.WithInterceptors(auth.NewInterceptor(verifier, auth.RoleCommittee, auth.RoleAdmin)),
	))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClientsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemStore()
	season := uuid.New()
	player := store.AddPlayer(season, "Marcus Hale", "GK")
	team := store.AddTeam(season, "Harbour Kings", decimal.NewFromInt(100), 5)

	verifier, err := auth.NewVerifier("test-secret", "")
	assert.NoError(t, err)
	server := newServer(t, store, verifier)

	teamToken, err := verifier.Issue("kings", auth.RoleTeam, team.TeamID.String(), time.Hour, time.Now())
	assert.NoError(t, err)
	adminToken, err := verifier.Issue("committee", auth.RoleCommittee, "", time.Hour, time.Now())
	assert.NoError(t, err)

	adminBase := NewBaseClientWithHTTP(server.URL, server.Client())
	adminBase.SetToken(adminToken)
	admin := NewAdminClient(adminBase)

	teamBase := NewBaseClientWithHTTP(server.URL, server.Client())
	teamBase.SetToken(teamToken)
	teams := NewAuctionClient(teamBase)

	r, err := admin.OpenRound(ctx, round.OpenRoundRequest{
		SeasonID: season,
		Position: "GK",
		Type:     models.RoundTypeBulk,
		EndTime:  t0.Add(time.Hour),
	})
	assert.NoError(t, err)
	check.Equal(t, models.RoundStatusActive, r.Status)

	active, err := teams.ListActiveRounds(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(active))
	check.Equal(t, r.ID, active[0].Round.ID)

	placed, err := teams.SubmitBid(ctx, r.ID, player.ID, decimal.NewFromInt(40))
	assert.NoError(t, err)
	check.Equal(t, team.TeamID, placed.TeamID)

	mine, err := teams.ListMyBids(ctx, r.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, len(mine))

	// sealed until the round completes
	_, err = teams.ListBidsForPlayer(ctx, r.ID, player.ID)
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = NewAdminClient(teamBase).ForceFinalize(ctx, r.ID)
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	res, err := admin.ForceFinalize(ctx, r.ID)
	assert.NoError(t, err)
	check.True(t, res.Finalized)
	check.Equal(t, models.RoundStatusCompleted, res.Status)

	got, err := teams.GetRound(ctx, r.ID)
	assert.NoError(t, err)
	check.Equal(t, models.RoundStatusCompleted, got.Round.Round.Status)
	assert.Equal(t, 1, len(got.Allocations))
	check.Equal(t, team.TeamID, got.Allocations[0].TeamID)
	check.True(t, got.Allocations[0].Amount.Equal(decimal.NewFromInt(40)))

	stuck, err := admin.ListStuckRounds(ctx, 0)
	assert.NoError(t, err)
	check.Equal(t, 0, len(stuck))
}

func TestClientWithoutToken(t *testing.T) {
	store := testutil.NewMemStore()
	verifier, err := auth.NewVerifier("test-secret", "")
	assert.NoError(t, err)
	server := newServer(t, store, verifier)

	anon := NewAuctionClient(NewBaseClientWithHTTP(server.URL, server.Client()))
	_, err = anon.ListActiveRounds(context.Background())
	check.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}
