package service

import (
	"context"
	"encoding/json"
	"errors"
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
	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/bid"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/auth"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/testutil"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type harness struct {
	store    *testutil.MemStore
	events   *testutil.EventRecorder
	clock    *clockwork.FakeClock
	verifier *auth.Verifier
	server   *httptest.Server
	season   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  testutil.NewMemStore(),
		events: &testutil.EventRecorder{},
		clock:  clockwork.NewFakeClockAt(t0),
		season: uuid.New(),
	}
	v, err := auth.NewVerifier("test-secret", "")
	assert.NoError(t, err)
	h.verifier = v

	rounds := round.NewApp(h.store, h.clock)
	bids := bid.NewApp(h.store, h.clock)
	tiebreaks := tiebreak.NewApp(h.store, h.events, h.clock, tiebreak.DefaultConfig())
	engine := allocation.NewEngine(h.store, tiebreaks, h.events, h.clock, allocation.DefaultConfig())
	finalizer := finalize.NewFinalizer(rounds, engine, tiebreaks, h.store, h.events, h.clock, finalize.Config{})

	mux := http.NewServeMux()
	mux.Handle(NewAuctionServiceHandler(
		NewAuctionService(rounds, bids, tiebreaks, finalizer, h.store, h.clock),
		connect.WithInterceptors(auth.NewPublicInterceptor(v, AuctionServicePublicProcedures)),
	))
	mux.Handle(NewAdminServiceHandler(
		NewAdminService(rounds, finalizer, h.events),
		connect.WithInterceptors(auth.NewInterceptor(v, auth.RoleCommittee, auth.RoleAdmin)),
	))
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) token(t *testing.T, role auth.Role, teamID uuid.UUID) string {
	t.Helper()
	team := ""
	if teamID != uuid.Nil {
		team = teamID.String()
	}
	tok, err := h.verifier.Issue("tester", role, team, time.Hour, time.Now())
	assert.NoError(t, err)
	return tok
}

// call invokes one procedure as the holder of token. An empty token sends no header.
func call[Req, Res any](t *testing.T, h *harness, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](h.server.Client(), h.server.URL+procedure, connect.WithCodec(JSONCodec{}))
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)
	team := h.store.AddTeam(h.season, "A", d("100"), 10).TeamID
	open := &round.OpenRoundRequest{SeasonID: h.season, Position: "GK", Type: models.RoundTypeBulk, EndTime: t0.Add(time.Hour)}

	_, err := call[round.OpenRoundRequest, RoundResponse](t, h, AdminServiceOpenRoundProcedure, "", open)
	check.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = call[round.OpenRoundRequest, RoundResponse](t, h, AdminServiceOpenRoundProcedure, h.token(t, auth.RoleTeam, team), open)
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = call[ListActiveRoundsRequest, ListRoundsResponse](t, h, AuctionServiceListActiveRoundsProcedure, "not-a-jwt", &ListActiveRoundsRequest{})
	check.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	// officials can read but not bid
	committee := h.token(t, auth.RoleCommittee, uuid.Nil)
	_, err = call[ListActiveRoundsRequest, ListRoundsResponse](t, h, AuctionServiceListActiveRoundsProcedure, committee, &ListActiveRoundsRequest{})
	check.NoError(t, err)
	_, err = call[SubmitBidRequest, SubmitBidResponse](t, h, AuctionServiceSubmitBidProcedure, committee,
		&SubmitBidRequest{RoundID: uuid.New(), PlayerID: uuid.New(), Amount: d("1")})
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
}

func TestAnonymousRoundReads(t *testing.T) {
	h := newHarness(t)
	committee := h.token(t, auth.RoleCommittee, uuid.Nil)
	opened, err := call[round.OpenRoundRequest, RoundResponse](t, h, AdminServiceOpenRoundProcedure, committee,
		&round.OpenRoundRequest{SeasonID: h.season, Position: "GK", Type: models.RoundTypeBulk, EndTime: t0.Add(time.Hour)})
	assert.NoError(t, err)

	listed, err := call[ListActiveRoundsRequest, ListRoundsResponse](t, h, AuctionServiceListActiveRoundsProcedure, "", &ListActiveRoundsRequest{})
	assert.NoError(t, err)
	check.Equal(t, 1, len(listed.Rounds))

	got, err := call[GetRoundRequest, GetRoundResponse](t, h, AuctionServiceGetRoundProcedure, "", &GetRoundRequest{RoundID: opened.Round.ID})
	assert.NoError(t, err)
	check.Equal(t, opened.Round.ID, got.Round.Round.ID)

	// everything else still needs a token
	_, err = call[ListMyBidsRequest, ListBidsResponse](t, h, AuctionServiceListMyBidsProcedure, "", &ListMyBidsRequest{RoundID: opened.Round.ID})
	check.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	_, err = call[SubmitBidRequest, SubmitBidResponse](t, h, AuctionServiceSubmitBidProcedure, "",
		&SubmitBidRequest{RoundID: opened.Round.ID, PlayerID: uuid.New(), Amount: d("1")})
	check.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
}

func TestAuctionFlow(t *testing.T) {
	h := newHarness(t)
	keeper := h.store.AddPlayer(h.season, "Keeper", "GK").ID
	a := h.store.AddTeam(h.season, "A", d("500"), 15).TeamID
	b := h.store.AddTeam(h.season, "B", d("500"), 15).TeamID
	c := h.store.AddTeam(h.season, "C", d("500"), 15).TeamID
	admin := h.token(t, auth.RoleAdmin, uuid.Nil)
	tokA, tokB, tokC := h.token(t, auth.RoleTeam, a), h.token(t, auth.RoleTeam, b), h.token(t, auth.RoleTeam, c)

	opened, err := call[round.OpenRoundRequest, RoundResponse](t, h, AdminServiceOpenRoundProcedure, admin, &round.OpenRoundRequest{
		SeasonID: h.season,
		Position: "GK",
		Type:     models.RoundTypeBulk,
		EndTime:  t0.Add(time.Hour),
	})
	assert.NoError(t, err)
	roundID := opened.Round.ID
	check.Equal(t, 1, len(h.events.OfType(events.EventTypeRoundOpened)))

	submit := func(token string, amount string) error {
		_, err := call[SubmitBidRequest, SubmitBidResponse](t, h, AuctionServiceSubmitBidProcedure, token,
			&SubmitBidRequest{RoundID: roundID, PlayerID: keeper, Amount: d(amount)})
		return err
	}
	assert.NoError(t, submit(tokA, "100"))
	assert.NoError(t, submit(tokB, "100"))
	assert.NoError(t, submit(tokC, "90"))

	check.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(submit(tokC, "600")))
	check.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(submit(tokC, "0")))

	mine, err := call[ListMyBidsRequest, ListBidsResponse](t, h, AuctionServiceListMyBidsProcedure, tokA, &ListMyBidsRequest{RoundID: roundID})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(mine.Bids))
	check.True(t, d("100").Equal(mine.Bids[0].Amount))

	listPlayer := &ListBidsForPlayerRequest{RoundID: roundID, PlayerID: keeper}
	_, err = call[ListBidsForPlayerRequest, ListBidsResponse](t, h, AuctionServiceListBidsForPlayerProcedure, tokA, listPlayer)
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))
	sealed, err := call[ListBidsForPlayerRequest, ListBidsResponse](t, h, AuctionServiceListBidsForPlayerProcedure, admin, listPlayer)
	assert.NoError(t, err)
	check.Equal(t, 3, len(sealed.Bids))

	// the read after expiry settles the round and opens a tiebreaker
	h.clock.Advance(time.Hour)
	active, err := call[ListActiveRoundsRequest, ListRoundsResponse](t, h, AuctionServiceListActiveRoundsProcedure, tokC, &ListActiveRoundsRequest{})
	assert.NoError(t, err)
	check.Equal(t, 0, len(active.Rounds))

	got, err := call[GetRoundRequest, GetRoundResponse](t, h, AuctionServiceGetRoundProcedure, tokC, &GetRoundRequest{RoundID: roundID})
	assert.NoError(t, err)
	check.Equal(t, round.PhaseFinalizing, got.Round.Phase)
	check.Equal(t, 0, len(got.Allocations))

	opens := h.events.OfType(events.EventTypeTiebreakerOpened)
	assert.Equal(t, 1, len(opens))
	var payload events.TiebreakerOpenedPayload
	assert.NoError(t, json.Unmarshal(opens[0].Payload, &payload))
	tbID := uuid.MustParse(payload.TiebreakerID)

	_, err = call[GetTiebreakerRequest, GetTiebreakerResponse](t, h, AuctionServiceGetTiebreakerProcedure, tokC, &GetTiebreakerRequest{TiebreakerID: tbID})
	check.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = call[SubmitTiebreakerBidRequest, SubmitTiebreakerBidResponse](t, h, AuctionServiceSubmitTiebreakerBidProcedure, tokA,
		&SubmitTiebreakerBidRequest{TiebreakerID: tbID, Amount: d("120")})
	assert.NoError(t, err)

	// B sees its own seat only
	asB, err := call[GetTiebreakerRequest, GetTiebreakerResponse](t, h, AuctionServiceGetTiebreakerProcedure, tokB, &GetTiebreakerRequest{TiebreakerID: tbID})
	assert.NoError(t, err)
	for _, e := range asB.Tiebreaker.Entries {
		check.True(t, e.NewAmount == nil)
	}

	_, err = call[SubmitTiebreakerBidRequest, SubmitTiebreakerBidResponse](t, h, AuctionServiceSubmitTiebreakerBidProcedure, tokB,
		&SubmitTiebreakerBidRequest{TiebreakerID: tbID, Amount: d("110")})
	assert.NoError(t, err)

	// the last tied bid settles the round without waiting for the deadline
	got, err = call[GetRoundRequest, GetRoundResponse](t, h, AuctionServiceGetRoundProcedure, tokC, &GetRoundRequest{RoundID: roundID})
	assert.NoError(t, err)
	check.Equal(t, models.RoundStatusCompleted, got.Round.Round.Status)
	assert.Equal(t, 1, len(got.Allocations))
	check.Equal(t, a, got.Allocations[0].TeamID)
	check.True(t, d("120").Equal(got.Allocations[0].Amount))

	settled, err := call[ListBidsForPlayerRequest, ListBidsResponse](t, h, AuctionServiceListBidsForPlayerProcedure, tokC, listPlayer)
	assert.NoError(t, err)
	check.Equal(t, 3, len(settled.Bids))
}

func TestAdminRecovery(t *testing.T) {
	h := newHarness(t)
	keeper := h.store.AddPlayer(h.season, "Keeper", "GK").ID
	a := h.store.AddTeam(h.season, "A", d("500"), 15).TeamID
	committee := h.token(t, auth.RoleCommittee, uuid.Nil)

	opened, err := call[round.OpenRoundRequest, RoundResponse](t, h, AdminServiceOpenRoundProcedure, committee, &round.OpenRoundRequest{
		SeasonID: h.season,
		Position: "GK",
		Type:     models.RoundTypeBulk,
		EndTime:  t0.Add(time.Hour),
	})
	assert.NoError(t, err)
	roundID := opened.Round.ID
	_, err = call[SubmitBidRequest, SubmitBidResponse](t, h, AuctionServiceSubmitBidProcedure, h.token(t, auth.RoleTeam, a),
		&SubmitBidRequest{RoundID: roundID, PlayerID: keeper, Amount: d("40")})
	assert.NoError(t, err)

	h.store.FailOn("CommitAllocation", errors.New("connection reset"))
	_, err = call[RoundIDRequest, FinalizeResponse](t, h, AdminServiceForceFinalizeProcedure, committee, &RoundIDRequest{RoundID: roundID})
	check.Equal(t, connect.CodeInternal, connect.CodeOf(err))

	stuck, err := call[ListStuckRoundsRequest, ListRoundsResponse](t, h, AdminServiceListStuckRoundsProcedure, committee, &ListStuckRoundsRequest{})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(stuck.Rounds))
	check.Equal(t, roundID, stuck.Rounds[0].Round.ID)

	_, err = call[ListStuckRoundsRequest, ListRoundsResponse](t, h, AdminServiceListStuckRoundsProcedure, committee, &ListStuckRoundsRequest{OlderThanSeconds: -1})
	check.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	h.store.FailOn("CommitAllocation", nil)
	reset, err := call[RoundIDRequest, RoundResponse](t, h, AdminServiceResetStuckRoundProcedure, committee, &RoundIDRequest{RoundID: roundID})
	assert.NoError(t, err)
	check.Equal(t, models.RoundStatusActive, reset.Round.Status)

	_, err = call[RoundIDRequest, RoundResponse](t, h, AdminServiceResetStuckRoundProcedure, committee, &RoundIDRequest{RoundID: roundID})
	check.Equal(t, connect.CodeAborted, connect.CodeOf(err))

	checked, err := call[RoundIDRequest, FinalizeResponse](t, h, AdminServiceCheckRoundProcedure, committee, &RoundIDRequest{RoundID: roundID})
	assert.NoError(t, err)
	check.True(t, checked.Result.Finalized)
	check.Equal(t, models.RoundStatusCompleted, checked.Result.Status)

	_, err = call[RoundIDRequest, FinalizeResponse](t, h, AdminServiceCheckRoundProcedure, committee, &RoundIDRequest{})
	check.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	_, err = call[RoundIDRequest, FinalizeResponse](t, h, AdminServiceCheckRoundProcedure, committee, &RoundIDRequest{RoundID: uuid.New()})
	check.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want connect.Code
	}{
		{auctionerr.ErrValidation, connect.CodeInvalidArgument},
		{auctionerr.ErrNotFound, connect.CodeNotFound},
		{auctionerr.ErrStateConflict, connect.CodeAborted},
		{auctionerr.ErrRoundNotActive, connect.CodeFailedPrecondition},
		{auctionerr.ErrInsufficientBudget, connect.CodeFailedPrecondition},
		{auctionerr.ErrTeamNotEligible, connect.CodeFailedPrecondition},
		{auctionerr.ErrAlreadyAllocated, connect.CodeFailedPrecondition},
		{auctionerr.ErrTiebreakerPending, connect.CodeFailedPrecondition},
		{auctionerr.ErrUnauthenticated, connect.CodeUnauthenticated},
		{auctionerr.ErrPermissionDenied, connect.CodePermissionDenied},
		{errors.Join(auctionerr.ErrFinalizationFailure, auctionerr.ErrStateConflict), connect.CodeInternal},
		{errors.New("boom"), connect.CodeInternal},
	}
	for _, tc := range cases {
		check.Equal(t, tc.want, codeOf(tc.err))
	}
}
