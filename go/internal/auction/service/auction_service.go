// Package service exposes the auction engine over connect. Messages are plain
// Go structs carried by JSONCodec; callers are identified by the claims the
// auth interceptor puts on the context.
package service

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/bid"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/auth"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// RoundReader defines what the service layer needs from the round app
type RoundReader interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	ListActive(ctx context.Context) ([]*models.Round, error)
}

// BidApp defines what the service layer needs from the bid app
type BidApp interface {
	SubmitBid(ctx context.Context, req bid.SubmitBidRequest) (*models.Bid, error)
	ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error)
	ListBidsForTeam(ctx context.Context, roundID, teamID uuid.UUID) ([]*models.Bid, error)
}

// TiebreakApp defines what the service layer needs from the tiebreak app
type TiebreakApp interface {
	GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error)
	SubmitTiebreakerBid(ctx context.Context, req tiebreak.SubmitRequest) (*models.TiebreakerEntry, error)
}

// Settler is the finalizer surface used by the public service
type Settler interface {
	CheckAndFinalizeExpiredRound(ctx context.Context, roundID uuid.UUID) (*finalize.Result, error)
	Sweep(ctx context.Context) (*finalize.SweepResult, error)
}

// AllocationLister reads a completed round's results
type AllocationLister interface {
	ListAllocationsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Allocation, error)
}

// AuctionService implements auction.v1.AuctionService for teams and officials
type AuctionService struct {
	rounds      RoundReader
	bids        BidApp
	tiebreaks   TiebreakApp
	settler     Settler
	allocations AllocationLister
	clock       clockwork.Clock
}

func NewAuctionService(
	rounds RoundReader,
	bids BidApp,
	tiebreaks TiebreakApp,
	settler Settler,
	allocations AllocationLister,
	clock clockwork.Clock,
) *AuctionService {
	return &AuctionService{
		rounds:      rounds,
		bids:        bids,
		tiebreaks:   tiebreaks,
		settler:     settler,
		allocations: allocations,
		clock:       clock,
	}
}

// SubmitBid places or replaces the calling team's sealed bid
func (s *AuctionService) SubmitBid(ctx context.Context, req *connect.Request[SubmitBidRequest]) (*connect.Response[SubmitBidResponse], error) {
	teamID, err := callerTeam(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	b, err := s.bids.SubmitBid(ctx, bid.SubmitBidRequest{
		RoundID:  req.Msg.RoundID,
		PlayerID: req.Msg.PlayerID,
		TeamID:   teamID,
		Amount:   req.Msg.Amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&SubmitBidResponse{Bid: b}), nil
}

// ListBidsForPlayer returns all bids for a player. Teams only see them once
// the round is COMPLETED.
func (s *AuctionService) ListBidsForPlayer(ctx context.Context, req *connect.Request[ListBidsForPlayerRequest]) (*connect.Response[ListBidsResponse], error) {
	claims := auth.FromContext(ctx)
	if claims == nil {
		return nil, toConnectError(auctionerr.ErrUnauthenticated)
	}
	s.lazySweep(ctx)

	if !claims.IsOfficial() {
		r, err := s.rounds.GetRound(ctx, req.Msg.RoundID)
		if err != nil {
			return nil, toConnectError(err)
		}
		if r.Status != models.RoundStatusCompleted {
			return nil, toConnectError(fmt.Errorf("bids are sealed until round %s completes: %w",
				r.ID, auctionerr.ErrPermissionDenied))
		}
	}

	bids, err := s.bids.ListBidsForPlayer(ctx, req.Msg.RoundID, req.Msg.PlayerID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListBidsResponse{Bids: bids}), nil
}

// ListMyBids returns the calling team's own bids in a round
func (s *AuctionService) ListMyBids(ctx context.Context, req *connect.Request[ListMyBidsRequest]) (*connect.Response[ListBidsResponse], error) {
	teamID, err := callerTeam(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	bids, err := s.bids.ListBidsForTeam(ctx, req.Msg.RoundID, teamID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListBidsResponse{Bids: bids}), nil
}

// SubmitTiebreakerBid records the calling team's tiebreaker bid. Once every
// tied team has submitted, the round is checked so the tiebreaker settles
// without waiting for its deadline.
func (s *AuctionService) SubmitTiebreakerBid(ctx context.Context, req *connect.Request[SubmitTiebreakerBidRequest]) (*connect.Response[SubmitTiebreakerBidResponse], error) {
	teamID, err := callerTeam(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	entry, err := s.tiebreaks.SubmitTiebreakerBid(ctx, tiebreak.SubmitRequest{
		TiebreakerID: req.Msg.TiebreakerID,
		TeamID:       teamID,
		Amount:       req.Msg.Amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	s.settleIfReady(ctx, req.Msg.TiebreakerID)

	return connect.NewResponse(&SubmitTiebreakerBidResponse{Entry: entry}), nil
}

// GetTiebreaker returns a tiebreaker. Teams must hold a seat and only see
// their own new amount while it is open.
func (s *AuctionService) GetTiebreaker(ctx context.Context, req *connect.Request[GetTiebreakerRequest]) (*connect.Response[GetTiebreakerResponse], error) {
	claims := auth.FromContext(ctx)
	if claims == nil {
		return nil, toConnectError(auctionerr.ErrUnauthenticated)
	}

	tb, err := s.tiebreaks.GetTiebreaker(ctx, req.Msg.TiebreakerID)
	if err != nil {
		return nil, toConnectError(err)
	}

	if !claims.IsOfficial() {
		teamID, _ := claims.Team()
		tb, err = redactTiebreaker(tb, teamID)
		if err != nil {
			return nil, toConnectError(err)
		}
	}
	return connect.NewResponse(&GetTiebreakerResponse{Tiebreaker: tb}), nil
}

// GetRound returns a round after giving it a chance to settle
func (s *AuctionService) GetRound(ctx context.Context, req *connect.Request[GetRoundRequest]) (*connect.Response[GetRoundResponse], error) {
	if req.Msg.RoundID == uuid.Nil {
		return nil, toConnectError(fmt.Errorf("round_id is required: %w", auctionerr.ErrValidation))
	}
	if _, err := s.settler.CheckAndFinalizeExpiredRound(ctx, req.Msg.RoundID); err != nil {
		log.Warn().Err(err).Str("round_id", req.Msg.RoundID.String()).Msg("lazy finalization check failed")
	}

	r, err := s.rounds.GetRound(ctx, req.Msg.RoundID)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &GetRoundResponse{Round: s.view(r)}
	if r.Status == models.RoundStatusCompleted {
		resp.Allocations, err = s.allocations.ListAllocationsForRound(ctx, r.ID)
		if err != nil {
			return nil, toConnectError(err)
		}
	}
	return connect.NewResponse(resp), nil
}

// ListActiveRounds sweeps expired rounds, then lists what is still ACTIVE
func (s *AuctionService) ListActiveRounds(ctx context.Context, req *connect.Request[ListActiveRoundsRequest]) (*connect.Response[ListRoundsResponse], error) {
	s.lazySweep(ctx)

	rounds, err := s.rounds.ListActive(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	views := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		views = append(views, s.view(r))
	}
	return connect.NewResponse(&ListRoundsResponse{Rounds: views}), nil
}

func (s *AuctionService) view(r *models.Round) RoundView {
	return RoundView{Round: r, Phase: round.PhaseAt(r, s.clock.Now())}
}

// lazySweep settles any rounds that expired without anyone looking. Read
// traffic must not fail because of it.
func (s *AuctionService) lazySweep(ctx context.Context) {
	res, err := s.settler.Sweep(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("lazy sweep failed")
		return
	}
	if res.Finalized > 0 || res.Failed > 0 {
		log.Info().
			Int("checked", res.Checked).
			Int("finalized", res.Finalized).
			Int("failed", res.Failed).
			Msg("lazy sweep settled rounds")
	}
}

func (s *AuctionService) settleIfReady(ctx context.Context, tiebreakerID uuid.UUID) {
	tb, err := s.tiebreaks.GetTiebreaker(ctx, tiebreakerID)
	if err != nil {
		log.Warn().Err(err).Str("tiebreaker_id", tiebreakerID.String()).Msg("failed to reload tiebreaker")
		return
	}
	if !tiebreak.IsReady(tb, s.clock.Now()) {
		return
	}
	if _, err := s.settler.CheckAndFinalizeExpiredRound(ctx, tb.RoundID); err != nil {
		log.Error().
			Err(err).
			Str("round_id", tb.RoundID.String()).
			Str("tiebreaker_id", tb.ID.String()).
			Msg("failed to settle round after tiebreaker bid")
	}
}

// callerTeam returns the team the caller bids as
func callerTeam(ctx context.Context) (uuid.UUID, error) {
	claims := auth.FromContext(ctx)
	if claims == nil {
		return uuid.Nil, auctionerr.ErrUnauthenticated
	}
	teamID, ok := claims.Team()
	if !ok {
		return uuid.Nil, fmt.Errorf("only team accounts may bid: %w", auctionerr.ErrPermissionDenied)
	}
	return teamID, nil
}

// redactTiebreaker hides other teams' sealed amounts while the tiebreaker is open.
func redactTiebreaker(tb *models.Tiebreaker, teamID uuid.UUID) (*models.Tiebreaker, error) {
	seated := false
	for _, e := range tb.Entries {
		if e.TeamID == teamID {
			seated = true
			break
		}
	}
	if !seated {
		return nil, fmt.Errorf("team %s is not part of tiebreaker %s: %w", teamID, tb.ID, auctionerr.ErrPermissionDenied)
	}
	if tb.Status != models.TiebreakerStatusActive {
		return tb, nil
	}

	out := *tb
	out.Entries = make([]models.TiebreakerEntry, len(tb.Entries))
	for i, e := range tb.Entries {
		if e.TeamID != teamID {
			e.NewAmount = nil
			e.SubmittedAt = nil
		}
		out.Entries[i] = e
	}
	return &out, nil
}
