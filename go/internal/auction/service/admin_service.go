package service

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auth"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// RoundAdmin defines what the admin service needs from the round app
type RoundAdmin interface {
	OpenRound(ctx context.Context, req round.OpenRoundRequest) (*models.Round, error)
	ListStuck(ctx context.Context, olderThan time.Duration) ([]*models.Round, error)
}

// FinalizeAdmin is the finalizer surface used by officials
type FinalizeAdmin interface {
	CheckAndFinalizeExpiredRound(ctx context.Context, roundID uuid.UUID) (*finalize.Result, error)
	ForceFinalize(ctx context.Context, roundID uuid.UUID) (*finalize.Result, error)
	ResetStuck(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
}

// AdminService implements auction.v1.AdminService. Every call requires a
// committee or admin token; the interceptor enforces the role.
type AdminService struct {
	rounds    RoundAdmin
	finalizer FinalizeAdmin
	events    events.Sink
}

func NewAdminService(rounds RoundAdmin, finalizer FinalizeAdmin, sink events.Sink) *AdminService {
	return &AdminService{
		rounds:    rounds,
		finalizer: finalizer,
		events:    sink,
	}
}

// OpenRound opens bidding for a position or a single player
func (s *AdminService) OpenRound(ctx context.Context, req *connect.Request[round.OpenRoundRequest]) (*connect.Response[RoundResponse], error) {
	r, err := s.rounds.OpenRound(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	payload := events.RoundOpenedPayload{
		RoundID:   r.ID.String(),
		SeasonID:  r.SeasonID.String(),
		Position:  r.Position,
		RoundType: string(r.Type),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		MinBid:    money.Format(r.MinBid),
	}
	if r.PlayerID != nil {
		payload.PlayerID = r.PlayerID.String()
	}
	events.Emit(ctx, s.events, r.ID, events.EventTypeRoundOpened, payload)

	logOfficial(ctx, "round opened", r.ID)
	return connect.NewResponse(&RoundResponse{Round: r}), nil
}

// ForceFinalize closes bidding now and settles the round. Failures are
// returned so the official sees them.
func (s *AdminService) ForceFinalize(ctx context.Context, req *connect.Request[RoundIDRequest]) (*connect.Response[FinalizeResponse], error) {
	if err := requireRoundID(req.Msg.RoundID); err != nil {
		return nil, toConnectError(err)
	}

	res, err := s.finalizer.ForceFinalize(ctx, req.Msg.RoundID)
	if err != nil {
		return nil, toConnectError(err)
	}

	logOfficial(ctx, "round force finalized", req.Msg.RoundID)
	return connect.NewResponse(&FinalizeResponse{Result: res}), nil
}

// ResetStuckRound returns a FINALIZING round to ACTIVE
func (s *AdminService) ResetStuckRound(ctx context.Context, req *connect.Request[RoundIDRequest]) (*connect.Response[RoundResponse], error) {
	if err := requireRoundID(req.Msg.RoundID); err != nil {
		return nil, toConnectError(err)
	}

	r, err := s.finalizer.ResetStuck(ctx, req.Msg.RoundID)
	if err != nil {
		return nil, toConnectError(err)
	}

	logOfficial(ctx, "stuck round reset", r.ID)
	return connect.NewResponse(&RoundResponse{Round: r}), nil
}

func (s *AdminService) ListStuckRounds(ctx context.Context, req *connect.Request[ListStuckRoundsRequest]) (*connect.Response[ListRoundsResponse], error) {
	if req.Msg.OlderThanSeconds < 0 {
		return nil, toConnectError(fmt.Errorf("older_than_seconds must not be negative: %w", auctionerr.ErrValidation))
	}

	rounds, err := s.rounds.ListStuck(ctx, time.Duration(req.Msg.OlderThanSeconds)*time.Second)
	if err != nil {
		return nil, toConnectError(err)
	}

	views := make([]RoundView, 0, len(rounds))
	for _, r := range rounds {
		views = append(views, RoundView{Round: r, Phase: round.PhaseFinalizing})
	}
	return connect.NewResponse(&ListRoundsResponse{Rounds: views}), nil
}

// CheckRound runs the same check lazy reads do, for one round
func (s *AdminService) CheckRound(ctx context.Context, req *connect.Request[RoundIDRequest]) (*connect.Response[FinalizeResponse], error) {
	if err := requireRoundID(req.Msg.RoundID); err != nil {
		return nil, toConnectError(err)
	}

	res, err := s.finalizer.CheckAndFinalizeExpiredRound(ctx, req.Msg.RoundID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&FinalizeResponse{Result: res}), nil
}

func requireRoundID(id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("round_id is required: %w", auctionerr.ErrValidation)
	}
	return nil
}

func logOfficial(ctx context.Context, msg string, roundID uuid.UUID) {
	ev := log.Info().Str("round_id", roundID.String())
	if claims := auth.FromContext(ctx); claims != nil {
		ev = ev.Str("official", claims.Subject).Str("role", string(claims.Role))
	}
	ev.Msg(msg)
}
