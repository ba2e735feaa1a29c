package clients

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/service"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// AdminClient calls auction.v1.AdminService. It needs a committee or admin token.
type AdminClient struct {
	*BaseClient

	openRound       *connect.Client[round.OpenRoundRequest, service.RoundResponse]
	forceFinalize   *connect.Client[service.RoundIDRequest, service.FinalizeResponse]
	resetStuckRound *connect.Client[service.RoundIDRequest, service.RoundResponse]
	listStuckRounds *connect.Client[service.ListStuckRoundsRequest, service.ListRoundsResponse]
	checkRound      *connect.Client[service.RoundIDRequest, service.FinalizeResponse]
}

func NewAdminClient(base *BaseClient) *AdminClient {
	return &AdminClient{
		BaseClient:      base,
		openRound:       newUnary[round.OpenRoundRequest, service.RoundResponse](base, service.AdminServiceOpenRoundProcedure),
		forceFinalize:   newUnary[service.RoundIDRequest, service.FinalizeResponse](base, service.AdminServiceForceFinalizeProcedure),
		resetStuckRound: newUnary[service.RoundIDRequest, service.RoundResponse](base, service.AdminServiceResetStuckRoundProcedure),
		listStuckRounds: newUnary[service.ListStuckRoundsRequest, service.ListRoundsResponse](base, service.AdminServiceListStuckRoundsProcedure),
		checkRound:      newUnary[service.RoundIDRequest, service.FinalizeResponse](base, service.AdminServiceCheckRoundProcedure),
	}
}

func (c *AdminClient) OpenRound(ctx context.Context, req round.OpenRoundRequest) (*models.Round, error) {
	res, err := invoke(ctx, c.openRound, &req)
	if err != nil {
		return nil, err
	}
	return res.Round, nil
}

func (c *AdminClient) ForceFinalize(ctx context.Context, roundID uuid.UUID) (*finalize.Result, error) {
	res, err := invoke(ctx, c.forceFinalize, &service.RoundIDRequest{RoundID: roundID})
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}

func (c *AdminClient) ResetStuckRound(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	res, err := invoke(ctx, c.resetStuckRound, &service.RoundIDRequest{RoundID: roundID})
	if err != nil {
		return nil, err
	}
	return res.Round, nil
}

func (c *AdminClient) ListStuckRounds(ctx context.Context, olderThan time.Duration) ([]service.RoundView, error) {
	res, err := invoke(ctx, c.listStuckRounds, &service.ListStuckRoundsRequest{OlderThanSeconds: int64(olderThan / time.Second)})
	if err != nil {
		return nil, err
	}
	return res.Rounds, nil
}

func (c *AdminClient) CheckRound(ctx context.Context, roundID uuid.UUID) (*finalize.Result, error) {
	res, err := invoke(ctx, c.checkRound, &service.RoundIDRequest{RoundID: roundID})
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}
