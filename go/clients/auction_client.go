package clients

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/service"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// AuctionClient calls auction.v1.AuctionService as a team or an official.
type AuctionClient struct {
	*BaseClient

	submitBid           *connect.Client[service.SubmitBidRequest, service.SubmitBidResponse]
	listBidsForPlayer   *connect.Client[service.ListBidsForPlayerRequest, service.ListBidsResponse]
	listMyBids          *connect.Client[service.ListMyBidsRequest, service.ListBidsResponse]
	submitTiebreakerBid *connect.Client[service.SubmitTiebreakerBidRequest, service.SubmitTiebreakerBidResponse]
	getTiebreaker       *connect.Client[service.GetTiebreakerRequest, service.GetTiebreakerResponse]
	getRound            *connect.Client[service.GetRoundRequest, service.GetRoundResponse]
	listActiveRounds    *connect.Client[service.ListActiveRoundsRequest, service.ListRoundsResponse]
}

func NewAuctionClient(base *BaseClient) *AuctionClient {
	return &AuctionClient{
		BaseClient:          base,
		submitBid:           newUnary[service.SubmitBidRequest, service.SubmitBidResponse](base, service.AuctionServiceSubmitBidProcedure),
		listBidsForPlayer:   newUnary[service.ListBidsForPlayerRequest, service.ListBidsResponse](base, service.AuctionServiceListBidsForPlayerProcedure),
		listMyBids:          newUnary[service.ListMyBidsRequest, service.ListBidsResponse](base, service.AuctionServiceListMyBidsProcedure),
		submitTiebreakerBid: newUnary[service.SubmitTiebreakerBidRequest, service.SubmitTiebreakerBidResponse](base, service.AuctionServiceSubmitTiebreakerBidProcedure),
		getTiebreaker:       newUnary[service.GetTiebreakerRequest, service.GetTiebreakerResponse](base, service.AuctionServiceGetTiebreakerProcedure),
		getRound:            newUnary[service.GetRoundRequest, service.GetRoundResponse](base, service.AuctionServiceGetRoundProcedure),
		listActiveRounds:    newUnary[service.ListActiveRoundsRequest, service.ListRoundsResponse](base, service.AuctionServiceListActiveRoundsProcedure),
	}
}

func (c *AuctionClient) SubmitBid(ctx context.Context, roundID, playerID uuid.UUID, amount decimal.Decimal) (*models.Bid, error) {
	res, err := invoke(ctx, c.submitBid, &service.SubmitBidRequest{RoundID: roundID, PlayerID: playerID, Amount: amount})
	if err != nil {
		return nil, err
	}
	return res.Bid, nil
}

func (c *AuctionClient) ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error) {
	res, err := invoke(ctx, c.listBidsForPlayer, &service.ListBidsForPlayerRequest{RoundID: roundID, PlayerID: playerID})
	if err != nil {
		return nil, err
	}
	return res.Bids, nil
}

func (c *AuctionClient) ListMyBids(ctx context.Context, roundID uuid.UUID) ([]*models.Bid, error) {
	res, err := invoke(ctx, c.listMyBids, &service.ListMyBidsRequest{RoundID: roundID})
	if err != nil {
		return nil, err
	}
	return res.Bids, nil
}

func (c *AuctionClient) SubmitTiebreakerBid(ctx context.Context, tiebreakerID uuid.UUID, amount decimal.Decimal) (*models.TiebreakerEntry, error) {
	res, err := invoke(ctx, c.submitTiebreakerBid, &service.SubmitTiebreakerBidRequest{TiebreakerID: tiebreakerID, Amount: amount})
	if err != nil {
		return nil, err
	}
	return res.Entry, nil
}

func (c *AuctionClient) GetTiebreaker(ctx context.Context, tiebreakerID uuid.UUID) (*models.Tiebreaker, error) {
	res, err := invoke(ctx, c.getTiebreaker, &service.GetTiebreakerRequest{TiebreakerID: tiebreakerID})
	if err != nil {
		return nil, err
	}
	return res.Tiebreaker, nil
}

func (c *AuctionClient) GetRound(ctx context.Context, roundID uuid.UUID) (*service.GetRoundResponse, error) {
	return invoke(ctx, c.getRound, &service.GetRoundRequest{RoundID: roundID})
}

func (c *AuctionClient) ListActiveRounds(ctx context.Context) ([]service.RoundView, error) {
	res, err := invoke(ctx, c.listActiveRounds, &service.ListActiveRoundsRequest{})
	if err != nil {
		return nil, err
	}
	return res.Rounds, nil
}
