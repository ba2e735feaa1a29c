package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/db"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/sqlutil"
)

type UpsertBidRequest struct {
	RoundID     uuid.UUID       `json:"round_id"`
	PlayerID    uuid.UUID       `json:"player_id"`
	TeamID      uuid.UUID       `json:"team_id"`
	Amount      decimal.Decimal `json:"amount"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// UpsertBid stores the team's bid, replacing amount and timestamp of an
// earlier one. The round is locked for the write; ErrRoundNotActive means
// bidding closed at SubmittedAt or the bid was already settled.
func (r *Repository) UpsertBid(ctx context.Context, req UpsertBidRequest) (*models.Bid, error) {
	return sqlutil.Get(ctx, r.db, r.withTx, func(q *db.Queries) (*models.Bid, error) {
		_, err := q.LockRoundForBid(ctx, db.TransitionRoundParams{ID: req.RoundID, At: req.SubmittedAt})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("round %s is closed for bids: %w", req.RoundID, auctionerr.ErrRoundNotActive)
			}
			return nil, fmt.Errorf("failed to lock round: %w", err)
		}
		bid, err := q.UpsertBid(ctx, db.UpsertBidParams{
			ID:          uuid.New(),
			RoundID:     req.RoundID,
			PlayerID:    req.PlayerID,
			TeamID:      req.TeamID,
			Amount:      req.Amount,
			SubmittedAt: req.SubmittedAt,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("bid on round %s already settled: %w", req.RoundID, auctionerr.ErrRoundNotActive)
			}
			return nil, fmt.Errorf("failed to upsert bid: %w", err)
		}
		return dbBidToModel(bid), nil
	})
}

func (r *Repository) ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error) {
	rows, err := r.queries.ListBidsForPlayer(ctx, db.ListBidsForPlayerParams{
		RoundID:  roundID,
		PlayerID: playerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bids for player: %w", err)
	}
	return dbBidsToModels(rows), nil
}

func (r *Repository) ListBidsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Bid, error) {
	rows, err := r.queries.ListBidsForRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids for round: %w", err)
	}
	return dbBidsToModels(rows), nil
}

func (r *Repository) ListBidsForTeam(ctx context.Context, roundID, teamID uuid.UUID) ([]*models.Bid, error) {
	rows, err := r.queries.ListBidsForTeam(ctx, db.ListBidsForTeamParams{
		RoundID: roundID,
		TeamID:  teamID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bids for team: %w", err)
	}
	return dbBidsToModels(rows), nil
}
