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

type CommitAllocationRequest struct {
	RoundID      uuid.UUID       `json:"round_id"`
	PlayerID     uuid.UUID       `json:"player_id"`
	SeasonID     uuid.UUID       `json:"season_id"`
	TeamID       uuid.UUID       `json:"team_id"`
	Amount       decimal.Decimal `json:"amount"`
	TiebreakerID *uuid.UUID      `json:"tiebreaker_id"`
	At           time.Time       `json:"at"`
}

// CommitAllocation debits the winner, records the allocation and flags every
// bid for the player as winning or losing, all in one transaction.
func (r *Repository) CommitAllocation(ctx context.Context, req CommitAllocationRequest) (*models.Allocation, error) {
	return sqlutil.Get(ctx, r.db, r.withTx, func(q *db.Queries) (*models.Allocation, error) {
		return commitAllocation(ctx, q, req)
	})
}

func commitAllocation(ctx context.Context, q *db.Queries, req CommitAllocationRequest) (*models.Allocation, error) {
	_, err := q.DebitTeamBudget(ctx, db.DebitTeamBudgetParams{
		TeamID:    req.TeamID,
		SeasonID:  req.SeasonID,
		Amount:    req.Amount,
		UpdatedAt: req.At,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, debitRefusal(ctx, q, req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to debit team budget: %w", err)
	}

	alloc, err := q.InsertAllocation(ctx, db.InsertAllocationParams{
		ID:           uuid.New(),
		PlayerID:     req.PlayerID,
		SeasonID:     req.SeasonID,
		TeamID:       req.TeamID,
		RoundID:      req.RoundID,
		TiebreakerID: sqlutil.ToNullUUID(req.TiebreakerID),
		Amount:       req.Amount,
		CreatedAt:    req.At,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || sqlutil.IsUniqueViolation(err, constraintAllocation) {
			return nil, fmt.Errorf("player %s: %w", req.PlayerID, auctionerr.ErrAlreadyAllocated)
		}
		return nil, fmt.Errorf("failed to insert allocation: %w", err)
	}

	err = q.MarkBidOutcomes(ctx, db.MarkBidOutcomesParams{
		RoundID:      req.RoundID,
		PlayerID:     req.PlayerID,
		WinnerTeamID: uuid.NullUUID{UUID: req.TeamID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark bid outcomes: %w", err)
	}

	return dbAllocationToModel(alloc), nil
}

// debitRefusal explains why the debit CAS matched no row.
func debitRefusal(ctx context.Context, q *db.Queries, req CommitAllocationRequest) error {
	budget, err := q.GetTeamBudget(ctx, db.GetTeamBudgetParams{
		TeamID:   req.TeamID,
		SeasonID: req.SeasonID,
	})
	if err != nil {
		return notFound(err, "team budget")
	}
	if budget.SquadUsed >= budget.SquadCap {
		return fmt.Errorf("team %s squad is full: %w", req.TeamID, auctionerr.ErrTeamNotEligible)
	}
	return fmt.Errorf("team %s has %s left, needs %s: %w",
		req.TeamID, budget.RemainingBudget.StringFixed(2), req.Amount.StringFixed(2), auctionerr.ErrInsufficientBudget)
}

// MarkPlayerUnsold flags every bid for the player in the round as losing.
func (r *Repository) MarkPlayerUnsold(ctx context.Context, roundID, playerID uuid.UUID) error {
	err := r.queries.MarkBidOutcomes(ctx, db.MarkBidOutcomesParams{
		RoundID:  roundID,
		PlayerID: playerID,
	})
	if err != nil {
		return fmt.Errorf("failed to mark player unsold: %w", err)
	}
	return nil
}

func (r *Repository) GetAllocationForPlayer(ctx context.Context, playerID, seasonID uuid.UUID) (*models.Allocation, error) {
	alloc, err := r.queries.GetAllocationForPlayer(ctx, db.GetAllocationForPlayerParams{
		PlayerID: playerID,
		SeasonID: seasonID,
	})
	if err != nil {
		return nil, notFound(err, "allocation")
	}
	return dbAllocationToModel(alloc), nil
}

func (r *Repository) ListAllocationsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Allocation, error) {
	rows, err := r.queries.ListAllocationsForRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations for round: %w", err)
	}
	out := make([]*models.Allocation, len(rows))
	for i, a := range rows {
		out[i] = dbAllocationToModel(a)
	}
	return out, nil
}
