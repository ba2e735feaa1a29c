package repository

import (
	"context"
	"database/sql"
	"encoding/json"
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

type CreateRoundRequest struct {
	ID        uuid.UUID        `json:"id"`
	SeasonID  uuid.UUID        `json:"season_id"`
	Position  string           `json:"position"`
	Type      models.RoundType `json:"round_type"`
	PlayerID  *uuid.UUID       `json:"player_id"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	MinBid    decimal.Decimal  `json:"min_bid"`
	Metadata  json.RawMessage  `json:"metadata"`
	CreatedAt time.Time        `json:"created_at"`
}

func (r *Repository) CreateRound(ctx context.Context, req CreateRoundRequest) (*models.Round, error) {
	round, err := r.queries.CreateRound(ctx, db.CreateRoundParams{
		ID:        req.ID,
		SeasonID:  req.SeasonID,
		Position:  req.Position,
		RoundType: db.RoundType(req.Type),
		PlayerID:  sqlutil.ToNullUUID(req.PlayerID),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		MinBid:    req.MinBid,
		Metadata:  sqlutil.ToNullRawMessage(req.Metadata),
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		if sqlutil.IsUniqueViolation(err, constraintActiveRound) {
			return nil, fmt.Errorf("an active round already exists for position %s: %w", req.Position, auctionerr.ErrStateConflict)
		}
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	return dbRoundToModel(round), nil
}

func (r *Repository) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	round, err := r.queries.GetRound(ctx, id)
	if err != nil {
		return nil, notFound(err, "round")
	}
	return dbRoundToModel(round), nil
}

type transitionFunc func(context.Context, db.TransitionRoundParams) (db.Round, error)

// transition runs a status CAS and turns a missed match into ErrStateConflict.
func (r *Repository) transition(ctx context.Context, fn transitionFunc, id uuid.UUID, at time.Time, what string) (*models.Round, error) {
	round, err := fn(ctx, db.TransitionRoundParams{ID: id, At: at})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("round %s cannot %s: %w", id, what, auctionerr.ErrStateConflict)
		}
		return nil, fmt.Errorf("failed to %s round: %w", what, err)
	}
	return dbRoundToModel(round), nil
}

func (r *Repository) BeginFinalizing(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return r.transition(ctx, r.queries.BeginFinalizing, id, at, "begin finalizing")
}

func (r *Repository) MarkPassCompleted(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return r.transition(ctx, r.queries.MarkPassCompleted, id, at, "mark pass completed")
}

func (r *Repository) CompleteRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return r.transition(ctx, r.queries.CompleteRound, id, at, "complete")
}

func (r *Repository) ResetStuckRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	round, err := r.transition(ctx, r.queries.ResetStuckRound, id, at, "reset")
	if err != nil && sqlutil.IsUniqueViolation(err, constraintActiveRound) {
		return nil, fmt.Errorf("another round is active for this position: %w", auctionerr.ErrStateConflict)
	}
	return round, err
}

func (r *Repository) CloseBidding(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return r.transition(ctx, r.queries.CloseBidding, id, at, "close bidding")
}

func (r *Repository) ListRoundsDueForSettlement(ctx context.Context, now time.Time, limit int32) ([]*models.Round, error) {
	rows, err := r.queries.ListRoundsDueForSettlement(ctx, db.ListRoundsDueForSettlementParams{
		Now:   now,
		Limit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds due for settlement: %w", err)
	}
	return dbRoundsToModels(rows), nil
}

func (r *Repository) ListStuckRounds(ctx context.Context, finalizingBefore time.Time) ([]*models.Round, error) {
	rows, err := r.queries.ListStuckRounds(ctx, finalizingBefore)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck rounds: %w", err)
	}
	return dbRoundsToModels(rows), nil
}

func (r *Repository) ListActiveRounds(ctx context.Context) ([]*models.Round, error) {
	rows, err := r.queries.ListActiveRounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active rounds: %w", err)
	}
	return dbRoundsToModels(rows), nil
}

func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	player, err := r.queries.GetPlayer(ctx, id)
	if err != nil {
		return nil, notFound(err, "player")
	}
	return dbPlayerToModel(player), nil
}

func (r *Repository) GetTeamBudget(ctx context.Context, teamID, seasonID uuid.UUID) (*models.TeamBudget, error) {
	budget, err := r.queries.GetTeamBudget(ctx, db.GetTeamBudgetParams{
		TeamID:   teamID,
		SeasonID: seasonID,
	})
	if err != nil {
		return nil, notFound(err, "team budget")
	}
	return dbTeamBudgetToModel(budget), nil
}
