// Package repository maps the auction tables onto the shared models and the
// auctionerr taxonomy. Every status transition is a compare-and-set in SQL;
// callers see auctionerr.ErrStateConflict when they lose.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/db"
	"github.com/mcdev12/leagueauction/go/internal/models"
	"github.com/mcdev12/leagueauction/go/internal/sqlutil"
)

// Constraint names from the schema migration.
const (
	constraintActiveRound    = "uq_rounds_active_position"
	constraintAllocation     = "uq_allocations_player_season"
	constraintTiebreakerOpen = "uq_tiebreakers_active_player"
)

type Repository struct {
	db      *sql.DB
	queries *db.Queries
}

func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{
		db:      sqlDB,
		queries: db.New(sqlDB),
	}
}

func (r *Repository) withTx(tx *sql.Tx) *db.Queries {
	return r.queries.WithTx(tx)
}

// notFound maps sql.ErrNoRows onto ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, auctionerr.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func dbRoundToModel(r db.Round) *models.Round {
	return &models.Round{
		ID:              r.ID,
		SeasonID:        r.SeasonID,
		Position:        r.Position,
		Type:            models.RoundType(r.RoundType),
		PlayerID:        sqlutil.FromNullUUID(r.PlayerID),
		Status:          models.RoundStatus(r.Status),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		MinBid:          r.MinBid,
		Metadata:        sqlutil.FromNullRawMessage(r.Metadata),
		FinalizingAt:    sqlutil.FromSqlTime(r.FinalizingAt),
		PassCompletedAt: sqlutil.FromSqlTime(r.PassCompletedAt),
		CompletedAt:     sqlutil.FromSqlTime(r.CompletedAt),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func dbRoundsToModels(rows []db.Round) []*models.Round {
	out := make([]*models.Round, len(rows))
	for i, r := range rows {
		out[i] = dbRoundToModel(r)
	}
	return out
}

func dbBidToModel(b db.Bid) *models.Bid {
	return &models.Bid{
		ID:          b.ID,
		RoundID:     b.RoundID,
		PlayerID:    b.PlayerID,
		TeamID:      b.TeamID,
		Amount:      b.Amount,
		SubmittedAt: b.SubmittedAt,
		IsWinning:   sqlutil.FromSqlBool(b.IsWinning),
	}
}

func dbBidsToModels(rows []db.Bid) []*models.Bid {
	out := make([]*models.Bid, len(rows))
	for i, b := range rows {
		out[i] = dbBidToModel(b)
	}
	return out
}

func dbTiebreakerToModel(t db.Tiebreaker, entries []db.TiebreakerEntry) *models.Tiebreaker {
	tb := &models.Tiebreaker{
		ID:            t.ID,
		RoundID:       t.RoundID,
		PlayerID:      t.PlayerID,
		ParentID:      sqlutil.FromNullUUID(t.ParentID),
		TiedAmount:    t.TiedAmount,
		Status:        models.TiebreakerStatus(t.Status),
		Deadline:      t.Deadline,
		WinnerTeamID:  sqlutil.FromNullUUID(t.WinnerTeamID),
		WinningAmount: sqlutil.FromNullDecimal(t.WinningAmount),
		CreatedAt:     t.CreatedAt,
		ResolvedAt:    sqlutil.FromSqlTime(t.ResolvedAt),
		Entries:       make([]models.TiebreakerEntry, len(entries)),
	}
	for i, e := range entries {
		tb.Entries[i] = dbEntryToModel(e)
	}
	return tb
}

func dbEntryToModel(e db.TiebreakerEntry) models.TiebreakerEntry {
	return models.TiebreakerEntry{
		TiebreakerID:        e.TiebreakerID,
		TeamID:              e.TeamID,
		OriginalSubmittedAt: e.OriginalSubmittedAt,
		NewAmount:           sqlutil.FromNullDecimal(e.NewAmount),
		SubmittedAt:         sqlutil.FromSqlTime(e.SubmittedAt),
	}
}

func dbTeamBudgetToModel(t db.TeamBudget) *models.TeamBudget {
	return &models.TeamBudget{
		TeamID:          t.TeamID,
		SeasonID:        t.SeasonID,
		TeamName:        t.TeamName,
		StartingBudget:  t.StartingBudget,
		RemainingBudget: t.RemainingBudget,
		SquadUsed:       int(t.SquadUsed),
		SquadCap:        int(t.SquadCap),
		UpdatedAt:       t.UpdatedAt,
	}
}

func dbAllocationToModel(a db.Allocation) *models.Allocation {
	return &models.Allocation{
		ID:           a.ID,
		PlayerID:     a.PlayerID,
		SeasonID:     a.SeasonID,
		TeamID:       a.TeamID,
		RoundID:      a.RoundID,
		TiebreakerID: sqlutil.FromNullUUID(a.TiebreakerID),
		Amount:       a.Amount,
		CreatedAt:    a.CreatedAt,
	}
}

func dbPlayerToModel(p db.Player) *models.Player {
	return &models.Player{
		ID:        p.ID,
		SeasonID:  p.SeasonID,
		FullName:  p.FullName,
		Position:  p.Position,
		CreatedAt: p.CreatedAt,
	}
}
