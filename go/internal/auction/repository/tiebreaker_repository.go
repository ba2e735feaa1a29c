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

type TiebreakerSeat struct {
	TeamID              uuid.UUID `json:"team_id"`
	OriginalSubmittedAt time.Time `json:"original_submitted_at"`
}

type OpenTiebreakerRequest struct {
	RoundID    uuid.UUID        `json:"round_id"`
	PlayerID   uuid.UUID        `json:"player_id"`
	ParentID   *uuid.UUID       `json:"parent_id"`
	TiedAmount decimal.Decimal  `json:"tied_amount"`
	Deadline   time.Time        `json:"deadline"`
	CreatedAt  time.Time        `json:"created_at"`
	Seats      []TiebreakerSeat `json:"seats"`
}

// OpenTiebreaker creates the tiebreaker and its entries. When an ACTIVE one
// already exists for the round and player it is returned with created=false.
func (r *Repository) OpenTiebreaker(ctx context.Context, req OpenTiebreakerRequest) (*models.Tiebreaker, bool, error) {
	var (
		tb      *models.Tiebreaker
		created bool
	)
	err := sqlutil.Run(ctx, r.db, r.withTx, func(q *db.Queries) error {
		var err error
		tb, created, err = openTiebreaker(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return tb, created, nil
}

func openTiebreaker(ctx context.Context, q *db.Queries, req OpenTiebreakerRequest) (*models.Tiebreaker, bool, error) {
	row, err := q.CreateTiebreaker(ctx, db.CreateTiebreakerParams{
		ID:         uuid.New(),
		RoundID:    req.RoundID,
		PlayerID:   req.PlayerID,
		ParentID:   sqlutil.ToNullUUID(req.ParentID),
		TiedAmount: req.TiedAmount,
		Deadline:   req.Deadline,
		CreatedAt:  req.CreatedAt,
	})
	if errors.Is(err, sql.ErrNoRows) || sqlutil.IsUniqueViolation(err, constraintTiebreakerOpen) {
		existing, err := activeTiebreakerForPlayer(ctx, q, req.RoundID, req.PlayerID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create tiebreaker: %w", err)
	}

	entries := make([]db.TiebreakerEntry, 0, len(req.Seats))
	for _, seat := range req.Seats {
		entry, err := q.CreateTiebreakerEntry(ctx, db.CreateTiebreakerEntryParams{
			TiebreakerID:        row.ID,
			TeamID:              seat.TeamID,
			OriginalSubmittedAt: seat.OriginalSubmittedAt,
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to create tiebreaker entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return dbTiebreakerToModel(row, entries), true, nil
}

func (r *Repository) GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error) {
	row, err := r.queries.GetTiebreaker(ctx, id)
	if err != nil {
		return nil, notFound(err, "tiebreaker")
	}
	return withEntries(ctx, r.queries, row)
}

func (r *Repository) GetActiveTiebreakerForPlayer(ctx context.Context, roundID, playerID uuid.UUID) (*models.Tiebreaker, error) {
	return activeTiebreakerForPlayer(ctx, r.queries, roundID, playerID)
}

func activeTiebreakerForPlayer(ctx context.Context, q *db.Queries, roundID, playerID uuid.UUID) (*models.Tiebreaker, error) {
	row, err := q.GetActiveTiebreakerForPlayer(ctx, db.GetActiveTiebreakerForPlayerParams{
		RoundID:  roundID,
		PlayerID: playerID,
	})
	if err != nil {
		return nil, notFound(err, "active tiebreaker")
	}
	return withEntries(ctx, q, row)
}

func (r *Repository) ListActiveTiebreakersForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Tiebreaker, error) {
	rows, err := r.queries.ListActiveTiebreakersForRound(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tiebreakers: %w", err)
	}
	out := make([]*models.Tiebreaker, 0, len(rows))
	for _, row := range rows {
		tb, err := withEntries(ctx, r.queries, row)
		if err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, nil
}

func withEntries(ctx context.Context, q *db.Queries, row db.Tiebreaker) (*models.Tiebreaker, error) {
	entries, err := q.ListTiebreakerEntries(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiebreaker entries: %w", err)
	}
	return dbTiebreakerToModel(row, entries), nil
}

type SubmitTiebreakerEntryRequest struct {
	TiebreakerID uuid.UUID       `json:"tiebreaker_id"`
	TeamID       uuid.UUID       `json:"team_id"`
	Amount       decimal.Decimal `json:"amount"`
	SubmittedAt  time.Time       `json:"submitted_at"`
}

// SubmitTiebreakerEntry records the team's new amount. It fails with
// ErrStateConflict when the tiebreaker closed since the caller last read it.
func (r *Repository) SubmitTiebreakerEntry(ctx context.Context, req SubmitTiebreakerEntryRequest) (*models.TiebreakerEntry, error) {
	return sqlutil.Get(ctx, r.db, r.withTx, func(q *db.Queries) (*models.TiebreakerEntry, error) {
		_, err := q.LockTiebreakerForEntry(ctx, db.LockTiebreakerForEntryParams{
			ID: req.TiebreakerID,
			At: req.SubmittedAt,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("tiebreaker %s is closed: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
			}
			return nil, fmt.Errorf("failed to lock tiebreaker: %w", err)
		}
		entry, err := q.SubmitTiebreakerEntry(ctx, db.SubmitTiebreakerEntryParams{
			TiebreakerID: req.TiebreakerID,
			TeamID:       req.TeamID,
			NewAmount:    req.Amount,
			SubmittedAt:  req.SubmittedAt,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("tiebreaker %s is closed: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
			}
			return nil, fmt.Errorf("failed to submit tiebreaker entry: %w", err)
		}
		m := dbEntryToModel(entry)
		return &m, nil
	})
}

// SettleTiebreakerRequest closes a tiebreaker. Exactly one outcome applies:
// Award commits the winner, Escalation opens a child for the still-tied
// teams, and neither leaves the player unsold.
type SettleTiebreakerRequest struct {
	TiebreakerID uuid.UUID                `json:"tiebreaker_id"`
	RoundID      uuid.UUID                `json:"round_id"`
	PlayerID     uuid.UUID                `json:"player_id"`
	ResolvedAt   time.Time                `json:"resolved_at"`
	Award        *CommitAllocationRequest `json:"award,omitempty"`
	Escalation   *OpenTiebreakerRequest   `json:"escalation,omitempty"`
	// Entries are the submissions the outcome was decided on. Settling
	// fails with ErrTiebreakerPending if the stored entries differ.
	Entries []models.TiebreakerEntry `json:"entries"`
}

type SettleTiebreakerResult struct {
	Tiebreaker *models.Tiebreaker
	Allocation *models.Allocation
	Child      *models.Tiebreaker
}

// SettleTiebreaker completes the tiebreaker with a status CAS and applies
// the outcome in the same transaction. A lost CAS is ErrStateConflict and
// rolls everything back.
func (r *Repository) SettleTiebreaker(ctx context.Context, req SettleTiebreakerRequest) (*SettleTiebreakerResult, error) {
	return sqlutil.Get(ctx, r.db, r.withTx, func(q *db.Queries) (*SettleTiebreakerResult, error) {
		res := &SettleTiebreakerResult{}

		params := db.CompleteTiebreakerParams{
			ID:         req.TiebreakerID,
			ResolvedAt: req.ResolvedAt,
		}
		if req.Award != nil {
			params.WinnerTeamID = sqlutil.ToNullUUID(&req.Award.TeamID)
			params.WinningAmount = sqlutil.ToNullDecimal(&req.Award.Amount)
		}
		row, err := q.CompleteTiebreaker(ctx, params)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("tiebreaker %s already resolved: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
			}
			return nil, fmt.Errorf("failed to complete tiebreaker: %w", err)
		}
		locked, err := q.LockTiebreakerEntries(ctx, req.TiebreakerID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock tiebreaker entries: %w", err)
		}
		entries := make([]models.TiebreakerEntry, len(locked))
		for i, e := range locked {
			entries[i] = dbEntryToModel(e)
		}
		if !models.SameEntries(entries, req.Entries) {
			return nil, fmt.Errorf("tiebreaker %s entries changed since it was decided: %w",
				req.TiebreakerID, auctionerr.ErrTiebreakerPending)
		}
		res.Tiebreaker = dbTiebreakerToModel(row, locked)

		switch {
		case req.Award != nil:
			res.Allocation, err = commitAllocation(ctx, q, *req.Award)
			if err != nil {
				return nil, err
			}
		case req.Escalation != nil:
			child, _, err := openTiebreaker(ctx, q, *req.Escalation)
			if err != nil {
				return nil, err
			}
			res.Child = child
		default:
			err = q.MarkBidOutcomes(ctx, db.MarkBidOutcomesParams{
				RoundID:  req.RoundID,
				PlayerID: req.PlayerID,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to mark player unsold: %w", err)
			}
		}
		return res, nil
	})
}
