package round

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// RoundRepository defines what the round app layer needs from the repository
type RoundRepository interface {
	CreateRound(ctx context.Context, req repository.CreateRoundRequest) (*models.Round, error)
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	BeginFinalizing(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	MarkPassCompleted(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	CompleteRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	ResetStuckRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	CloseBidding(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	ListRoundsDueForSettlement(ctx context.Context, now time.Time, limit int32) ([]*models.Round, error)
	ListStuckRounds(ctx context.Context, finalizingBefore time.Time) ([]*models.Round, error)
	ListActiveRounds(ctx context.Context) ([]*models.Round, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// App handles the round lifecycle
type App struct {
	repo  RoundRepository
	clock clockwork.Clock
}

// NewApp creates a new round App
func NewApp(repo RoundRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// IsExpired reports whether an ACTIVE round's bidding window has closed at now.
func IsExpired(r *models.Round, now time.Time) bool {
	return r.Status == models.RoundStatusActive && !now.Before(r.EndTime)
}

// PhaseAt derives the bidding phase of r at now.
func PhaseAt(r *models.Round, now time.Time) Phase {
	switch r.Status {
	case models.RoundStatusCompleted:
		return PhaseCompleted
	case models.RoundStatusFinalizing:
		return PhaseFinalizing
	}
	switch {
	case now.Before(r.StartTime):
		return PhasePending
	case IsExpired(r, now):
		return PhaseExpired
	default:
		return PhaseOpen
	}
}

// CheckAcceptsBids returns ErrRoundNotActive unless r is open for bids at now.
func CheckAcceptsBids(r *models.Round, now time.Time) error {
	switch phase := PhaseAt(r, now); phase {
	case PhaseOpen:
		return nil
	case PhasePending:
		return fmt.Errorf("round %s opens at %s: %w", r.ID, r.StartTime.Format(time.RFC3339), auctionerr.ErrRoundNotActive)
	case PhaseExpired:
		return fmt.Errorf("round %s closed at %s: %w", r.ID, r.EndTime.Format(time.RFC3339), auctionerr.ErrRoundNotActive)
	default:
		return fmt.Errorf("round %s is %s: %w", r.ID, r.Status, auctionerr.ErrRoundNotActive)
	}
}

// OpenRound validates and creates an ACTIVE round
func (a *App) OpenRound(ctx context.Context, req OpenRoundRequest) (*models.Round, error) {
	now := a.clock.Now()
	if req.StartTime.IsZero() {
		req.StartTime = now
	}
	req.Position = strings.TrimSpace(req.Position)

	if err := a.validateOpenRoundRequest(ctx, req, now); err != nil {
		return nil, err
	}

	round, err := a.repo.CreateRound(ctx, repository.CreateRoundRequest{
		ID:        uuid.New(),
		SeasonID:  req.SeasonID,
		Position:  req.Position,
		Type:      req.Type,
		PlayerID:  req.PlayerID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		MinBid:    req.MinBid,
		Metadata:  req.Metadata,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open round: %w", err)
	}

	log.Info().
		Str("round_id", round.ID.String()).
		Str("position", round.Position).
		Str("round_type", string(round.Type)).
		Time("end_time", round.EndTime).
		Msg("round opened")
	return round, nil
}

// GetRound retrieves a round by ID
func (a *App) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	round, err := a.repo.GetRound(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return round, nil
}

// BeginFinalizing claims an ACTIVE round for settlement. Exactly one caller
// wins; the others get ErrStateConflict.
func (a *App) BeginFinalizing(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return a.repo.BeginFinalizing(ctx, id, a.clock.Now())
}

// MarkPassCompleted records that every player of a FINALIZING round has been
// allocated, left unsold or handed to a tiebreaker.
func (a *App) MarkPassCompleted(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	return a.repo.MarkPassCompleted(ctx, id, a.clock.Now())
}

// Complete moves a FINALIZING round to COMPLETED. Completing an already
// COMPLETED round returns it unchanged.
func (a *App) Complete(ctx context.Context, id uuid.UUID) (*models.Round, bool, error) {
	round, err := a.repo.CompleteRound(ctx, id, a.clock.Now())
	if err == nil {
		return round, true, nil
	}
	if !errors.Is(err, auctionerr.ErrStateConflict) {
		return nil, false, err
	}

	current, getErr := a.repo.GetRound(ctx, id)
	if getErr != nil {
		return nil, false, fmt.Errorf("failed to re-read round: %w", getErr)
	}
	if current.Status == models.RoundStatusCompleted {
		return current, false, nil
	}
	return nil, false, err
}

// ResetStuck moves a FINALIZING round back to ACTIVE. Admin recovery only.
// A round whose allocation pass completed is waiting on tiebreakers, not
// stuck, and is refused with ErrStateConflict.
func (a *App) ResetStuck(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	round, err := a.repo.ResetStuckRound(ctx, id, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to reset round: %w", err)
	}

	log.Warn().
		Str("round_id", id.String()).
		Msg("stuck round reset to ACTIVE")
	return round, nil
}

// CloseBidding pulls the end time of an ACTIVE round forward to at.
func (a *App) CloseBidding(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	round, err := a.repo.CloseBidding(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("failed to close bidding: %w", err)
	}
	return round, nil
}

// ListDueForSettlement returns expired ACTIVE rounds plus FINALIZING rounds
// waiting on tiebreakers.
func (a *App) ListDueForSettlement(ctx context.Context, limit int32) ([]*models.Round, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0: %w", auctionerr.ErrValidation)
	}
	return a.repo.ListRoundsDueForSettlement(ctx, a.clock.Now(), limit)
}

// ListStuck returns FINALIZING rounds whose allocation pass has not finished
// within olderThan.
func (a *App) ListStuck(ctx context.Context, olderThan time.Duration) ([]*models.Round, error) {
	return a.repo.ListStuckRounds(ctx, a.clock.Now().Add(-olderThan))
}

// ListActive returns every ACTIVE round, pending ones included.
func (a *App) ListActive(ctx context.Context) ([]*models.Round, error) {
	return a.repo.ListActiveRounds(ctx)
}

func (a *App) validateOpenRoundRequest(ctx context.Context, req OpenRoundRequest, now time.Time) error {
	if req.SeasonID == uuid.Nil {
		return fmt.Errorf("season_id is required: %w", auctionerr.ErrValidation)
	}
	if req.Position == "" {
		return fmt.Errorf("position is required: %w", auctionerr.ErrValidation)
	}
	if !req.EndTime.After(req.StartTime) {
		return fmt.Errorf("end_time must be after start_time: %w", auctionerr.ErrValidation)
	}
	if !req.EndTime.After(now) {
		return fmt.Errorf("end_time must be in the future: %w", auctionerr.ErrValidation)
	}
	if req.MinBid.IsNegative() || !money.HasValidScale(req.MinBid) {
		return fmt.Errorf("min_bid %s is not a valid amount: %w", req.MinBid, auctionerr.ErrValidation)
	}
	if len(req.Metadata) > 0 && !json.Valid(req.Metadata) {
		return fmt.Errorf("metadata must be valid JSON: %w", auctionerr.ErrValidation)
	}

	switch req.Type {
	case models.RoundTypeSingle:
		if req.PlayerID == nil {
			return fmt.Errorf("single rounds require player_id: %w", auctionerr.ErrValidation)
		}
		player, err := a.repo.GetPlayer(ctx, *req.PlayerID)
		if err != nil {
			return err
		}
		if player.SeasonID != req.SeasonID || player.Position != req.Position {
			return fmt.Errorf("player %s is not a %s in this season: %w", player.ID, req.Position, auctionerr.ErrValidation)
		}
	case models.RoundTypeBulk:
		if req.PlayerID != nil {
			return fmt.Errorf("bulk rounds cannot name a player: %w", auctionerr.ErrValidation)
		}
	default:
		return fmt.Errorf("invalid round_type %q: %w", req.Type, auctionerr.ErrValidation)
	}
	return nil
}
