package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// BidRepository defines what the bid app layer needs from the repository
type BidRepository interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
	GetTeamBudget(ctx context.Context, teamID, seasonID uuid.UUID) (*models.TeamBudget, error)
	GetAllocationForPlayer(ctx context.Context, playerID, seasonID uuid.UUID) (*models.Allocation, error)
	UpsertBid(ctx context.Context, req repository.UpsertBidRequest) (*models.Bid, error)
	ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error)
	ListBidsForTeam(ctx context.Context, roundID, teamID uuid.UUID) ([]*models.Bid, error)
}

// App is the bid store
type App struct {
	repo  BidRepository
	clock clockwork.Clock
}

// NewApp creates a new bid App
func NewApp(repo BidRepository, clock clockwork.Clock) *App {
	return &App{
		repo:  repo,
		clock: clock,
	}
}

// SubmitBid validates and stores a bid. The budget check is against the
// team's raw remaining budget; nothing is reserved or deducted here.
func (a *App) SubmitBid(ctx context.Context, req SubmitBidRequest) (*models.Bid, error) {
	if err := validateSubmitBidRequest(req); err != nil {
		return nil, err
	}

	r, err := a.repo.GetRound(ctx, req.RoundID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	if err := round.CheckAcceptsBids(r, now); err != nil {
		return nil, err
	}
	if req.Amount.LessThan(r.MinBid) {
		return nil, fmt.Errorf("amount %s is below the round minimum %s: %w",
			money.Format(req.Amount), money.Format(r.MinBid), auctionerr.ErrValidation)
	}

	if err := a.checkPlayerInRound(ctx, r, req.PlayerID); err != nil {
		return nil, err
	}

	budget, err := a.repo.GetTeamBudget(ctx, req.TeamID, r.SeasonID)
	if err != nil {
		return nil, err
	}
	if !budget.HasCapacity() {
		return nil, fmt.Errorf("team %s squad is full (%d/%d): %w",
			req.TeamID, budget.SquadUsed, budget.SquadCap, auctionerr.ErrTeamNotEligible)
	}
	if !budget.CanAfford(req.Amount) {
		return nil, fmt.Errorf("team %s has %s left, bid is %s: %w",
			req.TeamID, money.Format(budget.RemainingBudget), money.Format(req.Amount), auctionerr.ErrInsufficientBudget)
	}

	stored, err := a.repo.UpsertBid(ctx, repository.UpsertBidRequest{
		RoundID:     req.RoundID,
		PlayerID:    req.PlayerID,
		TeamID:      req.TeamID,
		Amount:      req.Amount,
		SubmittedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store bid: %w", err)
	}

	log.Info().
		Str("round_id", req.RoundID.String()).
		Str("player_id", req.PlayerID.String()).
		Str("team_id", req.TeamID.String()).
		Msg("bid stored")
	return stored, nil
}

// ListBidsForPlayer returns every bid for the player in the round, highest
// amount first and earliest submission first within an amount.
func (a *App) ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error) {
	if roundID == uuid.Nil || playerID == uuid.Nil {
		return nil, fmt.Errorf("round_id and player_id are required: %w", auctionerr.ErrValidation)
	}
	bids, err := a.repo.ListBidsForPlayer(ctx, roundID, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// ListBidsForTeam returns a team's own bids in the round
func (a *App) ListBidsForTeam(ctx context.Context, roundID, teamID uuid.UUID) ([]*models.Bid, error) {
	if roundID == uuid.Nil || teamID == uuid.Nil {
		return nil, fmt.Errorf("round_id and team_id are required: %w", auctionerr.ErrValidation)
	}
	bids, err := a.repo.ListBidsForTeam(ctx, roundID, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team bids: %w", err)
	}
	return bids, nil
}

func (a *App) checkPlayerInRound(ctx context.Context, r *models.Round, playerID uuid.UUID) error {
	if r.Type == models.RoundTypeSingle && (r.PlayerID == nil || *r.PlayerID != playerID) {
		return fmt.Errorf("player %s is not on offer in round %s: %w", playerID, r.ID, auctionerr.ErrValidation)
	}

	player, err := a.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if player.SeasonID != r.SeasonID || player.Position != r.Position {
		return fmt.Errorf("player %s is not a %s in this season: %w", playerID, r.Position, auctionerr.ErrValidation)
	}

	_, err = a.repo.GetAllocationForPlayer(ctx, playerID, r.SeasonID)
	switch {
	case err == nil:
		return fmt.Errorf("player %s: %w", playerID, auctionerr.ErrAlreadyAllocated)
	case errors.Is(err, auctionerr.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check allocation: %w", err)
	}
}

func validateSubmitBidRequest(req SubmitBidRequest) error {
	if req.RoundID == uuid.Nil {
		return fmt.Errorf("round_id is required: %w", auctionerr.ErrValidation)
	}
	if req.PlayerID == uuid.Nil {
		return fmt.Errorf("player_id is required: %w", auctionerr.ErrValidation)
	}
	if req.TeamID == uuid.Nil {
		return fmt.Errorf("team_id is required: %w", auctionerr.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive: %w", auctionerr.ErrValidation)
	}
	if !money.HasValidScale(req.Amount) {
		return fmt.Errorf("amount %s has more than %d decimal places: %w", req.Amount, money.Scale, auctionerr.ErrValidation)
	}
	return nil
}
