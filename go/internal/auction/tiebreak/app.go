package tiebreak

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// TiebreakerRepository defines what the tiebreak app layer needs from the repository
type TiebreakerRepository interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	GetTeamBudget(ctx context.Context, teamID, seasonID uuid.UUID) (*models.TeamBudget, error)
	OpenTiebreaker(ctx context.Context, req repository.OpenTiebreakerRequest) (*models.Tiebreaker, bool, error)
	GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error)
	ListActiveTiebreakersForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Tiebreaker, error)
	SubmitTiebreakerEntry(ctx context.Context, req repository.SubmitTiebreakerEntryRequest) (*models.TiebreakerEntry, error)
	SettleTiebreaker(ctx context.Context, req repository.SettleTiebreakerRequest) (*repository.SettleTiebreakerResult, error)
}

// App is the tiebreaker engine
type App struct {
	repo   TiebreakerRepository
	events events.Sink
	clock  clockwork.Clock
	cfg    Config
}

// NewApp creates a new tiebreak App
func NewApp(repo TiebreakerRepository, sink events.Sink, clock clockwork.Clock, cfg Config) *App {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if !cfg.MinIncrement.IsPositive() {
		cfg.MinIncrement = def.MinIncrement
	}
	return &App{
		repo:   repo,
		events: sink,
		clock:  clock,
		cfg:    cfg,
	}
}

// IsReady reports whether tb can be resolved at now: every entry submitted
// or the deadline has passed.
func IsReady(tb *models.Tiebreaker, now time.Time) bool {
	if !now.Before(tb.Deadline) {
		return true
	}
	for _, e := range tb.Entries {
		if !e.Submitted() {
			return false
		}
	}
	return true
}

// OpenTiebreaker opens a tiebreaker for the tied teams. If one is already
// ACTIVE for the round and player it is returned with created=false.
func (a *App) OpenTiebreaker(ctx context.Context, req OpenRequest) (*models.Tiebreaker, bool, error) {
	if err := validateOpenRequest(req); err != nil {
		return nil, false, err
	}

	now := a.clock.Now()
	tb, created, err := a.repo.OpenTiebreaker(ctx, repository.OpenTiebreakerRequest{
		RoundID:    req.RoundID,
		PlayerID:   req.PlayerID,
		ParentID:   req.ParentID,
		TiedAmount: req.TiedAmount,
		Deadline:   now.Add(a.cfg.Window),
		CreatedAt:  now,
		Seats:      req.Seats,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open tiebreaker: %w", err)
	}

	if created {
		a.emitOpened(ctx, tb)
	}
	return tb, created, nil
}

// GetTiebreaker retrieves a tiebreaker with its entries
func (a *App) GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error) {
	tb, err := a.repo.GetTiebreaker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiebreaker: %w", err)
	}
	return tb, nil
}

// ListActiveForRound returns the round's open tiebreakers
func (a *App) ListActiveForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Tiebreaker, error) {
	return a.repo.ListActiveTiebreakersForRound(ctx, roundID)
}

// SubmitTiebreakerBid records a tied team's new bid. A team may replace its
// bid until the tiebreaker closes.
func (a *App) SubmitTiebreakerBid(ctx context.Context, req SubmitRequest) (*models.TiebreakerEntry, error) {
	if req.TiebreakerID == uuid.Nil || req.TeamID == uuid.Nil {
		return nil, fmt.Errorf("tiebreaker_id and team_id are required: %w", auctionerr.ErrValidation)
	}
	if !req.Amount.IsPositive() || !money.HasValidScale(req.Amount) {
		return nil, fmt.Errorf("amount %s is not a valid amount: %w", req.Amount, auctionerr.ErrValidation)
	}

	tb, err := a.repo.GetTiebreaker(ctx, req.TiebreakerID)
	if err != nil {
		return nil, err
	}
	now := a.clock.Now()
	if tb.Status != models.TiebreakerStatusActive || !now.Before(tb.Deadline) {
		return nil, fmt.Errorf("tiebreaker %s is closed: %w", tb.ID, auctionerr.ErrStateConflict)
	}
	if !hasSeat(tb, req.TeamID) {
		return nil, fmt.Errorf("team %s is not part of tiebreaker %s: %w", req.TeamID, tb.ID, auctionerr.ErrTeamNotEligible)
	}
	if floor := tb.TiedAmount.Add(a.cfg.MinIncrement); req.Amount.LessThan(floor) {
		return nil, fmt.Errorf("amount must be at least %s: %w", money.Format(floor), auctionerr.ErrValidation)
	}

	r, err := a.repo.GetRound(ctx, tb.RoundID)
	if err != nil {
		return nil, err
	}
	budget, err := a.repo.GetTeamBudget(ctx, req.TeamID, r.SeasonID)
	if err != nil {
		return nil, err
	}
	if !budget.HasCapacity() {
		return nil, fmt.Errorf("team %s squad is full: %w", req.TeamID, auctionerr.ErrTeamNotEligible)
	}
	if !budget.CanAfford(req.Amount) {
		return nil, fmt.Errorf("team %s has %s left, bid is %s: %w",
			req.TeamID, money.Format(budget.RemainingBudget), money.Format(req.Amount), auctionerr.ErrInsufficientBudget)
	}

	entry, err := a.repo.SubmitTiebreakerEntry(ctx, repository.SubmitTiebreakerEntryRequest{
		TiebreakerID: tb.ID,
		TeamID:       req.TeamID,
		Amount:       req.Amount,
		SubmittedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit tiebreaker bid: %w", err)
	}

	log.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("round_id", tb.RoundID.String()).
		Str("team_id", req.TeamID.String()).
		Msg("tiebreaker bid stored")
	return entry, nil
}

// Resolve decides a ready tiebreaker. An escalation is persisted here: the
// tiebreaker is completed and its child opened in one transaction. A winner
// is only returned; the allocation engine completes the tiebreaker when it
// commits the award. Settling refuses with ErrTiebreakerPending if an entry
// changed after the decision, and the next check decides again.
func (a *App) Resolve(ctx context.Context, id uuid.UUID) (*Resolution, error) {
	tb, err := a.repo.GetTiebreaker(ctx, id)
	if err != nil {
		return nil, err
	}
	if tb.Status != models.TiebreakerStatusActive {
		return nil, fmt.Errorf("tiebreaker %s is already %s: %w", tb.ID, tb.Status, auctionerr.ErrStateConflict)
	}
	now := a.clock.Now()
	if !IsReady(tb, now) {
		return nil, fmt.Errorf("tiebreaker %s closes at %s: %w", tb.ID, tb.Deadline.Format(time.RFC3339), auctionerr.ErrTiebreakerPending)
	}

	decision, err := Decide(tb)
	if err != nil {
		return nil, err
	}
	if decision.Outcome == OutcomeWinner {
		return &Resolution{Tiebreaker: tb, Ranking: decision.Ranking}, nil
	}

	parentID := tb.ID
	res, err := a.repo.SettleTiebreaker(ctx, repository.SettleTiebreakerRequest{
		TiebreakerID: tb.ID,
		RoundID:      tb.RoundID,
		PlayerID:     tb.PlayerID,
		ResolvedAt:   now,
		Entries:      tb.Entries,
		Escalation: &repository.OpenTiebreakerRequest{
			RoundID:    tb.RoundID,
			PlayerID:   tb.PlayerID,
			ParentID:   &parentID,
			TiedAmount: decision.TiedAmount,
			Deadline:   now.Add(a.cfg.Window),
			CreatedAt:  now,
			Seats:      decision.Seats,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to escalate tiebreaker: %w", err)
	}

	log.Info().
		Str("tiebreaker_id", tb.ID.String()).
		Str("child_id", res.Child.ID.String()).
		Int("teams", len(res.Child.Entries)).
		Str("tied_amount", money.Format(decision.TiedAmount)).
		Msg("tiebreaker escalated")

	events.Emit(ctx, a.events, tb.RoundID, events.EventTypeTiebreakerResolved, events.TiebreakerResolvedPayload{
		TiebreakerID: tb.ID.String(),
		RoundID:      tb.RoundID.String(),
		PlayerID:     tb.PlayerID.String(),
		TeamIDs:      teamIDStrings(tb),
		Escalated:    true,
	})
	a.emitOpened(ctx, res.Child)

	return &Resolution{Tiebreaker: res.Tiebreaker, Escalated: true, Child: res.Child}, nil
}

func (a *App) emitOpened(ctx context.Context, tb *models.Tiebreaker) {
	payload := events.TiebreakerOpenedPayload{
		TiebreakerID: tb.ID.String(),
		RoundID:      tb.RoundID.String(),
		PlayerID:     tb.PlayerID.String(),
		TeamIDs:      teamIDStrings(tb),
		TiedAmount:   money.Format(tb.TiedAmount),
		Deadline:     tb.Deadline,
	}
	if tb.ParentID != nil {
		payload.ParentID = tb.ParentID.String()
	}
	events.Emit(ctx, a.events, tb.RoundID, events.EventTypeTiebreakerOpened, payload)
}

func validateOpenRequest(req OpenRequest) error {
	if req.RoundID == uuid.Nil || req.PlayerID == uuid.Nil {
		return fmt.Errorf("round_id and player_id are required: %w", auctionerr.ErrValidation)
	}
	if len(req.Seats) < 2 {
		return fmt.Errorf("a tiebreaker needs at least two teams, got %d: %w", len(req.Seats), auctionerr.ErrValidation)
	}
	seen := make(map[uuid.UUID]struct{}, len(req.Seats))
	for _, s := range req.Seats {
		if _, dup := seen[s.TeamID]; dup {
			return fmt.Errorf("team %s appears twice: %w", s.TeamID, auctionerr.ErrValidation)
		}
		seen[s.TeamID] = struct{}{}
	}
	if !req.TiedAmount.IsPositive() {
		return fmt.Errorf("tied amount must be positive: %w", auctionerr.ErrValidation)
	}
	return nil
}

func hasSeat(tb *models.Tiebreaker, teamID uuid.UUID) bool {
	for _, e := range tb.Entries {
		if e.TeamID == teamID {
			return true
		}
	}
	return false
}

func teamIDStrings(tb *models.Tiebreaker) []string {
	ids := tb.TeamIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
