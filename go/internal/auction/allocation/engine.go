package allocation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// AllocationRepository defines what the engine needs from the repository
type AllocationRepository interface {
	ListBidsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Bid, error)
	GetAllocationForPlayer(ctx context.Context, playerID, seasonID uuid.UUID) (*models.Allocation, error)
	GetActiveTiebreakerForPlayer(ctx context.Context, roundID, playerID uuid.UUID) (*models.Tiebreaker, error)
	CommitAllocation(ctx context.Context, req repository.CommitAllocationRequest) (*models.Allocation, error)
	MarkPlayerUnsold(ctx context.Context, roundID, playerID uuid.UUID) error
	SettleTiebreaker(ctx context.Context, req repository.SettleTiebreakerRequest) (*repository.SettleTiebreakerResult, error)
}

// TiebreakOpener opens tiebreakers for ties found at the top of a player's bids.
type TiebreakOpener interface {
	OpenTiebreaker(ctx context.Context, req tiebreak.OpenRequest) (*models.Tiebreaker, bool, error)
}

// Engine decides and commits one winner per player.
type Engine struct {
	repo      AllocationRepository
	tiebreaks TiebreakOpener
	events    events.Sink
	clock     clockwork.Clock
	cfg       Config
}

func NewEngine(repo AllocationRepository, tiebreaks TiebreakOpener, sink events.Sink, clock clockwork.Clock, cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyUnsold
	}
	return &Engine{
		repo:      repo,
		tiebreaks: tiebreaks,
		events:    sink,
		clock:     clock,
		cfg:       cfg,
	}
}

// AllocateRound settles every player that received a bid in the round.
// Players are independent and run on a bounded worker pool; the first
// error cancels the rest.
func (e *Engine) AllocateRound(ctx context.Context, r *models.Round) (*Report, error) {
	bids, err := e.repo.ListBidsForRound(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bids: %w", err)
	}

	players, byPlayer := groupByPlayer(bids)
	report := &Report{RoundID: r.ID, Outcomes: make([]PlayerOutcome, len(players))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, playerID := range players {
		g.Go(func() error {
			out, err := e.SettlePlayer(gctx, r, playerID, byPlayer[playerID])
			if err != nil {
				return fmt.Errorf("player %s: %w", playerID, err)
			}
			report.Outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	log.Info().
		Str("round_id", r.ID.String()).
		Int("players", len(players)).
		Int("allocated", report.Count(OutcomeAllocated)).
		Int("unsold", report.Count(OutcomeUnsold)).
		Int("tiebreaks", report.Count(OutcomeTiebreakPending)).
		Msg("allocation pass finished")
	return report, nil
}

// SettlePlayer settles one player from its bids. A unique top bid is
// committed; a tie at the top opens a tiebreaker and reports it pending.
func (e *Engine) SettlePlayer(ctx context.Context, r *models.Round, playerID uuid.UUID, bids []*models.Bid) (PlayerOutcome, error) {
	out := PlayerOutcome{PlayerID: playerID}

	_, err := e.repo.GetAllocationForPlayer(ctx, playerID, r.SeasonID)
	switch {
	case err == nil:
		out.Kind, out.Reason = OutcomeSkipped, "already allocated"
		return out, nil
	case !errors.Is(err, auctionerr.ErrNotFound):
		return out, err
	}

	tb, err := e.repo.GetActiveTiebreakerForPlayer(ctx, r.ID, playerID)
	switch {
	case err == nil:
		out.Kind, out.Tiebreaker = OutcomeTiebreakPending, tb
		return out, nil
	case !errors.Is(err, auctionerr.ErrNotFound):
		return out, err
	}

	if settled(bids) {
		out.Kind, out.Reason = OutcomeSkipped, "already settled"
		return out, nil
	}

	ranked := rankBids(bids)
	for len(ranked) > 0 {
		top := topTier(ranked)
		if len(top) > 1 {
			return e.openTiebreak(ctx, r, playerID, top)
		}

		winner := top[0]
		alloc, err := e.repo.CommitAllocation(ctx, repository.CommitAllocationRequest{
			RoundID:  r.ID,
			PlayerID: playerID,
			SeasonID: r.SeasonID,
			TeamID:   winner.TeamID,
			Amount:   winner.Amount,
			At:       e.clock.Now(),
		})
		if err == nil {
			e.emitAllocated(ctx, alloc)
			out.Kind, out.Allocation = OutcomeAllocated, alloc
			return out, nil
		}
		if errors.Is(err, auctionerr.ErrAlreadyAllocated) {
			out.Kind, out.Reason = OutcomeSkipped, "already allocated"
			return out, nil
		}
		if !isRecheckFailure(err) {
			return out, err
		}

		log.Info().
			Err(err).
			Str("round_id", r.ID.String()).
			Str("player_id", playerID.String()).
			Str("team_id", winner.TeamID.String()).
			Str("policy", string(e.cfg.Policy)).
			Msg("winner failed commit re-check")
		if e.cfg.Policy != PolicyNextHighest {
			return e.markUnsold(ctx, r, playerID, err.Error())
		}
		ranked = ranked[1:]
	}

	return e.markUnsold(ctx, r, playerID, "no eligible bidder")
}

// AwardTiebreak commits the winner of a resolved tiebreaker. The tiebreaker
// is completed in the same transaction as the allocation; losing that race
// to another resolver yields OutcomeSkipped. If an entry changed after the
// decision nothing is written and the outcome stays OutcomeTiebreakPending.
func (e *Engine) AwardTiebreak(ctx context.Context, r *models.Round, res *tiebreak.Resolution) (PlayerOutcome, error) {
	tb := res.Tiebreaker
	out := PlayerOutcome{PlayerID: tb.PlayerID, Tiebreaker: tb}
	if res.Escalated {
		out.Kind, out.Tiebreaker = OutcomeTiebreakPending, res.Child
		return out, nil
	}

	reason := "no eligible bidder"
	for i, c := range res.Ranking {
		if i > 0 && e.cfg.Policy != PolicyNextHighest {
			break
		}
		tbID := tb.ID
		settled, err := e.repo.SettleTiebreaker(ctx, repository.SettleTiebreakerRequest{
			TiebreakerID: tb.ID,
			RoundID:      tb.RoundID,
			PlayerID:     tb.PlayerID,
			ResolvedAt:   e.clock.Now(),
			Entries:      tb.Entries,
			Award: &repository.CommitAllocationRequest{
				RoundID:      tb.RoundID,
				PlayerID:     tb.PlayerID,
				SeasonID:     r.SeasonID,
				TeamID:       c.TeamID,
				Amount:       c.Amount,
				TiebreakerID: &tbID,
				At:           e.clock.Now(),
			},
		})
		if err == nil {
			e.emitTiebreakResolved(ctx, settled.Tiebreaker)
			e.emitAllocated(ctx, settled.Allocation)
			out.Kind, out.Allocation, out.Tiebreaker = OutcomeAllocated, settled.Allocation, settled.Tiebreaker
			return out, nil
		}
		if errors.Is(err, auctionerr.ErrStateConflict) {
			out.Kind, out.Reason = OutcomeSkipped, "tiebreaker already resolved"
			return out, nil
		}
		if errors.Is(err, auctionerr.ErrTiebreakerPending) {
			// a team changed its bid after the decision
			out.Kind, out.Reason = OutcomeTiebreakPending, err.Error()
			return out, nil
		}
		if !isRecheckFailure(err) {
			return out, err
		}
		reason = err.Error()
		log.Info().
			Err(err).
			Str("tiebreaker_id", tb.ID.String()).
			Str("team_id", c.TeamID.String()).
			Msg("tiebreaker winner failed commit re-check")
	}

	settled, err := e.repo.SettleTiebreaker(ctx, repository.SettleTiebreakerRequest{
		TiebreakerID: tb.ID,
		RoundID:      tb.RoundID,
		PlayerID:     tb.PlayerID,
		ResolvedAt:   e.clock.Now(),
		Entries:      tb.Entries,
	})
	if err != nil {
		if errors.Is(err, auctionerr.ErrStateConflict) {
			out.Kind, out.Reason = OutcomeSkipped, "tiebreaker already resolved"
			return out, nil
		}
		if errors.Is(err, auctionerr.ErrTiebreakerPending) {
			out.Kind, out.Reason = OutcomeTiebreakPending, err.Error()
			return out, nil
		}
		return out, err
	}
	e.emitTiebreakResolved(ctx, settled.Tiebreaker)
	e.emitUnsold(ctx, r.ID, tb.PlayerID, reason)
	out.Kind, out.Reason, out.Tiebreaker = OutcomeUnsold, reason, settled.Tiebreaker
	return out, nil
}

func (e *Engine) openTiebreak(ctx context.Context, r *models.Round, playerID uuid.UUID, top []*models.Bid) (PlayerOutcome, error) {
	seats := make([]repository.TiebreakerSeat, len(top))
	for i, b := range top {
		seats[i] = repository.TiebreakerSeat{TeamID: b.TeamID, OriginalSubmittedAt: b.SubmittedAt}
	}
	tb, _, err := e.tiebreaks.OpenTiebreaker(ctx, tiebreak.OpenRequest{
		RoundID:    r.ID,
		PlayerID:   playerID,
		Seats:      seats,
		TiedAmount: top[0].Amount,
	})
	if err != nil {
		return PlayerOutcome{PlayerID: playerID}, err
	}
	return PlayerOutcome{PlayerID: playerID, Kind: OutcomeTiebreakPending, Tiebreaker: tb}, nil
}

func (e *Engine) markUnsold(ctx context.Context, r *models.Round, playerID uuid.UUID, reason string) (PlayerOutcome, error) {
	if err := e.repo.MarkPlayerUnsold(ctx, r.ID, playerID); err != nil {
		return PlayerOutcome{PlayerID: playerID}, err
	}
	e.emitUnsold(ctx, r.ID, playerID, reason)
	return PlayerOutcome{PlayerID: playerID, Kind: OutcomeUnsold, Reason: reason}, nil
}

func (e *Engine) emitAllocated(ctx context.Context, a *models.Allocation) {
	payload := events.PlayerAllocatedPayload{
		RoundID:  a.RoundID.String(),
		PlayerID: a.PlayerID.String(),
		TeamID:   a.TeamID.String(),
		Amount:   money.Format(a.Amount),
	}
	if a.TiebreakerID != nil {
		payload.TiebreakerID = a.TiebreakerID.String()
	}
	events.Emit(ctx, e.events, a.RoundID, events.EventTypePlayerAllocated, payload)
}

func (e *Engine) emitUnsold(ctx context.Context, roundID, playerID uuid.UUID, reason string) {
	events.Emit(ctx, e.events, roundID, events.EventTypePlayerUnsold, events.PlayerUnsoldPayload{
		RoundID:  roundID.String(),
		PlayerID: playerID.String(),
		Reason:   reason,
	})
}

func (e *Engine) emitTiebreakResolved(ctx context.Context, tb *models.Tiebreaker) {
	ids := tb.TeamIDs()
	teamIDs := make([]string, len(ids))
	for i, id := range ids {
		teamIDs[i] = id.String()
	}
	payload := events.TiebreakerResolvedPayload{
		TiebreakerID: tb.ID.String(),
		RoundID:      tb.RoundID.String(),
		PlayerID:     tb.PlayerID.String(),
		TeamIDs:      teamIDs,
	}
	if tb.WinnerTeamID != nil {
		payload.WinnerTeamID = tb.WinnerTeamID.String()
	}
	if tb.WinningAmount != nil {
		payload.WinningAmount = money.Format(*tb.WinningAmount)
	}
	events.Emit(ctx, e.events, tb.RoundID, events.EventTypeTiebreakerResolved, payload)
}

func isRecheckFailure(err error) bool {
	return errors.Is(err, auctionerr.ErrInsufficientBudget) || errors.Is(err, auctionerr.ErrTeamNotEligible)
}

// settled reports whether every bid already carries an outcome.
func settled(bids []*models.Bid) bool {
	if len(bids) == 0 {
		return false
	}
	for _, b := range bids {
		if b.IsWinning == nil {
			return false
		}
	}
	return true
}

// groupByPlayer returns player ids in first-seen order and their bids.
func groupByPlayer(bids []*models.Bid) ([]uuid.UUID, map[uuid.UUID][]*models.Bid) {
	var order []uuid.UUID
	by := make(map[uuid.UUID][]*models.Bid)
	for _, b := range bids {
		if _, ok := by[b.PlayerID]; !ok {
			order = append(order, b.PlayerID)
		}
		by[b.PlayerID] = append(by[b.PlayerID], b)
	}
	return order, by
}

// rankBids orders by amount desc, then submission asc, then team id.
func rankBids(bids []*models.Bid) []*models.Bid {
	ranked := make([]*models.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Amount.Cmp(ranked[j].Amount); c != 0 {
			return c > 0
		}
		if !ranked[i].SubmittedAt.Equal(ranked[j].SubmittedAt) {
			return ranked[i].SubmittedAt.Before(ranked[j].SubmittedAt)
		}
		return bytes.Compare(ranked[i].TeamID[:], ranked[j].TeamID[:]) < 0
	})
	return ranked
}

// topTier returns the leading bids that share the highest amount.
func topTier(ranked []*models.Bid) []*models.Bid {
	n := 1
	for n < len(ranked) && ranked[n].Amount.Equal(ranked[0].Amount) {
		n++
	}
	return ranked[:n]
}
