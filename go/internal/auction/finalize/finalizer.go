// Package finalize drives expired rounds from ACTIVE to COMPLETED. It has
// no timer of its own: callers trigger it explicitly or lazily from read
// traffic, and every entry point is idempotent.
package finalize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/mcdev12/leagueauction/go/internal/auction/allocation"
	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/events"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// RoundLifecycle is what the finalizer needs from the round app
type RoundLifecycle interface {
	GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error)
	BeginFinalizing(ctx context.Context, id uuid.UUID) (*models.Round, error)
	MarkPassCompleted(ctx context.Context, id uuid.UUID) (*models.Round, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.Round, bool, error)
	ResetStuck(ctx context.Context, id uuid.UUID) (*models.Round, error)
	CloseBidding(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error)
	ListDueForSettlement(ctx context.Context, limit int32) ([]*models.Round, error)
}

// Allocator is what the finalizer needs from the allocation engine
type Allocator interface {
	AllocateRound(ctx context.Context, r *models.Round) (*allocation.Report, error)
	AwardTiebreak(ctx context.Context, r *models.Round, res *tiebreak.Resolution) (allocation.PlayerOutcome, error)
}

// TiebreakResolver is what the finalizer needs from the tiebreak app
type TiebreakResolver interface {
	ListActiveForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Tiebreaker, error)
	Resolve(ctx context.Context, id uuid.UUID) (*tiebreak.Resolution, error)
}

// AllocationLister counts what a round allocated for the completion event
type AllocationLister interface {
	ListAllocationsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Allocation, error)
}

type Finalizer struct {
	rounds      RoundLifecycle
	allocator   Allocator
	tiebreaks   TiebreakResolver
	allocations AllocationLister
	events      events.Sink
	clock       clockwork.Clock
	cfg         Config

	sweeps  singleflight.Group
	limiter *rate.Limiter
}

func NewFinalizer(
	rounds RoundLifecycle,
	allocator Allocator,
	tiebreaks TiebreakResolver,
	allocations AllocationLister,
	sink events.Sink,
	clock clockwork.Clock,
	cfg Config,
) *Finalizer {
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = DefaultConfig().SweepLimit
	}
	if cfg.SweepTimeout <= 0 {
		cfg.SweepTimeout = DefaultConfig().SweepTimeout
	}
	limit := rate.Inf
	if cfg.SweepMinInterval > 0 {
		limit = rate.Every(cfg.SweepMinInterval)
	}
	return &Finalizer{
		rounds:      rounds,
		allocator:   allocator,
		tiebreaks:   tiebreaks,
		allocations: allocations,
		events:      sink,
		clock:       clock,
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// CheckAndFinalizeExpiredRound settles the round if its bidding window has
// closed. It is a no-op for rounds that are still open, already completed,
// or being finalized by someone else. Errors during settlement wrap
// auctionerr.ErrFinalizationFailure and leave the round FINALIZING.
func (f *Finalizer) CheckAndFinalizeExpiredRound(ctx context.Context, roundID uuid.UUID) (*Result, error) {
	return f.check(ctx, roundID, false)
}

// ForceFinalize is the admin trigger: it closes bidding now if the window
// is still open, then settles the round.
func (f *Finalizer) ForceFinalize(ctx context.Context, roundID uuid.UUID) (*Result, error) {
	r, err := f.rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case models.RoundStatusActive:
		now := f.clock.Now()
		if !round.IsExpired(r, now) {
			if _, err := f.rounds.CloseBidding(ctx, roundID, now); err != nil {
				return nil, err
			}
			log.Info().Str("round_id", roundID.String()).Msg("bidding closed early by admin")
		}
	case models.RoundStatusFinalizing:
		if r.PassCompletedAt == nil {
			return nil, fmt.Errorf("round %s has an unfinished allocation pass, reset it first: %w",
				roundID, auctionerr.ErrStateConflict)
		}
	}

	return f.check(ctx, roundID, true)
}

// ResetStuck returns a FINALIZING round to ACTIVE so it can be finalized again.
func (f *Finalizer) ResetStuck(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	r, err := f.rounds.ResetStuck(ctx, roundID)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, f.events, r.ID, events.EventTypeRoundReset, events.RoundResetPayload{
		RoundID: r.ID.String(),
		ResetAt: r.UpdatedAt,
	})
	return r, nil
}

// Sweep checks every round due for settlement. Concurrent callers share one
// sweep and calls faster than the configured interval are dropped. The sweep
// is bounded by SweepTimeout, not by the caller's ctx. Per-round failures are
// logged and counted, never returned.
func (f *Finalizer) Sweep(ctx context.Context) (*SweepResult, error) {
	if !f.limiter.Allow() {
		return &SweepResult{Throttled: true}, nil
	}

	v, err, shared := f.sweeps.Do("sweep", func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.SweepTimeout)
		defer cancel()
		return f.sweep(sctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Msg("joined in-flight sweep")
	}
	return v.(*SweepResult), nil
}

func (f *Finalizer) sweep(ctx context.Context) (*SweepResult, error) {
	due, err := f.rounds.ListDueForSettlement(ctx, f.cfg.SweepLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds due for settlement: %w", err)
	}

	res := &SweepResult{}
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		res.Checked++
		out, err := f.CheckAndFinalizeExpiredRound(ctx, r.ID)
		if err != nil {
			res.Failed++
			log.Error().Err(err).Str("round_id", r.ID.String()).Msg("sweep failed to finalize round")
			continue
		}
		if out.Finalized {
			res.Finalized++
		}
	}

	if res.Checked > 0 {
		log.Info().
			Int("checked", res.Checked).
			Int("finalized", res.Finalized).
			Int("failed", res.Failed).
			Msg("sweep finished")
	}
	return res, nil
}

func (f *Finalizer) check(ctx context.Context, roundID uuid.UUID, forced bool) (*Result, error) {
	r, err := f.rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	res := &Result{RoundID: r.ID, Status: r.Status}

	switch r.Status {
	case models.RoundStatusCompleted:
		return res, nil

	case models.RoundStatusFinalizing:
		if r.PassCompletedAt == nil {
			// in progress elsewhere, or stuck until an admin resets it
			return res, nil
		}
		return f.settleTiebreaks(ctx, r, res)

	default:
		if !round.IsExpired(r, f.clock.Now()) {
			return res, nil
		}
		claimed, err := f.rounds.BeginFinalizing(ctx, roundID)
		if errors.Is(err, auctionerr.ErrStateConflict) {
			log.Debug().Str("round_id", roundID.String()).Msg("round already claimed by another finalizer")
			return res, nil
		}
		if err != nil {
			return nil, f.fail(r, "begin finalizing", err)
		}
		res.Claimed, res.Status = true, claimed.Status

		finalizingAt := f.clock.Now()
		if claimed.FinalizingAt != nil {
			finalizingAt = *claimed.FinalizingAt
		}
		events.Emit(ctx, f.events, r.ID, events.EventTypeRoundFinalizing, events.RoundFinalizingPayload{
			RoundID:      r.ID.String(),
			Position:     r.Position,
			FinalizingAt: finalizingAt,
			Forced:       forced,
		})
		return f.runPass(ctx, claimed, res)
	}
}

func (f *Finalizer) runPass(ctx context.Context, r *models.Round, res *Result) (*Result, error) {
	report, err := f.allocator.AllocateRound(ctx, r)
	if err != nil {
		return nil, f.fail(r, "allocation pass", err)
	}
	res.Report = report

	passed, err := f.rounds.MarkPassCompleted(ctx, r.ID)
	if err != nil {
		return nil, f.fail(r, "mark pass completed", err)
	}
	return f.settleTiebreaks(ctx, passed, res)
}

// settleTiebreaks resolves every ready tiebreaker and completes the round
// once none is left open.
func (f *Finalizer) settleTiebreaks(ctx context.Context, r *models.Round, res *Result) (*Result, error) {
	open, err := f.tiebreaks.ListActiveForRound(ctx, r.ID)
	if err != nil {
		return nil, f.fail(r, "list tiebreakers", err)
	}

	now := f.clock.Now()
	pending := 0
	for _, tb := range open {
		if !tiebreak.IsReady(tb, now) {
			pending++
			continue
		}
		resolution, err := f.tiebreaks.Resolve(ctx, tb.ID)
		switch {
		case errors.Is(err, auctionerr.ErrTiebreakerPending):
			pending++
			continue
		case errors.Is(err, auctionerr.ErrStateConflict):
			continue
		case err != nil:
			return nil, f.fail(r, "resolve tiebreaker", err)
		}

		out, err := f.allocator.AwardTiebreak(ctx, r, resolution)
		if err != nil {
			return nil, f.fail(r, "award tiebreaker", err)
		}
		if out.Kind == allocation.OutcomeTiebreakPending {
			pending++
		}
	}

	res.Status = r.Status
	res.PendingTiebreakers = pending
	if pending > 0 {
		log.Info().
			Str("round_id", r.ID.String()).
			Int("pending_tiebreakers", pending).
			Msg("round waiting on tiebreakers")
		return res, nil
	}
	return f.complete(ctx, r, res)
}

func (f *Finalizer) complete(ctx context.Context, r *models.Round, res *Result) (*Result, error) {
	done, completedNow, err := f.rounds.Complete(ctx, r.ID)
	if errors.Is(err, auctionerr.ErrStateConflict) {
		// a tiebreaker opened or the round was reset since we looked
		return res, nil
	}
	if err != nil {
		return nil, f.fail(r, "complete", err)
	}
	res.Status = done.Status
	if !completedNow {
		return res, nil
	}
	res.Finalized = true

	allocs, err := f.allocations.ListAllocationsForRound(ctx, r.ID)
	if err != nil {
		log.Warn().Err(err).Str("round_id", r.ID.String()).Msg("failed to count allocations for completion event")
	}
	completedAt := f.clock.Now()
	if done.CompletedAt != nil {
		completedAt = *done.CompletedAt
	}
	events.Emit(ctx, f.events, r.ID, events.EventTypeRoundCompleted, events.RoundCompletedPayload{
		RoundID:         r.ID.String(),
		Position:        r.Position,
		AllocationCount: len(allocs),
		CompletedAt:     completedAt,
	})

	log.Info().
		Str("round_id", r.ID.String()).
		Str("position", r.Position).
		Int("allocations", len(allocs)).
		Msg("round completed")
	return res, nil
}

func (f *Finalizer) fail(r *models.Round, step string, err error) error {
	log.Error().
		Err(err).
		Str("round_id", r.ID.String()).
		Str("step", step).
		Msg("finalization failed, round left FINALIZING")
	return fmt.Errorf("round %s %s: %w: %w", r.ID, step, auctionerr.ErrFinalizationFailure, err)
}
