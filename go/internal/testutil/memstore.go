package testutil

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/auctionerr"
	"github.com/mcdev12/leagueauction/go/internal/auction/repository"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// MemStore is an in-memory stand-in for repository.Repository. Every method
// runs under one lock, so the compare-and-set and uniqueness rules of the
// SQL hold here too.
type MemStore struct {
	mu sync.Mutex

	players     map[uuid.UUID]*models.Player
	budgets     map[budgetKey]*models.TeamBudget
	rounds      map[uuid.UUID]*models.Round
	bids        map[bidKey]*models.Bid
	tiebreakers map[uuid.UUID]*models.Tiebreaker
	allocations map[budgetKey]*models.Allocation // keyed by (player, season)

	faults map[string]error
}

type budgetKey struct{ a, season uuid.UUID }

type bidKey struct{ round, player, team uuid.UUID }

func NewMemStore() *MemStore {
	return &MemStore{
		players:     make(map[uuid.UUID]*models.Player),
		budgets:     make(map[budgetKey]*models.TeamBudget),
		rounds:      make(map[uuid.UUID]*models.Round),
		bids:        make(map[bidKey]*models.Bid),
		tiebreakers: make(map[uuid.UUID]*models.Tiebreaker),
		allocations: make(map[budgetKey]*models.Allocation),
		faults:      make(map[string]error),
	}
}

// FailOn makes every call to the named method return err until cleared with a nil err.
func (s *MemStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *MemStore) fault(method string) error {
	return s.faults[method]
}

// AddPlayer seeds a player.
func (s *MemStore) AddPlayer(seasonID uuid.UUID, name, position string) *models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Player{ID: uuid.New(), SeasonID: seasonID, FullName: name, Position: position}
	s.players[p.ID] = p
	cp := *p
	return &cp
}

// AddTeam seeds a team budget.
func (s *MemStore) AddTeam(seasonID uuid.UUID, name string, budget decimal.Decimal, squadCap int) *models.TeamBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.TeamBudget{
		TeamID:          uuid.New(),
		SeasonID:        seasonID,
		TeamName:        name,
		StartingBudget:  budget,
		RemainingBudget: budget,
		SquadCap:        squadCap,
	}
	s.budgets[budgetKey{t.TeamID, seasonID}] = t
	cp := *t
	return &cp
}

// SetSquadUsed overrides a team's squad count.
func (s *MemStore) SetSquadUsed(teamID, seasonID uuid.UUID, used int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budgetKey{teamID, seasonID}].SquadUsed = used
}

// PutBid stores a bid as-is, bypassing validation.
func (s *MemStore) PutBid(roundID, playerID, teamID uuid.UUID, amount decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids[bidKey{roundID, playerID, teamID}] = &models.Bid{
		ID: uuid.New(), RoundID: roundID, PlayerID: playerID, TeamID: teamID, Amount: amount, SubmittedAt: at,
	}
}

// Allocations returns every allocation in the store.
func (s *MemStore) Allocations() []*models.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Allocation, 0, len(s.allocations))
	for _, a := range s.allocations {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func (s *MemStore) CreateRound(ctx context.Context, req repository.CreateRoundRequest) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CreateRound"); err != nil {
		return nil, err
	}
	if s.activeRoundExists(req.SeasonID, req.Position, uuid.Nil) {
		return nil, fmt.Errorf("an active round already exists for position %s: %w", req.Position, auctionerr.ErrStateConflict)
	}
	r := &models.Round{
		ID:        req.ID,
		SeasonID:  req.SeasonID,
		Position:  req.Position,
		Type:      req.Type,
		PlayerID:  req.PlayerID,
		Status:    models.RoundStatusActive,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		MinBid:    req.MinBid,
		Metadata:  req.Metadata,
		CreatedAt: req.CreatedAt,
		UpdatedAt: req.CreatedAt,
	}
	s.rounds[r.ID] = r
	return copyRound(r), nil
}

func (s *MemStore) activeRoundExists(seasonID uuid.UUID, position string, except uuid.UUID) bool {
	for _, r := range s.rounds {
		if r.ID != except && r.SeasonID == seasonID && r.Position == position && r.Status == models.RoundStatusActive {
			return true
		}
	}
	return false
}

func (s *MemStore) GetRound(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return nil, fmt.Errorf("round: %w", auctionerr.ErrNotFound)
	}
	return copyRound(r), nil
}

// casRound applies mutate when cond holds, otherwise ErrStateConflict.
func (s *MemStore) casRound(method string, id uuid.UUID, cond func(*models.Round) bool, mutate func(*models.Round)) (*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(method); err != nil {
		return nil, err
	}
	r, ok := s.rounds[id]
	if !ok || !cond(r) {
		return nil, fmt.Errorf("round %s cannot %s: %w", id, method, auctionerr.ErrStateConflict)
	}
	mutate(r)
	return copyRound(r), nil
}

func (s *MemStore) BeginFinalizing(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return s.casRound("BeginFinalizing", id,
		func(r *models.Round) bool { return r.Status == models.RoundStatusActive },
		func(r *models.Round) {
			r.Status, r.FinalizingAt, r.UpdatedAt = models.RoundStatusFinalizing, &at, at
		})
}

func (s *MemStore) MarkPassCompleted(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return s.casRound("MarkPassCompleted", id,
		func(r *models.Round) bool { return r.Status == models.RoundStatusFinalizing },
		func(r *models.Round) {
			if r.PassCompletedAt == nil {
				r.PassCompletedAt = &at
			}
			r.UpdatedAt = at
		})
}

func (s *MemStore) CompleteRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return s.casRound("CompleteRound", id,
		func(r *models.Round) bool {
			return r.Status == models.RoundStatusFinalizing && r.PassCompletedAt != nil && s.countActive(r.ID) == 0
		},
		func(r *models.Round) {
			r.Status, r.CompletedAt, r.UpdatedAt = models.RoundStatusCompleted, &at, at
		})
}

func (s *MemStore) ResetStuckRound(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return s.casRound("ResetStuckRound", id,
		func(r *models.Round) bool {
			return r.Status == models.RoundStatusFinalizing && r.PassCompletedAt == nil &&
				!s.activeRoundExists(r.SeasonID, r.Position, r.ID)
		},
		func(r *models.Round) {
			r.Status, r.FinalizingAt, r.PassCompletedAt, r.UpdatedAt = models.RoundStatusActive, nil, nil, at
		})
}

func (s *MemStore) CloseBidding(ctx context.Context, id uuid.UUID, at time.Time) (*models.Round, error) {
	return s.casRound("CloseBidding", id,
		func(r *models.Round) bool { return r.Status == models.RoundStatusActive },
		func(r *models.Round) {
			if at.Before(r.EndTime) {
				r.EndTime = at
			}
			if at.Before(r.StartTime) {
				r.StartTime = at
			}
			r.UpdatedAt = at
		})
}

func (s *MemStore) ListRoundsDueForSettlement(ctx context.Context, now time.Time, limit int32) ([]*models.Round, error) {
	return s.listRounds(limit, func(r *models.Round) bool {
		return (r.Status == models.RoundStatusActive && !now.Before(r.EndTime)) ||
			(r.Status == models.RoundStatusFinalizing && r.PassCompletedAt != nil)
	})
}

func (s *MemStore) ListStuckRounds(ctx context.Context, finalizingBefore time.Time) ([]*models.Round, error) {
	return s.listRounds(0, func(r *models.Round) bool {
		return r.Status == models.RoundStatusFinalizing && r.PassCompletedAt == nil &&
			r.FinalizingAt != nil && !r.FinalizingAt.After(finalizingBefore)
	})
}

func (s *MemStore) ListActiveRounds(ctx context.Context) ([]*models.Round, error) {
	return s.listRounds(0, func(r *models.Round) bool { return r.Status == models.RoundStatusActive })
}

func (s *MemStore) listRounds(limit int32, keep func(*models.Round) bool) ([]*models.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Round{}
	for _, r := range s.rounds {
		if keep(r) {
			out = append(out, copyRound(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	if limit > 0 && len(out) > int(limit) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, fmt.Errorf("player: %w", auctionerr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetTeamBudget(ctx context.Context, teamID, seasonID uuid.UUID) (*models.TeamBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.budgets[budgetKey{teamID, seasonID}]
	if !ok {
		return nil, fmt.Errorf("team budget: %w", auctionerr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemStore) UpsertBid(ctx context.Context, req repository.UpsertBidRequest) (*models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("UpsertBid"); err != nil {
		return nil, err
	}
	r, ok := s.rounds[req.RoundID]
	if !ok || r.Status != models.RoundStatusActive ||
		req.SubmittedAt.Before(r.StartTime) || !req.SubmittedAt.Before(r.EndTime) {
		return nil, fmt.Errorf("round %s is closed for bids: %w", req.RoundID, auctionerr.ErrRoundNotActive)
	}
	key := bidKey{req.RoundID, req.PlayerID, req.TeamID}
	b, ok := s.bids[key]
	if ok && b.IsWinning != nil {
		return nil, fmt.Errorf("bid on round %s already settled: %w", req.RoundID, auctionerr.ErrRoundNotActive)
	}
	if !ok {
		b = &models.Bid{ID: uuid.New(), RoundID: req.RoundID, PlayerID: req.PlayerID, TeamID: req.TeamID}
		s.bids[key] = b
	}
	b.Amount, b.SubmittedAt = req.Amount, req.SubmittedAt
	cp := *b
	return &cp, nil
}

func (s *MemStore) ListBidsForPlayer(ctx context.Context, roundID, playerID uuid.UUID) ([]*models.Bid, error) {
	return s.listBids(func(b *models.Bid) bool { return b.RoundID == roundID && b.PlayerID == playerID }), nil
}

func (s *MemStore) ListBidsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Bid, error) {
	s.mu.Lock()
	err := s.fault("ListBidsForRound")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.listBids(func(b *models.Bid) bool { return b.RoundID == roundID }), nil
}

func (s *MemStore) ListBidsForTeam(ctx context.Context, roundID, teamID uuid.UUID) ([]*models.Bid, error) {
	return s.listBids(func(b *models.Bid) bool { return b.RoundID == roundID && b.TeamID == teamID }), nil
}

func (s *MemStore) listBids(keep func(*models.Bid) bool) []*models.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Bid{}
	for _, b := range s.bids {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].PlayerID[:], out[j].PlayerID[:]); c != 0 {
			return c < 0
		}
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

func (s *MemStore) GetAllocationForPlayer(ctx context.Context, playerID, seasonID uuid.UUID) (*models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.allocations[budgetKey{playerID, seasonID}]
	if !ok {
		return nil, fmt.Errorf("allocation: %w", auctionerr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) ListAllocationsForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Allocation{}
	for _, a := range s.allocations {
		if a.RoundID == roundID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemStore) CommitAllocation(ctx context.Context, req repository.CommitAllocationRequest) (*models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("CommitAllocation"); err != nil {
		return nil, err
	}
	return s.commit(req)
}

// commit must hold s.mu. Nothing is written unless every check passes.
func (s *MemStore) commit(req repository.CommitAllocationRequest) (*models.Allocation, error) {
	t, ok := s.budgets[budgetKey{req.TeamID, req.SeasonID}]
	if !ok {
		return nil, fmt.Errorf("team budget: %w", auctionerr.ErrNotFound)
	}
	if !t.HasCapacity() {
		return nil, fmt.Errorf("team %s squad is full: %w", req.TeamID, auctionerr.ErrTeamNotEligible)
	}
	if !t.CanAfford(req.Amount) {
		return nil, fmt.Errorf("team %s cannot afford %s: %w", req.TeamID, req.Amount, auctionerr.ErrInsufficientBudget)
	}
	key := budgetKey{req.PlayerID, req.SeasonID}
	if _, taken := s.allocations[key]; taken {
		return nil, fmt.Errorf("player %s: %w", req.PlayerID, auctionerr.ErrAlreadyAllocated)
	}

	t.RemainingBudget = t.RemainingBudget.Sub(req.Amount)
	t.SquadUsed++
	t.UpdatedAt = req.At
	a := &models.Allocation{
		ID:           uuid.New(),
		PlayerID:     req.PlayerID,
		SeasonID:     req.SeasonID,
		TeamID:       req.TeamID,
		RoundID:      req.RoundID,
		TiebreakerID: req.TiebreakerID,
		Amount:       req.Amount,
		CreatedAt:    req.At,
	}
	s.allocations[key] = a
	winner := req.TeamID
	s.markOutcomes(req.RoundID, req.PlayerID, &winner)
	cp := *a
	return &cp, nil
}

func (s *MemStore) markOutcomes(roundID, playerID uuid.UUID, winner *uuid.UUID) {
	for _, b := range s.bids {
		if b.RoundID == roundID && b.PlayerID == playerID {
			won := winner != nil && b.TeamID == *winner
			b.IsWinning = &won
		}
	}
}

func (s *MemStore) MarkPlayerUnsold(ctx context.Context, roundID, playerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("MarkPlayerUnsold"); err != nil {
		return err
	}
	s.markOutcomes(roundID, playerID, nil)
	return nil
}

func (s *MemStore) OpenTiebreaker(ctx context.Context, req repository.OpenTiebreakerRequest) (*models.Tiebreaker, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("OpenTiebreaker"); err != nil {
		return nil, false, err
	}
	return s.open(req)
}

// open must hold s.mu.
func (s *MemStore) open(req repository.OpenTiebreakerRequest) (*models.Tiebreaker, bool, error) {
	if existing := s.active(req.RoundID, req.PlayerID); existing != nil {
		return copyTiebreaker(existing), false, nil
	}
	tb := &models.Tiebreaker{
		ID:         uuid.New(),
		RoundID:    req.RoundID,
		PlayerID:   req.PlayerID,
		ParentID:   req.ParentID,
		TiedAmount: req.TiedAmount,
		Status:     models.TiebreakerStatusActive,
		Deadline:   req.Deadline,
		CreatedAt:  req.CreatedAt,
	}
	for _, seat := range req.Seats {
		tb.Entries = append(tb.Entries, models.TiebreakerEntry{
			TiebreakerID:        tb.ID,
			TeamID:              seat.TeamID,
			OriginalSubmittedAt: seat.OriginalSubmittedAt,
		})
	}
	sort.SliceStable(tb.Entries, func(i, j int) bool {
		return tb.Entries[i].OriginalSubmittedAt.Before(tb.Entries[j].OriginalSubmittedAt)
	})
	s.tiebreakers[tb.ID] = tb
	return copyTiebreaker(tb), true, nil
}

func (s *MemStore) active(roundID, playerID uuid.UUID) *models.Tiebreaker {
	for _, tb := range s.tiebreakers {
		if tb.RoundID == roundID && tb.PlayerID == playerID && tb.Status == models.TiebreakerStatusActive {
			return tb
		}
	}
	return nil
}

func (s *MemStore) countActive(roundID uuid.UUID) int {
	n := 0
	for _, tb := range s.tiebreakers {
		if tb.RoundID == roundID && tb.Status == models.TiebreakerStatusActive {
			n++
		}
	}
	return n
}

func (s *MemStore) GetTiebreaker(ctx context.Context, id uuid.UUID) (*models.Tiebreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.tiebreakers[id]
	if !ok {
		return nil, fmt.Errorf("tiebreaker: %w", auctionerr.ErrNotFound)
	}
	return copyTiebreaker(tb), nil
}

func (s *MemStore) GetActiveTiebreakerForPlayer(ctx context.Context, roundID, playerID uuid.UUID) (*models.Tiebreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb := s.active(roundID, playerID)
	if tb == nil {
		return nil, fmt.Errorf("active tiebreaker: %w", auctionerr.ErrNotFound)
	}
	return copyTiebreaker(tb), nil
}

func (s *MemStore) ListActiveTiebreakersForRound(ctx context.Context, roundID uuid.UUID) ([]*models.Tiebreaker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Tiebreaker{}
	for _, tb := range s.tiebreakers {
		if tb.RoundID == roundID && tb.Status == models.TiebreakerStatusActive {
			out = append(out, copyTiebreaker(tb))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *MemStore) SubmitTiebreakerEntry(ctx context.Context, req repository.SubmitTiebreakerEntryRequest) (*models.TiebreakerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.tiebreakers[req.TiebreakerID]
	if !ok || tb.Status != models.TiebreakerStatusActive || !req.SubmittedAt.Before(tb.Deadline) {
		return nil, fmt.Errorf("tiebreaker %s is closed: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
	}
	for i := range tb.Entries {
		e := &tb.Entries[i]
		if e.TeamID == req.TeamID {
			amount, at := req.Amount, req.SubmittedAt
			e.NewAmount, e.SubmittedAt = &amount, &at
			cp := *e
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("tiebreaker %s is closed: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
}

func (s *MemStore) SettleTiebreaker(ctx context.Context, req repository.SettleTiebreakerRequest) (*repository.SettleTiebreakerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault("SettleTiebreaker"); err != nil {
		return nil, err
	}
	tb, ok := s.tiebreakers[req.TiebreakerID]
	if !ok || tb.Status != models.TiebreakerStatusActive {
		return nil, fmt.Errorf("tiebreaker %s already resolved: %w", req.TiebreakerID, auctionerr.ErrStateConflict)
	}
	if !models.SameEntries(tb.Entries, req.Entries) {
		return nil, fmt.Errorf("tiebreaker %s entries changed since it was decided: %w",
			req.TiebreakerID, auctionerr.ErrTiebreakerPending)
	}

	res := &repository.SettleTiebreakerResult{}
	if req.Award != nil {
		alloc, err := s.commit(*req.Award)
		if err != nil {
			return nil, err
		}
		res.Allocation = alloc
		winner, amount := req.Award.TeamID, req.Award.Amount
		tb.WinnerTeamID, tb.WinningAmount = &winner, &amount
	}

	resolved := req.ResolvedAt
	tb.Status, tb.ResolvedAt = models.TiebreakerStatusCompleted, &resolved

	switch {
	case req.Escalation != nil:
		child, _, err := s.open(*req.Escalation)
		if err != nil {
			return nil, err
		}
		res.Child = child
	case req.Award == nil:
		s.markOutcomes(req.RoundID, req.PlayerID, nil)
	}
	res.Tiebreaker = copyTiebreaker(tb)
	return res, nil
}

func copyRound(r *models.Round) *models.Round {
	cp := *r
	return &cp
}

func copyTiebreaker(tb *models.Tiebreaker) *models.Tiebreaker {
	cp := *tb
	cp.Entries = append([]models.TiebreakerEntry(nil), tb.Entries...)
	return &cp
}
