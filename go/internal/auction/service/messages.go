package service

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/round"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// RoundView is a round with its effective phase at read time.
type RoundView struct {
	Round *models.Round `json:"round"`
	Phase round.Phase   `json:"phase"`
}

type SubmitBidRequest struct {
	RoundID  uuid.UUID       `json:"round_id"`
	PlayerID uuid.UUID       `json:"player_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type SubmitBidResponse struct {
	Bid *models.Bid `json:"bid"`
}

type ListBidsForPlayerRequest struct {
	RoundID  uuid.UUID `json:"round_id"`
	PlayerID uuid.UUID `json:"player_id"`
}

type ListBidsResponse struct {
	Bids []*models.Bid `json:"bids"`
}

type ListMyBidsRequest struct {
	RoundID uuid.UUID `json:"round_id"`
}

type SubmitTiebreakerBidRequest struct {
	TiebreakerID uuid.UUID       `json:"tiebreaker_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type SubmitTiebreakerBidResponse struct {
	Entry *models.TiebreakerEntry `json:"entry"`
}

type GetTiebreakerRequest struct {
	TiebreakerID uuid.UUID `json:"tiebreaker_id"`
}

type GetTiebreakerResponse struct {
	Tiebreaker *models.Tiebreaker `json:"tiebreaker"`
}

type GetRoundRequest struct {
	RoundID uuid.UUID `json:"round_id"`
}

// GetRoundResponse carries allocations only once the round is COMPLETED.
type GetRoundResponse struct {
	Round       RoundView            `json:"round"`
	Allocations []*models.Allocation `json:"allocations,omitempty"`
}

type ListActiveRoundsRequest struct{}

type ListRoundsResponse struct {
	Rounds []RoundView `json:"rounds"`
}

type RoundResponse struct {
	Round *models.Round `json:"round"`
}

type RoundIDRequest struct {
	RoundID uuid.UUID `json:"round_id"`
}

type FinalizeResponse struct {
	Result *finalize.Result `json:"result"`
}

type ListStuckRoundsRequest struct {
	// OlderThanSeconds filters out rounds that entered FINALIZING recently.
	OlderThanSeconds int64 `json:"older_than_seconds"`
}
