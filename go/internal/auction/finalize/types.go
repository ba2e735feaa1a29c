package finalize

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/leagueauction/go/internal/auction/allocation"
	"github.com/mcdev12/leagueauction/go/internal/models"
)

// Config for the finalizer
type Config struct {
	// SweepLimit caps how many rounds one sweep looks at.
	SweepLimit int32
	// SweepMinInterval throttles sweeps triggered by read traffic. Zero disables throttling.
	SweepMinInterval time.Duration
	// SweepTimeout bounds one sweep. It runs detached from the triggering
	// caller, whose request may end while others still wait on the result.
	SweepTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SweepLimit:       50,
		SweepMinInterval: 5 * time.Second,
		SweepTimeout:     2 * time.Minute,
	}
}

// Result of one CheckAndFinalizeExpiredRound call.
type Result struct {
	RoundID uuid.UUID          `json:"round_id"`
	Status  models.RoundStatus `json:"status"`
	// Claimed is true when this call won BeginFinalizing and ran the allocation pass.
	Claimed bool `json:"claimed"`
	// Finalized is true when this call moved the round to COMPLETED.
	Finalized          bool               `json:"finalized"`
	PendingTiebreakers int                `json:"pending_tiebreakers"`
	Report             *allocation.Report `json:"-"`
}

// SweepResult summarises a sweep.
type SweepResult struct {
	Throttled bool `json:"throttled"`
	Checked   int  `json:"checked"`
	Finalized int  `json:"finalized"`
	Failed    int  `json:"failed"`
}
