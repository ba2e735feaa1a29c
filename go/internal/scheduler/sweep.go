package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
)

const SweepJobName = "round_settlement_sweep"

// Sweeper is the finalizer's sweep entry point
type Sweeper interface {
	Sweep(ctx context.Context) (*finalize.SweepResult, error)
}

// RegisterSweepJob runs the settlement sweep on cronExpr, each run bounded
// by timeout.
func RegisterSweepJob(s *Service, sweeper Sweeper, cronExpr string, withSeconds bool, timeout time.Duration) error {
	if sweeper == nil {
		return fmt.Errorf("sweep job requires a sweeper")
	}
	jobLogger := log.With().Str("job_name", SweepJobName).Logger()

	_, err := s.AddJob(SweepJobName, cronExpr, withSeconds, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := sweeper.Sweep(ctx)
		if err != nil {
			jobLogger.Error().Err(err).Msg("scheduled sweep failed")
			return
		}
		if res.Throttled {
			jobLogger.Debug().Msg("scheduled sweep throttled, a recent sweep already ran")
			return
		}
		jobLogger.Info().
			Int("checked", res.Checked).
			Int("finalized", res.Finalized).
			Int("failed", res.Failed).
			Msg("scheduled sweep finished")
	})
	return err
}
