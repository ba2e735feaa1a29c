package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (c *countingSweeper) Sweep(ctx context.Context) (*finalize.SweepResult, error) {
	c.calls.Add(1)
	return &finalize.SweepResult{Checked: 1}, nil
}

func TestAddJobValidation(t *testing.T) {
	s, err := New()
	assert.NoError(t, err)
	s.Start()
	defer s.Stop()

	_, err = s.AddJob(" ", "* * * * *", false, func() {})
	check.True(t, errors.Is(err, ErrEmptyJobName))
	_, err = s.AddJob("job", "", false, func() {})
	check.True(t, errors.Is(err, ErrEmptyCronExpr))
	_, err = s.AddJob("job", "not a cron", false, func() {})
	check.Error(t, err)

	check.Error(t, RegisterSweepJob(s, nil, "* * * * *", false, time.Second))
}

func TestSweepJobRuns(t *testing.T) {
	s, err := New()
	assert.NoError(t, err)

	sweeper := &countingSweeper{}
	assert.NoError(t, RegisterSweepJob(s, sweeper, "* * * * * *", true, time.Second))
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for sweeper.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	assert.NoError(t, s.Stop())
	check.True(t, sweeper.calls.Load() > 0)

	// stopping twice is fine
	check.NoError(t, s.Stop())
}
