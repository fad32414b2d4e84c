package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"go.uber.org/zap"
)

var ErrInvalidTimestep = errors.New("timestep must be positive")

// Scheduler drives a fixed-timestep accumulator. Each Tick adds elapsed
// wall-clock time, runs every system once per whole timestep, then flushes
// the bus and reports whether the process should keep running.
type Scheduler struct {
	runner   *Runner
	ctx      *sim.Context
	timestep time.Duration
	maxAccum time.Duration
	accum    time.Duration
	log      *zap.Logger
}

// NewScheduler validates the timing configuration. maxAccum bounds the
// catch-up after a stall and must hold at least one timestep.
func NewScheduler(runner *Runner, ctx *sim.Context, timestep, maxAccum time.Duration, log *zap.Logger) (*Scheduler, error) {
	if timestep <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimestep, timestep)
	}
	if maxAccum < timestep {
		return nil, fmt.Errorf("sim rate %s is shorter than timestep %s", maxAccum, timestep)
	}
	ctx.Timestep = timestep
	ctx.Dt = timestep
	return &Scheduler{
		runner:   runner,
		ctx:      ctx,
		timestep: timestep,
		maxAccum: maxAccum,
		log:      log,
	}, nil
}

// Tick consumes elapsed. Negative elapsed is a programming error.
func (s *Scheduler) Tick(elapsed time.Duration) bool {
	if elapsed < 0 {
		panic(fmt.Sprintf("scheduler: negative elapsed %s", elapsed))
	}
	s.accum += elapsed
	if s.accum > s.maxAccum {
		s.accum = s.maxAccum
	}
	for s.accum >= s.timestep {
		s.ctx.Dt = s.timestep
		s.runner.Run(s.ctx)
		s.ctx.Step++
		s.accum -= s.timestep
	}
	s.ctx.Bus.Flush(func(m message.Message) {
		s.runner.Broadcast(s.ctx, m)
	})
	s.runner.AfterFlush(s.ctx)
	return s.ctx.Res.IsRunning
}

// Accumulated returns the unconsumed time carried into the next tick.
func (s *Scheduler) Accumulated() time.Duration {
	return s.accum
}

// Run ticks on a wall-clock ticker until IsRunning turns false or ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.timestep)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			if elapsed < 0 {
				elapsed = 0
			}
			last = now
			if !s.Tick(elapsed) {
				s.log.Info("simulation stopped", zap.Uint64("steps", s.ctx.Step))
				return nil
			}
		}
	}
}
