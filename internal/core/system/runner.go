package system

import (
	"fmt"
	"sort"

	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes registered systems in priority order. With parallel
// dispatch enabled, consecutive systems whose accesses do not conflict form
// a stage and run on separate goroutines; stages still run in order.
type Runner struct {
	systems  []System
	stages   [][]System
	sorted   bool
	parallel bool
	log      *zap.Logger
}

func NewRunner(parallel bool, log *zap.Logger) *Runner {
	return &Runner{
		systems:  make([]System, 0, 8),
		parallel: parallel,
		log:      log,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Systems returns the registered systems in dispatch order.
func (r *Runner) Systems() []System {
	r.ensureSorted()
	return r.systems
}

// Stages returns the dispatch stages.
func (r *Runner) Stages() [][]System {
	r.ensureSorted()
	return r.stages
}

// Run executes every system once for the current step.
func (r *Runner) Run(ctx *sim.Context) {
	r.ensureSorted()
	for _, stage := range r.stages {
		if !r.parallel || len(stage) == 1 {
			for _, s := range stage {
				if err := safeRun(s, ctx); err != nil {
					r.log.Error("system run failed", zap.String("system", s.Name()), zap.Error(err))
				}
			}
			continue
		}
		var g errgroup.Group
		for _, s := range stage {
			s := s
			g.Go(func() error { return safeRun(s, ctx) })
		}
		if err := g.Wait(); err != nil {
			r.log.Error("system stage failed", zap.Error(err))
		}
	}
}

// Broadcast hands msg to every system's message handler, in dispatch order.
func (r *Runner) Broadcast(ctx *sim.Context, msg message.Message) {
	r.ensureSorted()
	for _, s := range r.systems {
		if err := safeHandle(s, ctx, msg); err != nil {
			r.log.Error("system message handler failed",
				zap.String("system", s.Name()),
				zap.Stringer("message", msg.Kind()),
				zap.Error(err),
			)
		}
	}
}

// AfterFlush runs the post-flush hook of every system that has one.
func (r *Runner) AfterFlush(ctx *sim.Context) {
	r.ensureSorted()
	for _, s := range r.systems {
		if af, ok := s.(AfterFlusher); ok {
			af.AfterFlush(ctx)
		}
	}
}

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Priority() < r.systems[j].Priority()
	})
	r.stages = r.stages[:0]
	var stage []System
	for _, s := range r.systems {
		if conflictsWith(stage, s) {
			r.stages = append(r.stages, stage)
			stage = nil
		}
		stage = append(stage, s)
	}
	if len(stage) > 0 {
		r.stages = append(r.stages, stage)
	}
	r.sorted = true
}

func conflictsWith(stage []System, s System) bool {
	acc := s.Access()
	for _, o := range stage {
		if o.Access().Conflicts(acc) {
			return true
		}
	}
	return false
}

// safeRun keeps one system's panic from taking down the tick.
func safeRun(s System, ctx *sim.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("system %s panicked: %v", s.Name(), rec)
		}
	}()
	s.Run(ctx)
	return nil
}

func safeHandle(s System, ctx *sim.Context, msg message.Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("system %s panicked on %s: %v", s.Name(), msg.Kind(), rec)
		}
	}()
	s.HandleMessage(ctx, msg)
	return nil
}
