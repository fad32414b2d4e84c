package system

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/boxworld/box/internal/core/bus"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder records calls and optionally posts a message on every run.
type recorder struct {
	name     string
	priority Priority
	access   Access
	post     message.Message
	panics   bool

	runs     atomic.Int64
	handled  []message.Message
	runOrder *[]string
}

func (p *recorder) Name() string       { return p.name }
func (p *recorder) Priority() Priority { return p.priority }
func (p *recorder) Access() Access     { return p.access }

func (p *recorder) Run(ctx *sim.Context) {
	p.runs.Add(1)
	if p.runOrder != nil {
		*p.runOrder = append(*p.runOrder, p.name)
	}
	if p.panics {
		panic("boom")
	}
	if p.post != nil {
		ctx.Post(p.post)
	}
}

func (p *recorder) HandleMessage(ctx *sim.Context, msg message.Message) {
	p.handled = append(p.handled, msg)
	if _, ok := msg.(message.Quit); ok {
		ctx.Res.IsRunning = false
	}
}

func newTestScheduler(t *testing.T, timestep, maxAccum time.Duration, systems ...System) *Scheduler {
	t.Helper()
	r := NewRunner(false, zap.NewNop())
	for _, s := range systems {
		r.Register(s)
	}
	ctx := sim.NewContext(timestep, sim.NewStore(), sim.NewResources(nil), bus.New())
	s, err := NewScheduler(r, ctx, timestep, maxAccum, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestTick_RunsOncePerWholeTimestep(t *testing.T) {
	p := &recorder{name: "p"}
	s := newTestScheduler(t, 2*time.Millisecond, 33*time.Millisecond, p)

	s.Tick(5 * time.Millisecond)
	assert.EqualValues(t, 2, p.runs.Load())
	assert.Equal(t, time.Millisecond, s.Accumulated())

	s.Tick(time.Millisecond)
	assert.EqualValues(t, 3, p.runs.Load(), "leftover time carries over")
	assert.Zero(t, s.Accumulated())

	s.Tick(time.Millisecond)
	assert.EqualValues(t, 3, p.runs.Load(), "partial step does not run")
}

func TestTick_CatchUpIsBoundedBySimRate(t *testing.T) {
	p := &recorder{name: "p"}
	s := newTestScheduler(t, 2*time.Millisecond, 33*time.Millisecond, p)

	s.Tick(10 * time.Minute)

	assert.EqualValues(t, 16, p.runs.Load(), "33ms cap allows 16 whole steps")
	assert.LessOrEqual(t, s.Accumulated(), 33*time.Millisecond)
	assert.Less(t, s.Accumulated(), 2*time.Millisecond)
}

func TestTick_FlushFollowsAllSteps(t *testing.T) {
	poster := &recorder{name: "poster", post: message.SelectEntity{}}
	listener := &recorder{name: "listener", priority: 5}
	s := newTestScheduler(t, time.Millisecond, 10*time.Millisecond, poster, listener)

	s.Tick(3 * time.Millisecond)

	assert.EqualValues(t, 3, listener.runs.Load())
	require.Len(t, listener.handled, 3, "every posted message delivered once after the steps")
	require.Len(t, poster.handled, 3, "the poster observes its own messages too")
}

func TestTick_QuitStopsAfterFlush(t *testing.T) {
	p := &recorder{name: "p", post: message.Quit{}}
	s := newTestScheduler(t, time.Millisecond, 10*time.Millisecond, p)

	assert.False(t, s.Tick(time.Millisecond))
}

func TestTick_NegativeElapsedPanics(t *testing.T) {
	s := newTestScheduler(t, time.Millisecond, 10*time.Millisecond)
	assert.Panics(t, func() { s.Tick(-time.Nanosecond) })
}

func TestNewScheduler_RejectsBadTiming(t *testing.T) {
	ctx := sim.NewContext(0, sim.NewStore(), sim.NewResources(nil), bus.New())
	r := NewRunner(false, zap.NewNop())

	_, err := NewScheduler(r, ctx, 0, time.Second, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidTimestep)

	_, err = NewScheduler(r, ctx, -time.Millisecond, time.Second, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidTimestep)

	_, err = NewScheduler(r, ctx, 10*time.Millisecond, time.Millisecond, zap.NewNop())
	assert.Error(t, err)
}

func TestRunner_PriorityOrderAndPanicIsolation(t *testing.T) {
	var order []string
	late := &recorder{name: "late", priority: 20, runOrder: &order}
	bad := &recorder{name: "bad", priority: 1, panics: true, runOrder: &order}
	early := &recorder{name: "early", priority: 0, runOrder: &order}
	s := newTestScheduler(t, time.Millisecond, 10*time.Millisecond, late, bad, early)

	assert.NotPanics(t, func() { s.Tick(time.Millisecond) })
	assert.Equal(t, []string{"early", "bad", "late"}, order)
}

func TestRunner_StagesSplitOnConflicts(t *testing.T) {
	selection := &recorder{name: "selection", priority: 1, access: Access{Reads: []string{sim.CompMovement}, Writes: []string{sim.CompSelection}}}
	movement := &recorder{name: "movement", priority: 2, access: Access{Writes: []string{sim.CompMovement}}}
	spawn := &recorder{name: "spawn", priority: 10}
	network := &recorder{name: "network", priority: 20, access: Access{Writes: []string{sim.ResNetwork}}}

	r := NewRunner(true, zap.NewNop())
	for _, s := range []System{network, spawn, movement, selection} {
		r.Register(s)
	}

	stages := r.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, []System{selection}, stages[0])
	assert.Equal(t, []System{movement, spawn, network}, stages[1])

	ctx := sim.NewContext(time.Millisecond, sim.NewStore(), sim.NewResources(nil), bus.New())
	r.Run(ctx)
	for _, p := range []*recorder{selection, movement, spawn, network} {
		assert.EqualValues(t, 1, p.runs.Load(), p.name)
	}
}

func TestAccess_Conflicts(t *testing.T) {
	reader := Access{Reads: []string{"a"}}
	writer := Access{Writes: []string{"a"}}
	other := Access{Writes: []string{"b"}}

	assert.False(t, reader.Conflicts(reader), "readers share")
	assert.True(t, reader.Conflicts(writer))
	assert.True(t, writer.Conflicts(reader))
	assert.True(t, writer.Conflicts(writer))
	assert.False(t, writer.Conflicts(other))
}
