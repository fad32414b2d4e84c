package system

import (
	"testing"
	"time"

	"github.com/boxworld/box/internal/core/bus"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/gamemath"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const step = 2 * time.Millisecond

func testCamera() *gamemath.Camera {
	return gamemath.NewCamera(1280, 720, mgl32.DegToRad(45), mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0})
}

func newTestContext() *sim.Context {
	return sim.NewContext(step, sim.NewStore(), sim.NewResources(testCamera()), bus.New())
}

func newTestScheduler(t *testing.T, ctx *sim.Context, systems ...coresys.System) *coresys.Scheduler {
	t.Helper()
	r := coresys.NewRunner(false, zap.NewNop())
	for _, s := range systems {
		r.Register(s)
	}
	s, err := coresys.NewScheduler(r, ctx, step, 33*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	return s
}

// deliver flushes the bus into the given handlers, the way a scheduler tick
// would, then runs any AfterFlush hooks.
func deliver(ctx *sim.Context, systems ...coresys.System) {
	ctx.Bus.Flush(func(m message.Message) {
		for _, s := range systems {
			s.HandleMessage(ctx, m)
		}
	})
	for _, s := range systems {
		if af, ok := s.(coresys.AfterFlusher); ok {
			af.AfterFlush(ctx)
		}
	}
}

// pump ticks every scheduler until cond holds or the deadline passes.
func pump(t *testing.T, cond func() bool, scheds ...*coresys.Scheduler) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range scheds {
			s.Tick(step)
		}
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
