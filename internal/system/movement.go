package system

import (
	"time"

	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/gamemath"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"github.com/go-gl/mathgl/mgl32"
)

// MovementSystem advances every active path by one step and starts new
// paths for controllable entities told to walk somewhere.
type MovementSystem struct {
	travel time.Duration
}

func NewMovementSystem(travel time.Duration) *MovementSystem {
	return &MovementSystem{travel: travel}
}

func (s *MovementSystem) Name() string               { return "movement" }
func (s *MovementSystem) Priority() coresys.Priority { return coresys.PriorityMovement }

func (s *MovementSystem) Access() coresys.Access {
	return coresys.Access{
		Writes: []string{sim.CompMovement, sim.CompRender},
	}
}

func (s *MovementSystem) Run(ctx *sim.Context) {
	ctx.Store.Movement.Each(func(e ecs.Entity, m *component.Movement) {
		if m.Path == nil {
			return
		}
		gamemath.Advance(m, ctx.Dt)
		if r, ok := ctx.Store.Render.Get(e); ok {
			r.Model = mgl32.Translate3D(m.Position.Elem())
		}
	})
}

func (s *MovementSystem) HandleMessage(ctx *sim.Context, msg message.Message) {
	iw, ok := msg.(message.InteractWith)
	if !ok || iw.Target.Kind != component.HoverGround {
		return
	}
	if !ctx.Store.Controllable.Has(iw.Entity) {
		return
	}
	if m, ok := ctx.Store.Movement.Get(iw.Entity); ok {
		gamemath.SetTarget(m, iw.Target.Point, s.travel)
	}
}
