package system

import (
	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/scripting"
	"github.com/boxworld/box/internal/sim"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Autopilot produces scripted input from a per-step snapshot.
type Autopilot interface {
	Autopilot(in scripting.InputContext) []scripting.Command
}

// ScriptInputSystem stands in for window input on a headless client: a
// script moves the cursor and issues select, interact and quit.
type ScriptInputSystem struct {
	pilot Autopilot
	log   *zap.Logger
}

func NewScriptInputSystem(pilot Autopilot, log *zap.Logger) *ScriptInputSystem {
	return &ScriptInputSystem{pilot: pilot, log: log}
}

func (s *ScriptInputSystem) Name() string               { return "script_input" }
func (s *ScriptInputSystem) Priority() coresys.Priority { return coresys.PriorityInput }

func (s *ScriptInputSystem) Access() coresys.Access {
	return coresys.Access{
		Reads: []string{
			sim.CompMovement, sim.CompClientID, sim.CompControllable, sim.CompSelection,
			sim.ResHover, sim.ResSelection, sim.ResMyClientID, sim.ResCamera,
		},
		Writes: []string{sim.ResCursor, sim.ResScript},
	}
}

func (s *ScriptInputSystem) Run(ctx *sim.Context) {
	for _, cmd := range s.pilot.Autopilot(s.snapshot(ctx)) {
		switch cmd.Kind {
		case scripting.CmdCursor:
			ctx.Res.Cursor = mgl32.Vec2{cmd.X, cmd.Y}
		case scripting.CmdSelect:
			ctx.Post(message.SelectEntity{})
		case scripting.CmdInteract:
			ctx.Post(message.InteractWith{
				Entity: ctx.Res.CurrentSelection,
				Target: ctx.Res.CurrentHover,
			})
		case scripting.CmdQuit:
			s.log.Info("autopilot requested quit")
			ctx.Post(message.Quit{})
		}
	}
}

func (s *ScriptInputSystem) HandleMessage(*sim.Context, message.Message) {}

func (s *ScriptInputSystem) snapshot(ctx *sim.Context) scripting.InputContext {
	res := ctx.Res
	in := scripting.InputContext{
		Tick:       ctx.Step,
		Connected:  res.MyClientID.Known,
		MyClientID: res.MyClientID.ID,
		HoverKind:  res.CurrentHover.Kind.String(),
		Selection:  uint64(res.CurrentSelection),
	}
	switch res.CurrentHover.Kind {
	case component.HoverEntity:
		in.HoverEntity = uint64(res.CurrentHover.Entity)
	case component.HoverGround:
		in.HoverX = res.CurrentHover.Point.X()
		in.HoverY = res.CurrentHover.Point.Y()
	}

	cam := res.Camera
	if cam != nil {
		in.Project = func(x, y, z float32) (float32, float32) {
			p := cam.Project(mgl32.Vec3{x, y, z})
			return p.X(), p.Y()
		}
	}

	st := ctx.Store
	st.Movement.Each(func(e ecs.Entity, m *component.Movement) {
		v := scripting.EntityView{
			ID:           uint64(e),
			Controllable: st.Controllable.Has(e),
			X:            m.Position.X(),
			Y:            m.Position.Y(),
			Z:            m.Position.Z(),
		}
		if owner, ok := st.ClientID.Get(e); ok {
			v.ClientID = owner.ID
		}
		if sel, ok := st.Selection.Get(e); ok {
			v.Hovered = sel.Hovered
			v.Selected = sel.Selected
		}
		if cam != nil {
			p := cam.Project(m.Position)
			v.ScreenX, v.ScreenY = p.X(), p.Y()
		}
		in.Entities = append(in.Entities, v)
	})
	return in
}
