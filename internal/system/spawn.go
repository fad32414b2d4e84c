package system

import (
	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	coresys "github.com/boxworld/box/internal/core/system"
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Role says which side of the connection a process plays.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// SpawnSystem owns entity lifetime: it creates boxes, releases a departed
// client's boxes and stops the process on Quit.
type SpawnSystem struct {
	role Role
	log  *zap.Logger
}

func NewSpawnSystem(role Role, log *zap.Logger) *SpawnSystem {
	return &SpawnSystem{role: role, log: log}
}

func (s *SpawnSystem) Name() string               { return "spawn" }
func (s *SpawnSystem) Priority() coresys.Priority { return coresys.PrioritySpawn }
func (s *SpawnSystem) Access() coresys.Access     { return coresys.Access{} }
func (s *SpawnSystem) Run(*sim.Context)           {}

func (s *SpawnSystem) HandleMessage(ctx *sim.Context, msg message.Message) {
	switch m := msg.(type) {
	case message.SpawnBox:
		s.spawnBox(ctx, m)
	case message.DespawnClient:
		s.despawnClient(ctx, m.ClientID)
	case message.Quit:
		ctx.Res.IsRunning = false
	}
}

func (s *SpawnSystem) spawnBox(ctx *sim.Context, m message.SpawnBox) ecs.Entity {
	st := ctx.Store
	e := st.Create()
	st.Movement.Set(e, component.NewMovement(m.Position))
	render := component.NewRender()
	render.Model = mgl32.Translate3D(m.Position.Elem())
	st.Render.Set(e, render)
	st.Selection.Set(e, &component.Selection{})
	st.ClientID.Set(e, &component.ClientID{ID: m.ClientID})

	controllable := s.role == RoleClient && ctx.Res.MyClientID.Is(m.ClientID)
	if controllable {
		st.Controllable.Set(e, &component.Controllable{})
	}
	s.log.Debug("box spawned",
		zap.Stringer("role", s.role),
		zap.Uint64("entity", uint64(e)),
		zap.Uint16("client_id", m.ClientID),
		zap.Bool("controllable", controllable),
	)
	return e
}

// despawnClient queues every box owned by clientID for destruction and drops
// any pointer state that still refers to them.
func (s *SpawnSystem) despawnClient(ctx *sim.Context, clientID uint16) {
	owned := ctx.Store.OwnedBy(clientID)
	for _, e := range owned {
		ctx.Store.MarkForDestruction(e)
		if ctx.Res.CurrentSelection == e {
			ctx.Res.CurrentSelection = ecs.Nil
		}
		if h := ctx.Res.CurrentHover; h.Kind == component.HoverEntity && h.Entity == e {
			ctx.Res.CurrentHover = component.Hover{}
		}
	}
	s.log.Debug("client despawned",
		zap.Stringer("role", s.role),
		zap.Uint16("client_id", clientID),
		zap.Int("entities", len(owned)),
	)
}
