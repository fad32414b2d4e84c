package component

import (
	"github.com/boxworld/box/internal/core/ecs"
	"github.com/go-gl/mathgl/mgl32"
)

// Selection is per-entity pointer state. Which entity is globally selected
// lives in the CurrentSelection resource, not here.
type Selection struct {
	Hovered  bool
	Selected bool
}

// HoverKind says what the cursor ray landed on.
type HoverKind uint8

const (
	HoverNone HoverKind = iota
	HoverEntity
	HoverGround
)

func (k HoverKind) String() string {
	switch k {
	case HoverEntity:
		return "entity"
	case HoverGround:
		return "ground"
	default:
		return "none"
	}
}

// Hover is the CurrentHover value: an entity, a ground point, or nothing.
type Hover struct {
	Kind   HoverKind  `msgpack:"kind"`
	Entity ecs.Entity `msgpack:"entity,omitempty"`
	Point  mgl32.Vec3 `msgpack:"point,omitempty"`
}

func HoverOnEntity(e ecs.Entity) Hover { return Hover{Kind: HoverEntity, Entity: e} }

func HoverOnGround(p mgl32.Vec3) Hover { return Hover{Kind: HoverGround, Point: p} }
