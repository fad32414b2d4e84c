package component

import "github.com/go-gl/mathgl/mgl32"

// Path is an active straight-line move. T is interpolation progress in [0,1].
type Path struct {
	Start mgl32.Vec3
	End   mgl32.Vec3
	T     float32
}

// Movement positions an entity. Path is nil iff the entity is stationary.
// Speed is the interpolation rate (T per millisecond) of the current path.
type Movement struct {
	Position mgl32.Vec3
	Speed    float32
	Path     *Path
}

func NewMovement(pos mgl32.Vec3) *Movement {
	return &Movement{Position: pos}
}
