package sim

import (
	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
	"github.com/boxworld/box/internal/gamemath"
	"github.com/go-gl/mathgl/mgl32"
)

// Resources are the process-wide singletons. Each field is written only by
// the systems that declare it in their Access.
type Resources struct {
	IsRunning        bool
	Camera           *gamemath.Camera
	Cursor           mgl32.Vec2
	CurrentHover     component.Hover
	CurrentSelection ecs.Entity
	MyClientID       ClientIDSlot
}

// ClientIDSlot holds the id the server assigned to this process, if any.
type ClientIDSlot struct {
	ID    uint16
	Known bool
}

func (s ClientIDSlot) Is(id uint16) bool {
	return s.Known && s.ID == id
}

func NewResources(cam *gamemath.Camera) *Resources {
	return &Resources{
		IsRunning: true,
		Camera:    cam,
	}
}
