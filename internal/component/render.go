package component

import "github.com/go-gl/mathgl/mgl32"

// Render carries the model transform handed to an external renderer.
type Render struct {
	Model mgl32.Mat4
}

func NewRender() *Render {
	return &Render{Model: mgl32.Ident4()}
}
