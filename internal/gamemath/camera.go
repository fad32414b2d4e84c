package gamemath

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

var up = mgl32.Vec3{0, 1, 0}

const (
	nearPlane = 1.0
	farPlane  = 100.0
)

// ErrNoGroundHit is returned when a ray runs parallel to or away from z=0.
var ErrNoGroundHit = errors.New("ray does not hit the ground plane")

// Camera is a perspective camera looking at the z=0 ground plane.
type Camera struct {
	Eye    mgl32.Vec3
	Target mgl32.Vec3
	Width  int
	Height int

	view mgl32.Mat4
	proj mgl32.Mat4
}

func NewCamera(width, height int, fov float32, eye, target mgl32.Vec3) *Camera {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	c := &Camera{
		Eye:    eye,
		Target: target,
		Width:  width,
		Height: height,
		proj:   mgl32.Perspective(fov, float32(width)/float32(height), nearPlane, farPlane),
	}
	c.view = mgl32.LookAtV(c.Eye, c.Target, up)
	return c
}

// Ray is a half-line in world space.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

// Ray unprojects a cursor position (pixels, origin top-left) into a world
// space ray through the near and far planes.
func (c *Camera) Ray(cursor mgl32.Vec2) (Ray, error) {
	winY := float32(c.Height) - cursor.Y()
	near, err := mgl32.UnProject(mgl32.Vec3{cursor.X(), winY, 0}, c.view, c.proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return Ray{}, err
	}
	far, err := mgl32.UnProject(mgl32.Vec3{cursor.X(), winY, 1}, c.view, c.proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return Ray{}, err
	}
	return Ray{Origin: near, Dir: far.Sub(near).Normalize()}, nil
}

// Project maps a world point to cursor coordinates (pixels, origin top-left).
func (c *Camera) Project(p mgl32.Vec3) mgl32.Vec2 {
	win := mgl32.Project(p, c.view, c.proj, 0, 0, c.Width, c.Height)
	return mgl32.Vec2{win.X(), float32(c.Height) - win.Y()}
}

// GroundPoint intersects r with the z=0 plane.
func (r Ray) GroundPoint() (mgl32.Vec3, error) {
	if math.Abs(float64(r.Dir.Z())) < 1e-6 {
		return mgl32.Vec3{}, ErrNoGroundHit
	}
	t := -r.Origin.Z() / r.Dir.Z()
	if t < 0 {
		return mgl32.Vec3{}, ErrNoGroundHit
	}
	p := r.Origin.Add(r.Dir.Mul(t))
	p[2] = 0
	return p, nil
}
