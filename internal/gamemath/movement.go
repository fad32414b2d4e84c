// Package gamemath holds the movement math shared by the authoritative
// server and the predicting client. Both sides must produce identical
// positions for identical inputs, so everything here is pure.
package gamemath

import (
	"time"

	"github.com/boxworld/box/internal/component"
	"github.com/go-gl/mathgl/mgl32"
)

// Lerp interpolates component-wise as (1-t)*a + t*b.
func Lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		(1-t)*a[0] + t*b[0],
		(1-t)*a[1] + t*b[1],
		(1-t)*a[2] + t*b[2],
	}
}

// PathSpeed returns the progress rate (T per millisecond) for a path from
// start to end. Velocity scales with distance, so every path takes travel
// regardless of its length. A zero-length path has no speed.
func PathSpeed(start, end mgl32.Vec3, travel time.Duration) float32 {
	dist := end.Sub(start).Len()
	ms := Milliseconds(travel)
	if dist == 0 || ms <= 0 {
		return 0
	}
	velocity := dist / ms
	return velocity / dist
}

// SetTarget starts a fresh path from the current position to target.
// Targeting the current position leaves the entity stationary.
func SetTarget(m *component.Movement, target mgl32.Vec3, travel time.Duration) {
	speed := PathSpeed(m.Position, target, travel)
	if speed == 0 {
		m.Path = nil
		m.Speed = 0
		return
	}
	m.Speed = speed
	m.Path = &component.Path{Start: m.Position, End: target, T: 0}
}

// Advance moves m along its path by dt. Once T reaches 1 the position snaps
// to the path end and the path is cleared. It reports whether the path
// completed during this step.
func Advance(m *component.Movement, dt time.Duration) bool {
	if m.Path == nil {
		return false
	}
	t := m.Path.T + m.Speed*Milliseconds(dt)
	if t >= 1 {
		m.Position = m.Path.End
		m.Path = nil
		m.Speed = 0
		return true
	}
	m.Path.T = t
	m.Position = Lerp(m.Path.Start, m.Path.End, t)
	return false
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float32 {
	return float32(d) / float32(time.Millisecond)
}
