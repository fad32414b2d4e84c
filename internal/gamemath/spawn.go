package gamemath

import "github.com/go-gl/mathgl/mgl32"

// SpawnPosition places a client's box deterministically from its id. The
// products are computed in 32 bits so large ids do not wrap.
func SpawnPosition(clientID uint16) mgl32.Vec3 {
	id := uint32(clientID)
	return mgl32.Vec3{float32(7 * id % 11), float32(4 * id % 23), 0}
}
