package system

import (
	"github.com/boxworld/box/internal/message"
	"github.com/boxworld/box/internal/sim"
)

// Priority orders systems within a tick; lower runs first.
type Priority int

const (
	PriorityInput     Priority = 0  // scripted or polled input
	PrioritySelection Priority = 1  // cursor picking
	PriorityMovement  Priority = 2  // path interpolation
	PrioritySpawn     Priority = 10 // entity creation from messages
	PriorityNetwork   Priority = 20 // socket reads, handshake
	PriorityCleanup   Priority = 30 // deferred destruction
)

// Access declares which components and resources a system's Run touches.
// Systems whose accesses do not conflict may run concurrently.
type Access struct {
	Reads  []string
	Writes []string
}

// Conflicts reports whether a and b cannot run at the same time: one of
// them writes something the other reads or writes.
func (a Access) Conflicts(b Access) bool {
	return overlaps(a.Writes, b.Writes) || overlaps(a.Writes, b.Reads) || overlaps(b.Writes, a.Reads)
}

func overlaps(x, y []string) bool {
	for _, a := range x {
		for _, b := range y {
			if a == b {
				return true
			}
		}
	}
	return false
}

// System is one per-tick update routine. Run happens once per simulated
// step and may only touch what Access declares; entity creation and
// destruction belong in HandleMessage, which runs serially during the bus
// flush and may touch anything.
type System interface {
	Name() string
	Priority() Priority
	Access() Access
	Run(ctx *sim.Context)
	HandleMessage(ctx *sim.Context, msg message.Message)
}

// AfterFlusher is implemented by systems with work that must follow the bus
// flush, such as writing buffered frames to sockets.
type AfterFlusher interface {
	AfterFlush(ctx *sim.Context)
}
