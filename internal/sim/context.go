// Package sim holds the state every system runs against: the entity store,
// the singleton resources, the message bus and the current step's timing.
package sim

import (
	"time"

	"github.com/boxworld/box/internal/core/bus"
	"github.com/boxworld/box/internal/message"
)

// Context is passed by reference into every system call.
type Context struct {
	Dt       time.Duration // length of the step being simulated
	Timestep time.Duration
	Step     uint64 // steps simulated so far

	Store *Store
	Res   *Resources
	Bus   *bus.Bus
}

func NewContext(timestep time.Duration, store *Store, res *Resources, b *bus.Bus) *Context {
	return &Context{
		Dt:       timestep,
		Timestep: timestep,
		Store:    store,
		Res:      res,
		Bus:      b,
	}
}

// Post queues m on the bus.
func (c *Context) Post(m message.Message) {
	c.Bus.Post(m)
}

// Resource and component keys used in system access declarations.
const (
	CompMovement     = "movement"
	CompRender       = "render"
	CompSelection    = "selection"
	CompControllable = "controllable"
	CompClientID     = "client_id"

	ResRunning    = "is_running"
	ResCamera     = "camera"
	ResCursor     = "cursor"
	ResHover      = "current_hover"
	ResSelection  = "current_selection"
	ResMyClientID = "my_client_id"
	ResNetwork    = "network" // sockets owned by a network system
	ResScript     = "script"  // Lua VM
)
