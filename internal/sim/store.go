package sim

import (
	"github.com/boxworld/box/internal/component"
	"github.com/boxworld/box/internal/core/ecs"
)

// Store is the entity/component store shared by every system.
type Store struct {
	*ecs.World

	Movement     *ecs.Store[component.Movement]
	Render       *ecs.Store[component.Render]
	Selection    *ecs.Store[component.Selection]
	Controllable *ecs.Store[component.Controllable]
	ClientID     *ecs.Store[component.ClientID]
}

func NewStore() *Store {
	w := ecs.NewWorld()
	return &Store{
		World:        w,
		Movement:     ecs.Register[component.Movement](w),
		Render:       ecs.Register[component.Render](w),
		Selection:    ecs.Register[component.Selection](w),
		Controllable: ecs.Register[component.Controllable](w),
		ClientID:     ecs.Register[component.ClientID](w),
	}
}

// OwnedBy lists live entities owned by clientID in creation order.
func (s *Store) OwnedBy(clientID uint16) []ecs.Entity {
	var out []ecs.Entity
	s.ClientID.Each(func(e ecs.Entity, c *component.ClientID) {
		if c.ID == clientID {
			out = append(out, e)
		}
	})
	return out
}
