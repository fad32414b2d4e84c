package ecs

// World owns the entity pool, every registered component store, and the
// destruction queue drained once per tick by the cleanup system.
type World struct {
	pool         *Pool
	stores       []Remover
	destroyQueue []Entity
}

func NewWorld() *World {
	return &World{
		pool:         NewPool(),
		stores:       make([]Remover, 0, 8),
		destroyQueue: make([]Entity, 0, 16),
	}
}

// Register makes a store participate in entity destruction.
func (w *World) Register(s Remover) {
	w.stores = append(w.stores, s)
}

// Register creates a store for T and registers it with w.
func Register[T any](w *World) *Store[T] {
	s := NewStore[T]()
	w.Register(s)
	return s
}

func (w *World) Create() Entity {
	return w.pool.Create()
}

func (w *World) Alive(e Entity) bool {
	return w.pool.Alive(e)
}

func (w *World) Count() int {
	return w.pool.Count()
}

// MarkForDestruction queues e for the end-of-tick flush.
func (w *World) MarkForDestruction(e Entity) {
	w.destroyQueue = append(w.destroyQueue, e)
}

// PendingDestruction reports whether e is queued for destruction.
func (w *World) PendingDestruction(e Entity) bool {
	for _, q := range w.destroyQueue {
		if q == e {
			return true
		}
	}
	return false
}

// FlushDestroyQueue strips queued entities from all stores and frees their
// slots. It returns how many were destroyed.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, e := range w.destroyQueue {
		if !w.pool.Alive(e) {
			continue
		}
		for _, s := range w.stores {
			s.Remove(e)
		}
		w.pool.Destroy(e)
		n++
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}
