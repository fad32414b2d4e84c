package ecs

// Remover is implemented by every component store so the World can strip a
// destroyed entity from all of them.
type Remover interface {
	Remove(e Entity)
}

// Store holds one component type. Iteration follows insertion order, which
// keeps per-tick updates deterministic between server and client.
type Store[T any] struct {
	entities []Entity
	values   []*T
	index    map[Entity]int
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		entities: make([]Entity, 0, 64),
		values:   make([]*T, 0, 64),
		index:    make(map[Entity]int, 64),
	}
}

// Set attaches or replaces the component for e.
func (s *Store[T]) Set(e Entity, c *T) {
	if i, ok := s.index[e]; ok {
		s.values[i] = c
		return
	}
	s.index[e] = len(s.entities)
	s.entities = append(s.entities, e)
	s.values = append(s.values, c)
}

func (s *Store[T]) Get(e Entity) (*T, bool) {
	i, ok := s.index[e]
	if !ok {
		return nil, false
	}
	return s.values[i], true
}

func (s *Store[T]) Has(e Entity) bool {
	_, ok := s.index[e]
	return ok
}

func (s *Store[T]) Remove(e Entity) {
	i, ok := s.index[e]
	if !ok {
		return
	}
	delete(s.index, e)
	copy(s.entities[i:], s.entities[i+1:])
	copy(s.values[i:], s.values[i+1:])
	last := len(s.entities) - 1
	s.values[last] = nil
	s.entities = s.entities[:last]
	s.values = s.values[:last]
	for j := i; j < last; j++ {
		s.index[s.entities[j]] = j
	}
}

func (s *Store[T]) Len() int {
	return len(s.entities)
}

// Each visits components in insertion order. fn must not add or remove
// components of this store.
func (s *Store[T]) Each(fn func(Entity, *T)) {
	for i, e := range s.entities {
		fn(e, s.values[i])
	}
}
