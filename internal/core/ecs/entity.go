package ecs

// Entity is an opaque handle. The low 32 bits hold a slot index and the high
// 32 bits a generation that starts at 1, so the zero Entity is never alive.
type Entity uint64

// Nil is the zero handle, used for "no entity".
const Nil Entity = 0

func makeEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsNil() bool        { return e == Nil }

// Pool hands out entity handles and recycles destroyed slots. A recycled slot
// gets a new generation so stale handles stop resolving.
type Pool struct {
	generations []uint32
	free        []uint32
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 0, 256),
		free:        make([]uint32, 0, 64),
	}
}

func (p *Pool) Create() Entity {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		return makeEntity(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	return makeEntity(idx, 1)
}

func (p *Pool) Alive(e Entity) bool {
	idx := e.Index()
	if e.IsNil() || int(idx) >= len(p.generations) {
		return false
	}
	return p.generations[idx] == e.Generation()
}

// Destroy invalidates e. Destroying a stale or nil handle is a no-op.
func (p *Pool) Destroy(e Entity) bool {
	if !p.Alive(e) {
		return false
	}
	idx := e.Index()
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.free = append(p.free, idx)
	return true
}

// Count returns the number of live entities.
func (p *Pool) Count() int {
	return len(p.generations) - len(p.free)
}
