package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pos struct{ X, Y float32 }
type tag struct{}

func TestPool_GenerationsInvalidateStaleHandles(t *testing.T) {
	p := NewPool()
	a := p.Create()
	require.False(t, a.IsNil(), "first entity must not collide with Nil")
	require.True(t, p.Alive(a))

	assert.True(t, p.Destroy(a))
	assert.False(t, p.Alive(a))
	assert.False(t, p.Destroy(a), "double destroy is a no-op")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "slot is recycled")
	assert.NotEqual(t, a.Generation(), b.Generation())
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Count())
}

func TestStore_IterationFollowsInsertionOrder(t *testing.T) {
	w := NewWorld()
	s := Register[pos](w)

	var ents []Entity
	for i := 0; i < 5; i++ {
		e := w.Create()
		ents = append(ents, e)
		s.Set(e, &pos{X: float32(i)})
	}
	s.Remove(ents[1])

	var seen []Entity
	s.Each(func(e Entity, p *pos) { seen = append(seen, e) })
	assert.Equal(t, []Entity{ents[0], ents[2], ents[3], ents[4]}, seen)

	got, ok := s.Get(ents[3])
	require.True(t, ok)
	assert.Equal(t, float32(3), got.X, "index stays valid after removal")
}

func TestEach2_JoinsOnlyEntitiesWithBoth(t *testing.T) {
	w := NewWorld()
	ps := Register[pos](w)
	ts := Register[tag](w)

	a, b, c := w.Create(), w.Create(), w.Create()
	ps.Set(a, &pos{})
	ps.Set(b, &pos{})
	ts.Set(b, &tag{})
	ts.Set(c, &tag{})

	var joined []Entity
	Each2(ps, ts, func(e Entity, _ *pos, _ *tag) { joined = append(joined, e) })
	assert.Equal(t, []Entity{b}, joined)
}

func TestWorld_FlushDestroyQueueStripsAllStores(t *testing.T) {
	w := NewWorld()
	ps := Register[pos](w)
	ts := Register[tag](w)

	e := w.Create()
	ps.Set(e, &pos{})
	ts.Set(e, &tag{})
	w.MarkForDestruction(e)
	w.MarkForDestruction(e)
	assert.True(t, w.PendingDestruction(e))

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(e))
	assert.False(t, ps.Has(e))
	assert.False(t, ts.Has(e))
	assert.False(t, w.PendingDestruction(e))
}
