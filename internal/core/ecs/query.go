package ecs

// Each2 visits entities holding both A and B, in A's insertion order.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(Entity, *A, *B)) {
	for i, e := range sa.entities {
		if b, ok := sb.Get(e); ok {
			fn(e, sa.values[i], b)
		}
	}
}
