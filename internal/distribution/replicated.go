package distribution

// Replicated decorates a base strategy so each tuple's block is additionally
// available from ReplicationFactor-1 extra server indices, computed as a
// deterministic offset from the primary. It is a read-side latency hedge
// (SPEC_FULL.md §4.3 supplement) — writes still go through the base
// strategy's primary server only; Replicated is never used to decide where
// a write lands, only which extra servers a read may race against.
type Replicated struct {
	Base               Strategy
	ReplicationFactor  int
}

func NewReplicated(base Strategy, factor int) *Replicated {
	if factor < 1 {
		factor = 1
	}
	return &Replicated{Base: base, ReplicationFactor: factor}
}

func (r *Replicated) NumServers() int { return r.Base.NumServers() }

func (r *Replicated) Iterator(length, offset uint64) Iterator {
	return &replicatedIter{r: r, inner: r.Base.Iterator(length, offset)}
}

// Replicas returns every server index a given tuple's block may be read
// from, primary first, ordered deterministically.
func (r *Replicated) Replicas(t Tuple) []int {
	n := r.Base.NumServers()
	out := make([]int, 0, r.ReplicationFactor)
	seen := make(map[int]struct{}, r.ReplicationFactor)
	for k := 0; k < r.ReplicationFactor && k < n; k++ {
		idx := (t.ServerIndex + k) % n
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	return out
}

type replicatedIter struct {
	r     *Replicated
	inner Iterator
}

func (it *replicatedIter) Next() (Tuple, bool) {
	return it.inner.Next()
}
