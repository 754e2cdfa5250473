package distribution

// Weighted stripes fixed-size blocks across servers in proportion to a
// per-server weight: server i receives w_i / sum(w) of each round. The
// per-round server order is computed once, deterministically, from the
// weights (a weighted round-robin schedule), so block b always maps to the
// same server regardless of how many times the strategy is iterated.
type Weighted struct {
	BlockSize  uint64
	numServers int
	schedule   []int // server index per schedule slot
}

// NewWeighted builds a Weighted strategy from one weight per server. Weights
// must be positive integers; a weight of 0 excludes that server entirely.
func NewWeighted(weights []int, blockSize uint64) *Weighted {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &Weighted{
		BlockSize:  blockSize,
		numServers: len(weights),
		schedule:   buildSchedule(weights),
	}
}

// buildSchedule produces a deterministic interleaving where server i
// appears exactly weights[i] times per full cycle, spread as evenly as
// possible (classic weighted round-robin, not grouped by server).
func buildSchedule(weights []int) []int {
	maxW := 0
	for _, w := range weights {
		if w > maxW {
			maxW = w
		}
	}
	schedule := make([]int, 0)
	for round := 0; round < maxW; round++ {
		for i, w := range weights {
			if round < w {
				schedule = append(schedule, i)
			}
		}
	}
	return schedule
}

func (w *Weighted) NumServers() int { return w.numServers }

func (w *Weighted) Iterator(length, offset uint64) Iterator {
	return &weightedIter{
		strategy:  w,
		block:     offset / w.BlockSize,
		subOffset: offset % w.BlockSize,
		remaining: length,
		first:     true,
	}
}

type weightedIter struct {
	strategy  *Weighted
	block     uint64
	subOffset uint64
	remaining uint64
	first     bool
}

func (it *weightedIter) Next() (Tuple, bool) {
	if it.remaining == 0 {
		return Tuple{}, false
	}

	subOffset := uint64(0)
	if it.first {
		subOffset = it.subOffset
	}
	capacity := it.strategy.BlockSize - subOffset
	subLen := it.remaining
	if subLen > capacity {
		subLen = capacity
	}

	schedule := it.strategy.schedule
	server := schedule[it.block%uint64(len(schedule))]

	t := Tuple{
		ServerIndex: server,
		SubOffset:   subOffset,
		SubLength:   subLen,
		BlockID:     it.block,
	}

	it.remaining -= subLen
	it.block++
	it.first = false
	return t, true
}
