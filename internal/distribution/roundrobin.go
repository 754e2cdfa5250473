package distribution

// DefaultBlockSize is the round-robin block size when none is configured
// (spec.md §4.3): 512 KiB.
const DefaultBlockSize uint64 = 512 * 1024

// RoundRobin stripes fixed-size blocks across servers: block b lives on
// server b mod N.
type RoundRobin struct {
	Servers   int
	BlockSize uint64
}

func NewRoundRobin(servers int, blockSize uint64) *RoundRobin {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &RoundRobin{Servers: servers, BlockSize: blockSize}
}

func (r *RoundRobin) NumServers() int { return r.Servers }

func (r *RoundRobin) Iterator(length, offset uint64) Iterator {
	return &roundRobinIter{
		strategy:  r,
		block:     offset / r.BlockSize,
		subOffset: offset % r.BlockSize,
		remaining: length,
		first:     true,
	}
}

type roundRobinIter struct {
	strategy  *RoundRobin
	block     uint64
	subOffset uint64
	remaining uint64
	first     bool
}

func (it *roundRobinIter) Next() (Tuple, bool) {
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

	t := Tuple{
		ServerIndex: int(it.block % uint64(it.strategy.Servers)),
		SubOffset:   subOffset,
		SubLength:   subLen,
		BlockID:     it.block,
	}

	it.remaining -= subLen
	it.block++
	it.first = false
	return t, true
}
