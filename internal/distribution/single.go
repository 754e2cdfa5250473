package distribution

// Single sends every byte to one chosen server index.
type Single struct {
	Servers int
	Index   int
}

func NewSingle(servers, index int) *Single {
	return &Single{Servers: servers, Index: index}
}

func (s *Single) NumServers() int { return s.Servers }

func (s *Single) Iterator(length, offset uint64) Iterator {
	return &singleIter{index: s.Index, offset: offset, remaining: length}
}

type singleIter struct {
	index     int
	offset    uint64
	remaining uint64
	done      bool
}

func (it *singleIter) Next() (Tuple, bool) {
	if it.done || it.remaining == 0 {
		return Tuple{}, false
	}
	it.done = true
	return Tuple{
		ServerIndex: it.index,
		SubOffset:   it.offset,
		SubLength:   it.remaining,
		BlockID:     0,
	}, true
}
