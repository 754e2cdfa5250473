package distribution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, it Iterator) []Tuple {
	t.Helper()
	var tuples []Tuple
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		tuples = append(tuples, tup)
	}
	return tuples
}

func TestRoundRobinScenario1(t *testing.T) {
	rr := NewRoundRobin(3, 4096)
	it := rr.Iterator(12288, 0)
	tuples := collect(t, it)

	require.Equal(t, []Tuple{
		{ServerIndex: 0, SubOffset: 0, SubLength: 4096, BlockID: 0},
		{ServerIndex: 1, SubOffset: 0, SubLength: 4096, BlockID: 1},
		{ServerIndex: 2, SubOffset: 0, SubLength: 4096, BlockID: 2},
	}, tuples)

	var total uint64
	for _, tup := range tuples {
		total += tup.SubLength
	}
	require.EqualValues(t, 12288, total)
}

func TestRoundRobinShortReadPastEOFIsCallerConcern(t *testing.T) {
	// The distribution layer itself doesn't know about EOF; it only maps
	// the requested range.
	rr := NewRoundRobin(1, 4096)
	it := rr.Iterator(200, 0)
	tuples := collect(t, it)
	var total uint64
	for _, tup := range tuples {
		total += tup.SubLength
	}
	require.EqualValues(t, 200, total)
}

func TestRoundRobinDeterministic(t *testing.T) {
	rr := NewRoundRobin(4, 1024)
	a := collect(t, rr.Iterator(5000, 777))
	b := collect(t, rr.Iterator(5000, 777))
	require.Equal(t, a, b)
}

func TestRoundRobinEmptyRangeIsNoOp(t *testing.T) {
	rr := NewRoundRobin(3, 4096)
	_, ok := rr.Iterator(0, 0).Next()
	require.False(t, ok)
}

func TestRoundRobinUnalignedOffset(t *testing.T) {
	rr := NewRoundRobin(2, 100)
	tuples := collect(t, rr.Iterator(250, 30))
	require.Equal(t, []Tuple{
		{ServerIndex: 0, SubOffset: 30, SubLength: 70, BlockID: 0},
		{ServerIndex: 1, SubOffset: 0, SubLength: 100, BlockID: 1},
		{ServerIndex: 0, SubOffset: 0, SubLength: 80, BlockID: 2},
	}, tuples)
	var total uint64
	for _, tup := range tuples {
		total += tup.SubLength
	}
	require.EqualValues(t, 250, total)
}

func TestSingleServer(t *testing.T) {
	s := NewSingle(3, 2)
	tuples := collect(t, s.Iterator(999, 50))
	require.Equal(t, []Tuple{{ServerIndex: 2, SubOffset: 50, SubLength: 999, BlockID: 0}}, tuples)
}

func TestWeightedProportions(t *testing.T) {
	w := NewWeighted([]int{3, 1}, 1024)
	tuples := collect(t, w.Iterator(1024*8, 0))

	counts := map[int]int{}
	for _, tup := range tuples {
		counts[tup.ServerIndex]++
	}
	// Over two full cycles (4 blocks each) server 0 gets 3/4 of blocks.
	require.Equal(t, 6, counts[0])
	require.Equal(t, 2, counts[1])
}

func TestWeightedDeterministic(t *testing.T) {
	w := NewWeighted([]int{2, 2, 1}, 512)
	a := collect(t, w.Iterator(4096, 123))
	b := collect(t, w.Iterator(4096, 123))
	require.Equal(t, a, b)
}

func TestReplicatedReplicas(t *testing.T) {
	base := NewRoundRobin(4, 1024)
	rep := NewReplicated(base, 2)
	tup := Tuple{ServerIndex: 3}
	require.Equal(t, []int{3, 0}, rep.Replicas(tup))
}
