// Package distribution maps a logical (offset, length) byte range on an
// object onto per-server (server_index, sub_offset, sub_length, block_id)
// tuples, by pluggable strategy (spec.md §4.3).
package distribution

// Tuple is one server's slice of a distribution iteration.
type Tuple struct {
	ServerIndex int
	SubOffset   uint64
	SubLength   uint64
	BlockID     uint64
}

// Strategy maps a range onto a sequence of Tuples. Implementations must be
// deterministic: two Iterator+Next sequences over the same (length, offset)
// must yield identical tuples (spec.md §4.3's iteration contract).
type Strategy interface {
	// NumServers is the number of distinct server indices this strategy can
	// address, used by callers to size per-server fan-out buffers.
	NumServers() int
	// Iterator arms a fresh, independent iteration over the given range.
	Iterator(length, offset uint64) Iterator
}

// Iterator produces the tuples of one distribution pass.
type Iterator interface {
	// Next produces the next tuple; it returns ok=false once the logical
	// range is exhausted.
	Next() (Tuple, bool)
}
