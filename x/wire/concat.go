package wire

import "sort"

// Concat joins segments in ascending index order. Contiguity must already be checked.
func Concat(segments map[int][]int32, size int) []int32 {
	indexes := make([]int, 0, len(segments))
	for idx := range segments {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]int32, 0, size)
	for _, idx := range indexes {
		out = append(out, segments[idx]...)
	}
	return out
}
