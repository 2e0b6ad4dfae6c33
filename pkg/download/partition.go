package download

import "fmt"

// Range is the half-open byte interval [Begin, End) fetched by one worker.
type Range struct {
	Index int
	Begin int64
	End   int64
}

func (r Range) Len() int64 {
	return r.End - r.Begin
}

func (r Range) Empty() bool {
	return r.Begin >= r.End
}

func (r Range) String() string {
	return fmt.Sprintf("#%d [%d, %d)", r.Index, r.Begin, r.End)
}

// Partition splits [0, size) into n contiguous ranges of ceil(size/n) bytes,
// the last one taking the remainder. When size is small compared to n, the
// trailing ranges are empty; they always sit at the tail and never overlap
// anything. n < 1 is treated as 1.
func Partition(size int64, n int) []Range {
	if n < 1 {
		n = 1
	}
	if size < 0 {
		size = 0
	}
	chunk := size / int64(n)
	if size%int64(n) != 0 {
		chunk++
	}
	ranges := make([]Range, n)
	for i := range ranges {
		ranges[i] = Range{
			Index: i,
			Begin: min(int64(i)*chunk, size),
			End:   min(int64(i+1)*chunk, size),
		}
	}
	ranges[n-1].End = size
	return ranges
}
