// Package ringlog implements a bounded append-only log that keeps the
// most recent N records.
package ringlog

// Seq numbers records in arrival order, starting at 0.
// Sequence numbers keep growing after old records are evicted.
type Seq int64

// Ring is not safe for concurrent use; the owner synchronises access.
type Ring[T any] struct {
	records   []T
	firstSeq  Seq
	lastSeq   Seq
	lastIndex int
	max       int
}

// New returns an empty ring holding at most max records. max below 1 is treated as 1.
func New[T any](max int) *Ring[T] {
	if max < 1 {
		max = 1
	}
	return &Ring[T]{
		max:       max,
		lastIndex: -1,
		firstSeq:  -1,
		lastSeq:   -1,
	}
}

// Append adds a record, evicting the oldest one when full, and returns its Seq.
func (r *Ring[T]) Append(record T) Seq {
	r.lastSeq++

	switch {
	case len(r.records) < r.max:
		if r.firstSeq == -1 {
			r.firstSeq = r.lastSeq
		}
		r.records = append(r.records, record)
		r.lastIndex++
	default:
		r.firstSeq++
		i := (r.lastIndex + 1) % r.max
		r.records[i] = record
		r.lastIndex = i
	}

	return r.lastSeq
}

func (r *Ring[T]) Len() int {
	return len(r.records)
}

// Last returns up to count most recent records, oldest first.
func (r *Ring[T]) Last(count int) []T {
	if r.lastSeq == -1 || count <= 0 {
		return []T{}
	}

	count = min(count, len(r.records))
	return r.copyFrom(r.lastSeq-Seq(count)+1, count)
}

// All returns every retained record, oldest first.
func (r *Ring[T]) All() []T {
	return r.Last(len(r.records))
}

// Filter returns the retained records matching keep, oldest first.
func (r *Ring[T]) Filter(keep func(T) bool) []T {
	out := []T{}
	for _, rec := range r.All() {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Ring[T]) copyFrom(from Seq, count int) []T {
	result := make([]T, count)

	// Index of the oldest record.
	head := 0
	if len(r.records) == r.max {
		head = (r.lastIndex + 1) % r.max
	}

	startIdx := (head + int(from-r.firstSeq)) % len(r.records)

	if startIdx+count <= len(r.records) {
		copy(result, r.records[startIdx:startIdx+count])
	} else {
		n1 := len(r.records) - startIdx
		copy(result, r.records[startIdx:])
		copy(result[n1:], r.records[:count-n1])
	}

	return result
}
