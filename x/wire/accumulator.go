package wire

import (
	"sync"
)

// entry is the partial reassembly state of one waveform
type entry struct {
	size     int
	segments map[int][]int32
	received int
}

func newEntry(size int) *entry {
	return &entry{
		size:     size,
		segments: make(map[int][]int32),
	}
}

// add stores data at index and reports whether the declared size has been reached.
// A repeated index replaces the earlier data.
func (e *entry) add(index int, data []int32) (bool, *Error) {
	if len(data) == 0 {
		return false, NewProtocolError("segment must carry at least one element")
	}

	received := e.received
	if old, ok := e.segments[index]; ok {
		received -= len(old)
	}
	if received+len(data) > e.size {
		return false, NewProtocolError("segments total %d elements, more than waveform size %d",
			received+len(data), e.size)
	}

	e.segments[index] = data
	e.received = received + len(data)
	return e.received == e.size, nil
}

// join checks that indexes 0..max are all present and concatenates them
func (e *entry) join() ([]int32, *Error) {
	last := -1
	for idx := range e.segments {
		last = max(last, idx)
	}
	for i := 0; i <= last; i++ {
		if _, ok := e.segments[i]; !ok {
			return nil, NewProtocolError("missing segment index %d of %d", i, last+1)
		}
	}
	return Concat(e.segments, e.size), nil
}

// Stats is a snapshot of accumulator counters
type Stats struct {
	Pending    int    `json:"pending"`
	Completed  uint64 `json:"completed"`
	Evicted    uint64 `json:"evicted"`
	Duplicates uint64 `json:"duplicates"`
	Errors     uint64 `json:"errors"`
}

// Accumulator collects segments of the waveforms of one channel, drops waveforms that fell
// too far behind and returns each waveform once it is complete.
//
// Ids are compared by circular distance d = entry - incoming. On every push, entries with
// d < -dropDistance (stale) or d > 2*dropDistance (ahead of the sender, e.g. after a sender
// restart) are evicted. Tracked state is therefore bounded by 3*dropDistance+1 entries.
type Accumulator struct {
	mu           sync.Mutex
	dropDistance int32
	entries      map[ID]*entry
	// done remembers recently completed ids so resent segments do not complete twice
	done map[ID]struct{}

	completed  uint64
	evicted    uint64
	duplicates uint64
	errors     uint64
}

// NewAccumulator creates an accumulator with the given drop distance
func NewAccumulator(dropDistance int) (*Accumulator, error) {
	if dropDistance < 0 {
		return nil, NewConfigError("drop distance must not be negative, got %d", dropDistance)
	}
	return &Accumulator{
		dropDistance: int32(dropDistance),
		entries:      make(map[ID]*entry),
		done:         make(map[ID]struct{}),
	}, nil
}

// Push adds a decoded segment. It returns the waveform when seg completes it and nil
// otherwise. On a protocol error the waveform's partial state is discarded.
func (a *Accumulator) Push(seg Segment) (*Waveform, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evict(seg.ID)

	if _, ok := a.done[seg.ID]; ok {
		a.duplicates++
		return nil, nil
	}

	e, ok := a.entries[seg.ID]
	if !ok {
		e = newEntry(seg.Size)
		a.entries[seg.ID] = e
	} else if e.size != seg.Size {
		delete(a.entries, seg.ID)
		a.errors++
		return nil, NewProtocolError("conflicting waveform redeclaration: size %d, previously %d",
			seg.Size, e.size).WithSegment(seg.ID, seg.Index)
	}

	complete, addErr := e.add(seg.Index, seg.Data)
	if addErr != nil {
		delete(a.entries, seg.ID)
		a.errors++
		return nil, addErr.WithSegment(seg.ID, seg.Index)
	}
	if !complete {
		return nil, nil
	}

	elements, joinErr := e.join()
	delete(a.entries, seg.ID)
	if joinErr != nil {
		a.errors++
		return nil, joinErr.WithSegment(seg.ID, seg.Index)
	}

	for id := range a.entries {
		if id.Distance(seg.ID) < 0 {
			delete(a.entries, id)
			a.evicted++
		}
	}
	a.done[seg.ID] = struct{}{}
	a.completed++

	return &Waveform{ID: seg.ID, Elements: elements}, nil
}

// evict removes entries and completion marks outside the window around id
func (a *Accumulator) evict(id ID) {
	for key := range a.entries {
		if a.outside(key, id) {
			delete(a.entries, key)
			a.evicted++
		}
	}
	for key := range a.done {
		if a.outside(key, id) {
			delete(a.done, key)
		}
	}
}

func (a *Accumulator) outside(key, id ID) bool {
	d := int64(key.Distance(id))
	dd := int64(a.dropDistance)
	return d < -dd || d > 2*dd
}

// Pending returns the number of partially received waveforms
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Stats returns a snapshot of the accumulator counters
func (a *Accumulator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Pending:    len(a.entries),
		Completed:  a.completed,
		Evicted:    a.evicted,
		Duplicates: a.duplicates,
		Errors:     a.errors,
	}
}

// Reset drops all tracked state
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.entries)
	clear(a.done)
}
