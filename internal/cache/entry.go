package cache

import (
	"time"
)

// State is the lifecycle state of a cache entry.
//
//	Fresh -> Stale            (time passes or Invalidate)
//	Fresh|Stale -> Fetching   (refetch triggered)
//	Fetching -> Fresh|Error   (fetch settles)
//
// Write and Restore set the state directly.
type State int

const (
	Fresh State = iota
	Stale
	Fetching
	Error
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	case Fetching:
		return "fetching"
	case Error:
		return "error"
	}
	return "unknown"
}

// Entry is a copy of one cached query result. The cache never hands out
// its own storage; Value is safe to keep and modify.
type Entry struct {
	Key        Key
	Value      []byte // nil when absent
	FetchedAt  time.Time
	StaleAfter time.Duration
	State      State
	Err        error
}

// Present reports whether the entry holds a value.
func (e Entry) Present() bool { return e.Value != nil }

// entry is the cache's private record for one key.
type entry struct {
	Entry

	// gen identifies the write or fetch that owns the entry. A fetch result
	// is only applied when its generation is still current.
	gen uint64

	fetch   Fetcher
	readers int
	settled chan struct{} // closed and replaced whenever the entry settles
}

func (e *entry) snapshot() Entry {
	out := e.Entry
	out.Value = clone(e.Value)
	return out
}

func (e *entry) signal() {
	close(e.settled)
	e.settled = make(chan struct{})
}

// placeholder reports whether e was only created to track readers: it has
// never held a value, failed, or started a fetch.
func (e *entry) placeholder() bool {
	return e.Value == nil && e.State == Stale && e.Err == nil
}

// expire applies time-driven staleness.
func (e *entry) expire(now time.Time) {
	if e.State == Fresh && !now.Before(e.FetchedAt.Add(e.StaleAfter)) {
		e.State = Stale
	}
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
