package track

import "github.com/zurustar/midiseq/pkg/midimsg"

// Iterator produces the globally next (track, message) pair across a
// Multitrack in chronological order, tie-breaking by round-robin from the
// previously selected track so that repeated calls at equal time are fair.
// It holds a non-owning reference to the Multitrack, valid for
// as long as the caller keeps that Multitrack unchanged underneath it.
type Iterator struct {
	mt        *Multitrack
	nextIndex []int    // per-track next-event index, -1 when exhausted
	nextTime  []uint32 // per-track next-event time, valid iff nextIndex[i] >= 0
	clock     uint32
	lastTrack int
}

// NewIterator returns an Iterator over mt, positioned at time 0.
func NewIterator(mt *Multitrack) *Iterator {
	it := &Iterator{mt: mt}
	it.Reset()
	return it
}

// Reset places the iterator at time 0.
func (it *Iterator) Reset() {
	n := it.mt.NumTracks()
	it.nextIndex = make([]int, n)
	it.nextTime = make([]uint32, n)
	for i := 0; i < n; i++ {
		tr := it.mt.Track(i)
		if tr.Len() > 1 { // has at least one real event besides the sentinel
			it.nextIndex[i] = 0
			it.nextTime[i] = tr.At(0).Time
		} else {
			it.nextIndex[i] = -1
		}
	}
	it.clock = 0
	it.lastTrack = n - 1
}

// Clock returns the clock time of the last event produced by NextEvent.
func (it *Iterator) Clock() uint32 { return it.clock }

// NextEventTime returns the earliest next-event time among non-exhausted
// tracks.
func (it *Iterator) NextEventTime() (uint32, bool) {
	track, t, ok := it.selectNext()
	_ = track
	return t, ok
}

// selectNext finds the track with minimum next-event time, breaking ties by
// round-robin scan starting right after lastTrack.
func (it *Iterator) selectNext() (trackIdx int, t uint32, ok bool) {
	n := len(it.nextIndex)
	found := false
	var bestTime uint32
	best := -1
	for step := 1; step <= n; step++ {
		i := (it.lastTrack + step) % n
		if it.nextIndex[i] < 0 {
			continue
		}
		if !found || it.nextTime[i] < bestTime {
			found = true
			bestTime = it.nextTime[i]
			best = i
		}
	}
	if !found {
		return -1, 0, false
	}
	return best, bestTime, true
}

// NextEvent returns the chronologically next (track index, message) pair
// and advances that track's cursor.
func (it *Iterator) NextEvent() (trackIdx int, msg midimsg.Message, ok bool) {
	i, t, has := it.selectNext()
	if !has {
		return 0, midimsg.Message{}, false
	}
	tr := it.mt.Track(i)
	msg = tr.At(it.nextIndex[i])
	it.clock = t
	it.lastTrack = i

	next := it.nextIndex[i] + 1
	if next >= tr.sentinelIndex() {
		it.nextIndex[i] = -1
	} else {
		it.nextIndex[i] = next
		it.nextTime[i] = tr.At(next).Time
	}
	return i, msg, true
}

// GoToTime resets the iterator and consumes every event earlier than t, so
// the next event it returns is the first at or after t (or the multitrack
// is exhausted).
func (it *Iterator) GoToTime(t uint32) {
	it.Reset()
	for {
		nt, ok := it.NextEventTime()
		if !ok || nt >= t {
			return
		}
		if _, _, ok := it.NextEvent(); !ok {
			return
		}
	}
}
