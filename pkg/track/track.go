// Package track implements the multi-track MIDI score: a time-ordered
// Track of Messages, an insertion-ordered Multitrack of Tracks, and a
// chronological Iterator over the whole Multitrack.
package track

import "github.com/zurustar/midiseq/pkg/midimsg"

// TrackType classifies a Track by its message content.
type TrackType int

const (
	TypeEmpty TrackType = iota
	TypeMain            // meta events only; conventionally track 0
	TypeSingleChannel    // every channel message, note and non-note alike, shares one channel
	TypeIrregularChannel // notes share one channel, but some non-note message (program change,
	// control change, pitch bend...) uses a different channel
	TypeMixedChannel // notes, or the non-note channel messages, span more than one channel
)

// Track is a time-ordered sequence of Messages. The last element is always
// an end-of-track sentinel whose Time is >= every other event's Time.
type Track struct {
	events []midimsg.Message

	OutPort    int
	RecPort    int
	RecChannel int
}

// New returns an empty Track containing only its end-of-track sentinel.
func New() *Track {
	t := &Track{RecChannel: -1}
	var eot midimsg.Message
	eot.SetEndOfTrack()
	t.events = []midimsg.Message{eot}
	return t
}

// Len returns the number of events, including the sentinel.
func (t *Track) Len() int { return len(t.events) }

// At returns the event at index i (0 <= i < Len()).
func (t *Track) At(i int) midimsg.Message { return t.events[i] }

// EndTime returns the sentinel's timestamp.
func (t *Track) EndTime() uint32 {
	return t.events[len(t.events)-1].Time
}

// sentinelIndex returns the index of the end-of-track event.
func (t *Track) sentinelIndex() int { return len(t.events) - 1 }

func (t *Track) bumpSentinel(newTime uint32) {
	last := t.sentinelIndex()
	if newTime > t.events[last].Time {
		t.events[last].Time = newTime
	}
}

// Insert inserts msg keeping events non-decreasing by Time, after any
// existing events at the same time (stable), and updates the sentinel if
// needed. The sentinel itself cannot be
// inserted through this call.
func (t *Track) Insert(msg midimsg.Message) {
	last := t.sentinelIndex()
	pos := last
	for pos > 0 && t.events[pos-1].Time > msg.Time {
		pos--
	}
	t.events = append(t.events, midimsg.Message{})
	copy(t.events[pos+1:], t.events[pos:len(t.events)-1])
	t.events[pos] = msg
	t.bumpSentinel(msg.Time)
}

// Delete removes the event at index i. The sentinel (last index) cannot be
// deleted.
func (t *Track) Delete(i int) bool {
	if i < 0 || i >= t.sentinelIndex() {
		return false
	}
	t.events = append(t.events[:i], t.events[i+1:]...)
	return true
}

// ReplaceInterval replaces events in [from,to) with repl, re-sorting by
// Time, and keeps the sentinel coherent.
func (t *Track) ReplaceInterval(from, to int, repl []midimsg.Message) bool {
	last := t.sentinelIndex()
	if from < 0 || to > last || from > to {
		return false
	}
	tail := append([]midimsg.Message(nil), t.events[to:]...)
	t.events = append(t.events[:from:from], repl...)
	t.events = append(t.events, tail...)
	maxT := uint32(0)
	for _, e := range repl {
		if e.Time > maxT {
			maxT = e.Time
		}
	}
	t.bumpSentinel(maxT)
	t.sortStable()
	return true
}

// ClearInterval removes every musical event whose Time lies in [from,to).
func (t *Track) ClearInterval(from, to uint32) {
	out := t.events[:0:0]
	for _, e := range t.events[:t.sentinelIndex()] {
		if e.Time < from || e.Time >= to {
			out = append(out, e)
		}
	}
	out = append(out, t.events[t.sentinelIndex()])
	t.events = out
}

func (t *Track) sortStable() {
	// insertion sort: tracks are small relative to a full rescan and this
	// keeps equal-time relative order (stable) without disturbing tie order.
	for i := 1; i < len(t.events); i++ {
		for j := i; j > 0 && t.events[j-1].Time > t.events[j].Time; j-- {
			t.events[j-1], t.events[j] = t.events[j], t.events[j-1]
		}
	}
}

// Classify reports the TrackType implied by the channel messages present.
// Note and non-note channel messages are tracked separately: a track whose
// notes sit on one channel but whose program changes/controllers/pitch
// bend stray onto another is IrregularChannel rather than fully Mixed.
func (t *Track) Classify() TrackType {
	noteChannel, otherChannel := -1, -1
	noteMixed, otherMixed := false, false
	hasChannel := false
	for _, e := range t.events[:t.sentinelIndex()] {
		ch, ok := e.Channel()
		if !ok {
			continue
		}
		hasChannel = true
		if e.IsNoteOn() || e.IsNoteOff() {
			if noteChannel == -1 {
				noteChannel = int(ch)
			} else if int(ch) != noteChannel {
				noteMixed = true
			}
			continue
		}
		if otherChannel == -1 {
			otherChannel = int(ch)
		} else if int(ch) != otherChannel {
			otherMixed = true
		}
	}
	switch {
	case !hasChannel && t.sentinelIndex() == 0:
		return TypeEmpty
	case !hasChannel:
		return TypeMain
	case noteMixed || otherMixed:
		return TypeMixedChannel
	case noteChannel != -1 && otherChannel != -1 && noteChannel != otherChannel:
		return TypeIrregularChannel
	default:
		return TypeSingleChannel
	}
}

// Clone returns a deep copy of the track.
func (t *Track) Clone() *Track {
	cp := &Track{OutPort: t.OutPort, RecPort: t.RecPort, RecChannel: t.RecChannel}
	cp.events = make([]midimsg.Message, len(t.events))
	for i, e := range t.events {
		cp.events[i] = e.Clone()
	}
	return cp
}
