package track

import (
	"testing"

	"github.com/zurustar/midiseq/pkg/midimsg"
)

func noteOn(ch, note, vel byte, t uint32) midimsg.Message {
	var m midimsg.Message
	m.SetNoteOn(ch, note, vel)
	m.Time = t
	return m
}

func TestTrackInsertKeepsSentinelAtEnd(t *testing.T) {
	tr := New()
	tr.Insert(noteOn(0, 60, 100, 10))
	tr.Insert(noteOn(0, 62, 100, 5))
	if tr.Len() != 3 {
		t.Fatalf("expected 3 events (2 + sentinel), got %d", tr.Len())
	}
	if tr.At(0).Time != 5 || tr.At(1).Time != 10 {
		t.Fatalf("events not sorted by time: %v %v", tr.At(0).Time, tr.At(1).Time)
	}
	if !tr.At(2).IsEndOfTrack() {
		t.Fatalf("last event must be the sentinel")
	}
	if tr.EndTime() < 10 {
		t.Fatalf("sentinel time must be >= last event time, got %d", tr.EndTime())
	}
}

func TestTrackDeleteCannotTouchSentinel(t *testing.T) {
	tr := New()
	if tr.Delete(0) {
		t.Fatalf("deleting the sole sentinel must fail")
	}
}

func TestClassify(t *testing.T) {
	tr := New()
	if tr.Classify() != TypeEmpty {
		t.Fatalf("expected TypeEmpty")
	}
	tr.Insert(noteOn(1, 60, 100, 0))
	if tr.Classify() != TypeSingleChannel {
		t.Fatalf("expected TypeSingleChannel")
	}
	tr.Insert(noteOn(2, 61, 100, 1))
	if tr.Classify() != TypeMixedChannel {
		t.Fatalf("expected TypeMixedChannel")
	}
}

func TestClassifyIrregularChannel(t *testing.T) {
	tr := New()
	tr.Insert(noteOn(1, 60, 100, 0))
	tr.Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetProgramChange(2, 5)
		m.Time = 0
		return m
	}())
	if got := tr.Classify(); got != TypeIrregularChannel {
		t.Fatalf("expected TypeIrregularChannel, got %v", got)
	}
}

func buildTwoTrackMultitrack() *Multitrack {
	mt := NewMultitrack(480)
	mt.InsertTrack()
	mt.Track(1).Insert(noteOn(0, 60, 100, 0))
	mt.Track(1).Insert(noteOn(0, 60, 0, 480))
	return mt
}

func TestIteratorOrdering(t *testing.T) {
	mt := buildTwoTrackMultitrack()
	it := NewIterator(mt)
	var times []uint32
	for {
		_, msg, ok := it.NextEvent()
		if !ok {
			break
		}
		times = append(times, msg.Time)
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			t.Fatalf("event times must be non-decreasing: %v", times)
		}
	}
}

func TestIteratorRoundRobinTieBreak(t *testing.T) {
	mt := NewMultitrack(480)
	mt.InsertTrack()
	mt.InsertTrack()
	mt.Track(1).Insert(noteOn(0, 60, 100, 100))
	mt.Track(2).Insert(noteOn(1, 61, 100, 100))

	it := NewIterator(mt)
	firstTrack, _, ok := it.NextEvent()
	if !ok {
		t.Fatal("expected an event")
	}
	secondTrack, _, ok := it.NextEvent()
	if !ok {
		t.Fatal("expected a second event")
	}
	if firstTrack == secondTrack {
		t.Fatalf("simultaneous events on different tracks must not repeat the same track: %d, %d", firstTrack, secondTrack)
	}
}

func TestIteratorGoToTime(t *testing.T) {
	mt := buildTwoTrackMultitrack()
	it := NewIterator(mt)
	it.GoToTime(480)
	nt, ok := it.NextEventTime()
	if !ok || nt < 480 {
		t.Fatalf("expected next event at or after 480, got %d ok=%v", nt, ok)
	}
}
