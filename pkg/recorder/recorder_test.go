package recorder

import (
	"testing"

	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/sequencer"
	"github.com/zurustar/midiseq/pkg/track"
	"github.com/zurustar/midiseq/pkg/transport"
)

func noteOnBytes(ch, note, vel byte) []byte {
	var m midimsg.Message
	m.SetNoteOn(ch, note, vel)
	return m.Bytes()
}

type captureOutput struct {
	driver.DummyOutput
	sent [][]byte
}

func (c *captureOutput) SendBytes(b []byte) error {
	c.sent = append(c.sent, append([]byte(nil), b...))
	return nil
}

func newTestRecorder() (*Recorder, *sequencer.Sequencer) {
	mt := track.NewMultitrack(480)
	mt.InsertTrack()
	seq := sequencer.New(mt.TicksPerBeat)
	seq.Load(mt)

	clock := transport.NewClock(0, nil)
	r := New(clock, seq)
	return r, seq
}

func TestRecorderMergeDefersTrackReplacementUntilStop(t *testing.T) {
	r, seq := newTestRecorder()
	mt := seq.Multitrack()
	mt.Track(1).Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetNoteOn(0, 40, 80)
		m.Time = 0
		return m
	}())

	in := driver.NewQueueInput("test-in")
	r.SetInput(0, in)
	r.SetMode(Merge)
	r.EnableTrack(1, -1)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	hasNote := func(tr *track.Track, note byte) bool {
		for i := 0; i < tr.Len()-1; i++ {
			if tr.At(i).IsNoteOn() && tr.At(i).Data1 == note {
				return true
			}
		}
		return false
	}
	if !hasNote(seq.Multitrack().Track(1), 40) {
		t.Fatalf("MERGE mode must leave the live track untouched until Stop, unlike OVER")
	}

	in.Push(noteOnBytes(0, 72, 100))
	r.Tick(0)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	tr := seq.Multitrack().Track(1)
	if !hasNote(tr, 72) {
		t.Fatalf("expected the newly recorded note to land in the track after Stop")
	}
}

func TestRecorderMirrorsRecordedInputToTrackOutput(t *testing.T) {
	r, _ := newTestRecorder()

	in := driver.NewQueueInput("test-in")
	out := &captureOutput{}
	r.SetInput(0, in)
	r.SetOutput(1, out)
	r.SetMode(Merge)
	r.EnableTrack(1, -1)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	in.Push(noteOnBytes(0, 72, 100))
	r.Tick(0)

	if len(out.sent) == 0 {
		t.Fatalf("expected the recorded input to be mirrored to track 1's monitor output")
	}
	var m midimsg.Message
	m.Status, m.Data1 = out.sent[0][0], out.sent[0][1]
	if !m.IsNoteOn() || m.Data1 != 72 {
		t.Fatalf("expected the mirrored message to be the recorded note-on, got %+v", m)
	}
}

func TestRecorderOverModeInstallsShadowImmediately(t *testing.T) {
	r, seq := newTestRecorder()
	mt := seq.Multitrack()
	mt.Track(1).Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetNoteOn(0, 40, 80)
		m.Time = 0
		return m
	}())

	r.SetMode(Over)
	r.EnableTrack(1, -1)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr := seq.Multitrack().Track(1)
	for i := 0; i < tr.Len()-1; i++ {
		if tr.At(i).IsNoteOn() && tr.At(i).Data1 == 40 {
			t.Fatalf("OVER mode must clear the prior track content on Start")
		}
	}
}

func TestRecorderUndoRestoresPriorTrackContent(t *testing.T) {
	r, seq := newTestRecorder()
	mt := seq.Multitrack()
	mt.Track(1).Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetNoteOn(0, 40, 80)
		m.Time = 0
		return m
	}())

	in := driver.NewQueueInput("test-in")
	r.SetInput(0, in)
	r.SetMode(Merge)
	r.EnableTrack(1, -1)

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	in.Push(noteOnBytes(0, 90, 100))
	r.Tick(0)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if !r.Undo() {
		t.Fatalf("Undo must succeed with a pending snapshot")
	}

	tr := seq.Multitrack().Track(1)
	var sawNew, sawOld bool
	for i := 0; i < tr.Len()-1; i++ {
		if tr.At(i).IsNoteOn() && tr.At(i).Data1 == 90 {
			sawNew = true
		}
		if tr.At(i).IsNoteOn() && tr.At(i).Data1 == 40 {
			sawOld = true
		}
	}
	if sawNew {
		t.Fatalf("Undo must roll back the newly recorded event")
	}
	if !sawOld {
		t.Fatalf("Undo must restore the track's pre-recording content")
	}
	if r.Undo() {
		t.Fatalf("a second Undo with an empty stack must report false")
	}
}
