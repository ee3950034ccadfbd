package sequencer

import (
	"testing"

	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/track"
)

func noteOn(ch, note, vel byte, t uint32) midimsg.Message {
	var m midimsg.Message
	m.SetNoteOn(ch, note, vel)
	m.Time = t
	return m
}

func noteOff(ch, note byte, t uint32) midimsg.Message {
	var m midimsg.Message
	m.SetNoteOff(ch, note, 0)
	m.Time = t
	return m
}

func tempoEvent(bpm float64, t uint32) midimsg.Message {
	var m midimsg.Message
	m.SetTempo(bpm)
	m.Time = t
	return m
}

// buildSong returns a two-track multitrack (track 0 conductor, track 1
// melody) with a tempo change partway through, at 480 ticks per beat.
func buildSong() *track.Multitrack {
	mt := track.NewMultitrack(480)
	mt.Track(0).Insert(tempoEvent(120, 0))
	mt.Track(0).Insert(tempoEvent(60, 960))

	mt.InsertTrack()
	mt.Track(1).Insert(noteOn(0, 60, 100, 0))
	mt.Track(1).Insert(noteOff(0, 60, 480))
	mt.Track(1).Insert(noteOn(0, 64, 100, 960))
	mt.Track(1).Insert(noteOff(0, 64, 1440))
	return mt
}

func TestMidiToMsMsToTicksRoundTrip(t *testing.T) {
	mt := buildSong()
	segs := tempoMapFrom(mt)

	for _, tick := range []uint32{0, 100, 480, 960, 1200, 1440} {
		ms := midiToMs(segs, mt.TicksPerBeat, 100, tick)
		back := msToTicks(segs, mt.TicksPerBeat, 100, ms)
		if diff := int(back) - int(tick); diff > 1 || diff < -1 {
			t.Fatalf("round trip tick=%d -> ms=%v -> tick=%d, off by more than 1", tick, ms, back)
		}
	}
}

func TestMidiToMsHonorsTempoScale(t *testing.T) {
	mt := buildSong()
	segs := tempoMapFrom(mt)

	full := midiToMs(segs, mt.TicksPerBeat, 100, 480)
	half := midiToMs(segs, mt.TicksPerBeat, 50, 480)
	if half <= full {
		t.Fatalf("halving tempo scale must take longer: full=%v half=%v", full, half)
	}
}

func TestSequencerExhaustsAtEndOfSong(t *testing.T) {
	mt := buildSong()
	seq := New(mt.TicksPerBeat)
	seq.Load(mt)

	// drain every event (conductor messages, notes and synthesized beat
	// markers); what is checked is that beat markers stop once the
	// multitrack's own iterator is exhausted.
	var n int
	for {
		_, _, ok := seq.NextEvent()
		if !ok {
			break
		}
		n++
		if n > 100000 {
			t.Fatalf("NextEvent never reported exhaustion: synthesized beat markers past end of song")
		}
	}
	if _, ok := seq.NextEventTime(); ok {
		t.Fatalf("NextEventTime must report exhaustion once the song is over")
	}
	if _, _, ok := seq.NextEvent(); ok {
		t.Fatalf("NextEvent must keep reporting exhaustion on repeated calls")
	}
}

func TestSoloMutesUnrelatedTracks(t *testing.T) {
	mt := track.NewMultitrack(480)
	mt.InsertTrack()
	mt.InsertTrack()
	mt.Track(1).Insert(noteOn(0, 60, 100, 0))
	mt.Track(2).Insert(noteOn(0, 61, 100, 0))

	seq := New(mt.TicksPerBeat)
	seq.Load(mt)
	seq.Solo(1)

	var sawTrack1, sawTrack2 bool
	for {
		ti, _, ok := seq.NextEvent()
		if !ok {
			break
		}
		switch ti {
		case 1:
			sawTrack1 = true
		case 2:
			sawTrack2 = true
		}
	}
	if !sawTrack1 {
		t.Fatalf("soloed track must still deliver its events")
	}
	if sawTrack2 {
		t.Fatalf("non-soloed track must be silenced while another track is soloed")
	}
}

func TestMuteThenUnmuteCatchesUpRunningState(t *testing.T) {
	mt := track.NewMultitrack(480)
	mt.InsertTrack()
	mt.Track(1).Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetProgramChange(3, 40)
		m.Time = 0
		return m
	}())
	mt.Track(1).Insert(noteOn(3, 60, 100, 0))

	seq := New(mt.TicksPerBeat)
	seq.Load(mt)
	seq.Mute(1, true)

	for {
		if _, ok := seq.NextEventTime(); !ok {
			break
		}
		if _, _, ok := seq.NextEvent(); !ok {
			break
		}
	}

	seq.Mute(1, false)
	catchUp := seq.CatchUpEvents(1)
	var sawProgram bool
	for _, m := range catchUp {
		if m.IsProgramChange() && m.Data1 == 40 {
			sawProgram = true
			if ch, _ := m.Channel(); ch != 3 {
				t.Fatalf("catch-up program change must go out on the track's actual channel, got %d", ch)
			}
		}
	}
	if !sawProgram {
		t.Fatalf("unmuting a track must surface its last program change via CatchUpEvents")
	}
}

func TestCatchUpEventsHonorsRechannel(t *testing.T) {
	mt := track.NewMultitrack(480)
	mt.InsertTrack()
	mt.Track(1).Insert(func() midimsg.Message {
		var m midimsg.Message
		m.SetProgramChange(3, 40)
		m.Time = 0
		return m
	}())

	seq := New(mt.TicksPerBeat)
	seq.Load(mt)
	seq.Processor(1).Rechannel = 9
	seq.Mute(1, true)
	seq.Mute(1, false)

	for _, m := range seq.CatchUpEvents(1) {
		if ch, _ := m.Channel(); ch != 9 {
			t.Fatalf("CatchUpEvents must honor the track's Rechannel override, got channel %d", ch)
		}
	}
}

func TestGoToTimeReachesRequestedTick(t *testing.T) {
	mt := buildSong()
	seq := New(mt.TicksPerBeat)
	seq.Load(mt)

	if !seq.GoToTime(960) {
		t.Fatalf("GoToTime(960) should succeed: 960 is within the song")
	}
	if seq.State().CurClock > 960 {
		t.Fatalf("GoToTime must not overshoot the requested tick, got %d", seq.State().CurClock)
	}
}

func TestTimeSigDefaultsToFourFour(t *testing.T) {
	mt := track.NewMultitrack(480)
	num, denom := timeSigAt(mt, 0)
	if num != 4 || denom != 4 {
		t.Fatalf("expected default 4/4 time signature, got %d/%d", num, denom)
	}
}
