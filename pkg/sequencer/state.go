package sequencer

import (
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/track"
)

// Well-known MIDI controller numbers tracked in running state.
const (
	ccVolume = 7
	ccPan    = 10
	ccDamper = 64
	ccReverb = 91
	ccChorus = 93
)

// State is the Sequencer's composite playback position: iterator position,
// current clock/ms/beat/measure, tempo/timesig/keysig, marker text, and
// per-track running state.
type State struct {
	iter *track.Iterator

	CurClock   uint32
	CurTimeMs  float64
	CurBeat    int
	CurMeasure int

	NextBeatTime uint32

	Tempo         float64
	TempoScalePct int
	TimeSigNum    byte
	TimeSigDenom  byte
	KeySigSharps  int8
	KeySigMinor   bool
	Marker        string

	Tracks []*TrackState

	LastEventTrack int

	segments []tempoSegment
}

// NewState returns a fresh State for a multitrack, positioned at time 0.
func NewState(mt *track.Multitrack) *State {
	s := &State{
		iter:          track.NewIterator(mt),
		Tempo:         120,
		TempoScalePct: 100,
		TimeSigNum:    4,
		TimeSigDenom:  4,
	}
	s.rebuild(mt)
	return s
}

// rebuild resizes per-track state and recomputes the tempo map; called
// whenever the backing multitrack's track count or track-0 content may
// have changed.
func (s *State) rebuild(mt *track.Multitrack) {
	s.segments = tempoMapFrom(mt)
	for len(s.Tracks) < mt.NumTracks() {
		s.Tracks = append(s.Tracks, NewTrackState())
	}
	s.Tracks = s.Tracks[:mt.NumTracks()]
}

// Reset places the state (and its iterator) back at time 0.
func (s *State) Reset(mt *track.Multitrack) {
	s.iter.Reset()
	s.CurClock = 0
	s.CurTimeMs = 0
	s.CurBeat = 0
	s.CurMeasure = 0
	num, denom := timeSigAt(mt, 0)
	s.TimeSigNum, s.TimeSigDenom = num, denom
	s.NextBeatTime = uint32(mt.TicksPerBeat) * 4 / uint32(denom)
	sf, minor := keySigAt(mt, 0)
	s.KeySigSharps, s.KeySigMinor = sf, minor
	s.Marker = ""
	s.LastEventTrack = -1
	for _, ts := range s.Tracks {
		*ts = *NewTrackState()
	}
	s.rebuild(mt)
}

// Clone returns a deep copy suitable for a warp-position snapshot or an
// undo-stack entry. It does NOT copy the iterator's backing multitrack
// reference (the caller is expected to reuse the same multitrack).
func (s *State) Clone() *State {
	cp := *s
	cp.Tracks = make([]*TrackState, len(s.Tracks))
	for i, ts := range s.Tracks {
		cp.Tracks[i] = ts.Clone()
	}
	cp.segments = append([]tempoSegment(nil), s.segments...)
	return &cp
}

// MidiToMs converts an absolute clock tick to milliseconds using the
// current tempo map.
func (s *State) MidiToMs(mt *track.Multitrack, t uint32) float64 {
	return midiToMs(s.segments, mt.TicksPerBeat, s.TempoScalePct, t)
}

// apply updates conductor- and per-track running state for msg on trackIdx.
// It returns the notify.Subgroup-shaped label of what changed so the
// Sequencer can fire a GUI event; an empty string means nothing notable.
func (s *State) apply(trackIdx int, msg midimsg.Message) (changed string) {
	if trackIdx == 0 {
		switch {
		case msg.IsTempo():
			s.Tempo = msg.Tempo()
			return "tempo"
		case msg.IsTimeSig():
			s.TimeSigNum, s.TimeSigDenom = msg.TimeSig()
			return "timesig"
		case msg.IsKeySig():
			s.KeySigSharps, s.KeySigMinor = msg.KeySig()
			return "keysig"
		case msg.IsMarker():
			s.Marker = msg.Text()
			return "marker"
		}
	}
	if trackIdx < 0 || trackIdx >= len(s.Tracks) {
		return ""
	}
	ts := s.Tracks[trackIdx]
	ch, isChannel := msg.Channel()
	if isChannel {
		ts.Channel = int8(ch)
	}
	switch {
	case msg.IsNoteOn():
		ts.noteOn(ch, msg.Data1)
		return "note"
	case msg.IsNoteOff():
		ts.noteOff(ch, msg.Data1)
		return "note"
	case msg.IsProgramChange():
		ts.Program = int8(msg.Data1)
		return "program"
	case msg.IsPitchBend():
		ts.PitchBend = msg.PitchBendValue()
		return "pitchbend"
	case msg.IsControlChange():
		switch msg.Data1 {
		case ccVolume:
			ts.Volume = int8(msg.Data2)
			return "volume"
		case ccPan:
			ts.Pan = int8(msg.Data2)
			return "pan"
		case ccReverb:
			ts.Reverb = int8(msg.Data2)
			return "reverb"
		case ccChorus:
			ts.Chorus = int8(msg.Data2)
			return "chorus"
		case ccDamper:
			if msg.Data2 >= 64 {
				ts.Damper[ch]++
			} else if ts.Damper[ch] > 0 {
				ts.Damper[ch]--
			}
		}
	case msg.IsTrackName():
		ts.Name = msg.Text()
		ts.GotGoodName = ts.Name != ""
		return "name"
	}
	return ""
}

// catchUpEvents synthesizes the "catch events before" messages:
// program change, pitch bend, and every known controller value
// from running state, so a newly-unmuted or newly-soloed track sounds
// correct immediately instead of waiting for the next real event of each
// kind.
func (s *State) catchUpEvents(trackIdx int) []midimsg.Message {
	if trackIdx < 0 || trackIdx >= len(s.Tracks) {
		return nil
	}
	ts := s.Tracks[trackIdx]
	var out []midimsg.Message
	ch := byte(0)
	if ts.Channel >= 0 {
		ch = byte(ts.Channel)
	}
	if ts.Program >= 0 {
		var m midimsg.Message
		m.SetProgramChange(ch, byte(ts.Program))
		m.Time = s.CurClock
		out = append(out, m)
	}
	if ts.PitchBend != 0x2000 {
		var m midimsg.Message
		m.SetPitchBend(ch, ts.PitchBend)
		m.Time = s.CurClock
		out = append(out, m)
	}
	for cc, val := range map[byte]int8{ccVolume: ts.Volume, ccPan: ts.Pan, ccReverb: ts.Reverb, ccChorus: ts.Chorus} {
		if val < 0 {
			continue
		}
		var m midimsg.Message
		m.SetControlChange(ch, cc, byte(val))
		m.Time = s.CurClock
		out = append(out, m)
	}
	return out
}

