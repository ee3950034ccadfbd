package sequencer

// TrackState is the cached "running state" for one track: the values a
// mid-song seek must re-establish without replaying history.
type TrackState struct {
	Channel    int8 // -1 if never observed; the channel catch-up events go out on
	Program    int8 // -1 if never set
	Volume     int8
	Pan        int8
	Reverb     int8
	Chorus     int8
	PitchBend  uint16
	NoteMatrix  [16][128]int16 // per-channel, per-note on-count
	Damper      [16]int16      // per-channel sustain-pedal depth counter
	NotesOn     bool
	Name        string
	GotGoodName bool
}

// NewTrackState returns a TrackState in its "never touched" initial form.
func NewTrackState() *TrackState {
	return &TrackState{Channel: -1, Program: -1, Volume: -1, Pan: -1, Reverb: -1, Chorus: -1, PitchBend: 0x2000}
}

// Clone returns a deep copy.
func (s *TrackState) Clone() *TrackState {
	cp := *s
	return &cp
}

func (s *TrackState) noteOn(ch, note byte) {
	s.NoteMatrix[ch&0x0F][note&0x7F]++
	s.NotesOn = true
}

func (s *TrackState) noteOff(ch, note byte) {
	if s.NoteMatrix[ch&0x0F][note&0x7F] > 0 {
		s.NoteMatrix[ch&0x0F][note&0x7F]--
	}
	s.NotesOn = s.anyNoteOn()
}

func (s *TrackState) anyNoteOn() bool {
	for ch := range s.NoteMatrix {
		for _, n := range s.NoteMatrix[ch] {
			if n > 0 {
				return true
			}
		}
	}
	return false
}
