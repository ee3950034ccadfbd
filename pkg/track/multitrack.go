package track

// Multitrack is an insertion-ordered collection of Tracks sharing one
// ticks-per-beat resolution. InsertTrack appends and leaves existing
// indices unchanged; InsertTrackAt and DeleteTrack shift the index of every
// later track by one. By convention track 0 is the conductor track
// (meta events only: tempo, time signature, key signature, markers).
type Multitrack struct {
	tracks       []*Track
	TicksPerBeat uint16
}

// NewMultitrack returns a Multitrack with a single empty conductor track.
func NewMultitrack(ticksPerBeat uint16) *Multitrack {
	if ticksPerBeat == 0 {
		ticksPerBeat = 480
	}
	return &Multitrack{tracks: []*Track{New()}, TicksPerBeat: ticksPerBeat}
}

// NumTracks returns the number of tracks.
func (mt *Multitrack) NumTracks() int { return len(mt.tracks) }

// Track returns the track at index i, or nil if out of range.
func (mt *Multitrack) Track(i int) *Track {
	if i < 0 || i >= len(mt.tracks) {
		return nil
	}
	return mt.tracks[i]
}

// InsertTrack appends a new empty track and returns its index.
func (mt *Multitrack) InsertTrack() int {
	mt.tracks = append(mt.tracks, New())
	return len(mt.tracks) - 1
}

// InsertTrackAt inserts a new empty track at index i, shifting later tracks
// up by one.
func (mt *Multitrack) InsertTrackAt(i int) bool {
	if i < 0 || i > len(mt.tracks) {
		return false
	}
	mt.tracks = append(mt.tracks, nil)
	copy(mt.tracks[i+1:], mt.tracks[i:len(mt.tracks)-1])
	mt.tracks[i] = New()
	return true
}

// DeleteTrack removes the track at index i. Track 0 (conductor) may still
// be deleted by callers that know what they are doing; the Sequencer never
// does so.
func (mt *Multitrack) DeleteTrack(i int) bool {
	if i < 0 || i >= len(mt.tracks) {
		return false
	}
	mt.tracks = append(mt.tracks[:i], mt.tracks[i+1:]...)
	return true
}

// EnsureTracks grows the multitrack with empty tracks until it has at
// least n tracks.
func (mt *Multitrack) EnsureTracks(n int) {
	for len(mt.tracks) < n {
		mt.InsertTrack()
	}
}

// Clone returns a deep copy of the multitrack.
func (mt *Multitrack) Clone() *Multitrack {
	cp := &Multitrack{TicksPerBeat: mt.TicksPerBeat}
	cp.tracks = make([]*Track, len(mt.tracks))
	for i, t := range mt.tracks {
		cp.tracks[i] = t.Clone()
	}
	return cp
}
