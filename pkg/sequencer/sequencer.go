package sequencer

import (
	"fmt"
	"os"
	"sync"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/notify"
	"github.com/zurustar/midiseq/pkg/track"
)

// measuresPerSnapshot is the warp-position snapshot cadence.
const measuresPerSnapshot = 4

type warpPosition struct {
	measure  int
	snapshot *State
}

// Sequencer is the composite playback engine: an owned Multitrack, its
// running State, and one Processor per track. Every externally-visible
// operation that reads or mutates playback position takes mu, guarding
// the whole operation the way a single tick or a single seek must be seen
// as atomic by a concurrent Recorder or driver-bound tick component. Since
// these operations call each other (GoToTime drives NextEvent, NextEvent
// can synthesize a beat marker, Load drives Reset drives GoToZero), the
// exported methods lock once and delegate to unexported, lock-free
// counterparts; only the unexported counterparts call each other.
type Sequencer struct {
	mu sync.Mutex

	mt         *track.Multitrack
	state      *State
	processors []*Processor

	notifier   notify.Notifier
	notifySusp int // >0 suppresses notify delivery, used by GoTo*
	warps      []warpPosition
}

// New returns a Sequencer with an empty, single-conductor-track multitrack.
func New(ticksPerBeat uint16) *Sequencer {
	mt := track.NewMultitrack(ticksPerBeat)
	return newFrom(mt)
}

func newFrom(mt *track.Multitrack) *Sequencer {
	s := &Sequencer{mt: mt}
	s.state = NewState(mt)
	s.resizeProcessors()
	s.extractWarpPositionsLocked()
	return s
}

// SetNotifier installs the GUI notifier; nil disables delivery.
func (s *Sequencer) SetNotifier(n notify.Notifier) { s.notifier = n }

func (s *Sequencer) fire(label string, trackIdx int) {
	if s.notifier == nil || s.notifySusp > 0 || label == "" {
		return
	}
	if ev, ok := notify.For(label, trackIdx); ok {
		s.notifier.Notify(ev)
	}
}

func (s *Sequencer) resizeProcessors() {
	for len(s.processors) < s.mt.NumTracks() {
		s.processors = append(s.processors, NewProcessor())
	}
	s.processors = s.processors[:s.mt.NumTracks()]
}

// Multitrack returns the owned multitrack for direct editing (e.g. by the
// Recorder, which installs shadow tracks back into it).
func (s *Sequencer) Multitrack() *track.Multitrack { return s.mt }

// State returns the running playback state.
func (s *Sequencer) State() *State { return s.state }

// Processor returns the per-track processor at index i, or nil.
func (s *Sequencer) Processor(i int) *Processor {
	if i < 0 || i >= len(s.processors) {
		return nil
	}
	return s.processors[i]
}

// Load replaces the owned multitrack, resets, and rebuilds the warp
// cache.
func (s *Sequencer) Load(mt *track.Multitrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mt = mt
	s.state = NewState(mt)
	s.resizeProcessors()
	s.resetLocked()
	s.extractWarpPositionsLocked()
}

// Reset reinstantiates processors to the current track count and returns
// to time zero.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Sequencer) resetLocked() {
	s.resizeProcessors()
	s.state.Reset(s.mt)
	s.goToZeroLocked()
}

// GoToZero re-scans events at time 0 to seed per-track running state. It
// does not move the iterator past time 0; callers that also want the
// iterator reset should call State.Reset first (Reset does).
func (s *Sequencer) GoToZero() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goToZeroLocked()
}

func (s *Sequencer) goToZeroLocked() {
	for trackIdx := 0; trackIdx < s.mt.NumTracks(); trackIdx++ {
		tr := s.mt.Track(trackIdx)
		for i := 0; i < tr.Len()-1; i++ {
			e := tr.At(i)
			if e.Time > 0 {
				break
			}
			s.state.apply(trackIdx, e)
		}
	}
}

// NextEvent is the core playback primitive.
func (s *Sequencer) NextEvent() (trackIdx int, msg midimsg.Message, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextEventLocked()
}

func (s *Sequencer) nextEventLocked() (trackIdx int, msg midimsg.Message, ok bool) {
	t, hasNext := s.nextEventTimeRaw()
	if !hasNext {
		s.fire("endofsong", -1)
		return 0, midimsg.Message{}, false
	}

	if s.state.NextBeatTime <= t {
		return s.beatMarker()
	}

	ti, m, has := s.state.iter.NextEvent()
	if !has {
		s.fire("endofsong", -1)
		return 0, midimsg.Message{}, false
	}

	newMs := s.state.MidiToMs(s.mt, m.Time)
	s.state.CurClock = m.Time
	s.state.CurTimeMs = newMs

	label := s.state.apply(ti, m)
	s.fire(label, ti)
	s.state.LastEventTrack = ti

	if ti == 0 {
		// conductor messages always pass regardless of any track's solo/mute state.
		return ti, m, true
	}

	proc := s.Processor(ti)
	out, keep := proc.Apply(m)
	if !keep {
		return ti, out, false
	}
	return ti, out, true
}

// beatMarker synthesizes and delivers a beat marker on track 0 without
// consuming a real event.
func (s *Sequencer) beatMarker() (int, midimsg.Message, bool) {
	var m midimsg.Message
	m.SetText(midimsg.MetaMarker, "beat")
	m.Time = s.state.NextBeatTime

	s.state.CurClock = m.Time
	s.state.CurTimeMs = s.state.MidiToMs(s.mt, m.Time)
	s.state.CurBeat++
	if s.state.CurBeat >= int(s.state.TimeSigNum) {
		s.state.CurBeat = 0
		s.state.CurMeasure++
		s.fire("measure", -1)
	} else {
		s.fire("beat", -1)
	}
	s.state.NextBeatTime += uint32(s.mt.TicksPerBeat) * 4 / uint32(s.state.TimeSigDenom)
	return 0, m, true
}

// NextEventTime returns the earliest upcoming event time, real or
// synthetic beat marker.
func (s *Sequencer) NextEventTime() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextEventTimeRaw()
}

func (s *Sequencer) nextEventTimeRaw() (uint32, bool) {
	it, hasIter := s.state.iter.NextEventTime()
	if !hasIter {
		return 0, false // the multitrack itself is exhausted: end of song
	}
	if s.state.NextBeatTime < it {
		return s.state.NextBeatTime, true
	}
	return it, true
}

// GoToTime advances (or restarts and re-advances) playback until the
// clock reaches t, then scans-at-current-time to include simultaneous
// events. Returns false if t lies past the last event.
func (s *Sequencer) GoToTime(t uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goToTimeLocked(t)
}

func (s *Sequencer) goToTimeLocked(t uint32) bool {
	s.notifySusp++
	defer func() {
		s.notifySusp--
		s.fire("all", -1)
	}()

	if t <= s.state.CurClock {
		s.state.Reset(s.mt)
		s.goToZeroLocked()
	}

	for {
		nt, ok := s.nextEventTimeRaw()
		if !ok {
			// the song ended before reaching t
			return t == 0
		}
		if nt > t {
			break
		}
		// a false result here is an event dropped by its track's Processor,
		// not the end of the song, which was ruled out just above.
		s.nextEventLocked()
		if nt == t {
			break
		}
	}
	// scan-at-current-time: consume any further events still at exactly t.
	for {
		nt, ok := s.nextEventTimeRaw()
		if !ok || nt != t {
			break
		}
		s.nextEventLocked()
	}
	return true
}

// GoToTimeMs converts x milliseconds to a tick (truncated to the tick at or
// before x) using the current tempo map and delegates to GoToTime. Always honors TempoScalePct, unlike
// a naive fixed-tempo conversion would.
func (s *Sequencer) GoToTimeMs(x float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := msToTicks(s.state.segments, s.mt.TicksPerBeat, s.state.TempoScalePct, x)
	return s.goToTimeLocked(t)
}

// GoToMeasure seeks to the given (measure, beat) pair, consulting the
// WarpPositions cache before falling back to a full rescan from zero.
func (s *Sequencer) GoToMeasure(measure, beat int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := s.bestWarp(measure)
	if best != nil {
		s.state = best.snapshot.Clone()
	} else {
		s.state.Reset(s.mt)
		s.goToZeroLocked()
	}
	for s.state.CurMeasure < measure || (s.state.CurMeasure == measure && s.state.CurBeat < beat) {
		if _, ok := s.nextEventTimeRaw(); !ok {
			return false
		}
		s.nextEventLocked()
	}
	return true
}

func (s *Sequencer) bestWarp(measure int) *warpPosition {
	var best *warpPosition
	for i := range s.warps {
		w := &s.warps[i]
		if w.measure <= measure && (best == nil || w.measure > best.measure) {
			best = w
		}
	}
	return best
}

// extractWarpPositions rebuilds the snapshot cache by replaying the whole
// song once and recording a State snapshot every measuresPerSnapshot
// measures.
func (s *Sequencer) extractWarpPositions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extractWarpPositionsLocked()
}

func (s *Sequencer) extractWarpPositionsLocked() {
	s.warps = nil
	saved := s.state
	s.notifySusp++
	s.state = NewState(s.mt)
	s.goToZeroLocked()

	lastRecorded := -1
	for {
		if s.state.CurMeasure >= 0 && s.state.CurMeasure%measuresPerSnapshot == 0 && s.state.CurMeasure != lastRecorded {
			s.warps = append(s.warps, warpPosition{measure: s.state.CurMeasure, snapshot: s.state.Clone()})
			lastRecorded = s.state.CurMeasure
		}
		if _, ok := s.nextEventTimeRaw(); !ok {
			break
		}
		s.nextEventLocked()
	}
	s.state = saved
	s.notifySusp--
}

// Solo sets track k to SOLOED and every other non-conductor track to
// NOT_SOLOED.
func (s *Sequencer) Solo(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.processors {
		if i == 0 {
			continue
		}
		if i == k {
			p.Solo = Soloed
		} else {
			p.Solo = NotSoloed
		}
	}
	if k >= 0 && k < len(s.processors) {
		s.emitCatchUp(k)
	}
}

// Unsolo restores NO_SOLO on every track.
func (s *Sequencer) Unsolo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.processors {
		p.Solo = NoSolo
	}
}

// Mute sets track k's mute flag; on unmute it emits the "catch events
// before" synthetic events needed to reconstruct running state mid-song.
func (s *Sequencer) Mute(k int, mute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.Processor(k)
	if p == nil {
		return
	}
	wasMuted := p.Mute
	p.Mute = mute
	if wasMuted && !mute {
		s.emitCatchUp(k)
	}
}

func (s *Sequencer) emitCatchUp(trackIdx int) {
	_ = s.state.catchUpEvents(trackIdx)
	// The actual driver send of these catch-up events is the caller's
	// responsibility (the Sequencer has no driver reference); a caller reads
	// them via CatchUpEvents.
}

// CatchUpEvents exposes the synthesized "catch events before" messages for
// track k at the current clock, for a caller (e.g. a driver-bound
// component) to actually send.
func (s *Sequencer) CatchUpEvents(k int) []midimsg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.state.catchUpEvents(k)
	proc := s.Processor(k)
	if proc == nil {
		return raw
	}
	out := make([]midimsg.Message, 0, len(raw))
	for _, m := range raw {
		if tm, keep := proc.Apply(m); keep {
			out = append(out, tm)
		}
	}
	return out
}

// LoadSMF reads a Standard MIDI File into a fresh Multitrack via
// gitlab.com/gomidi/midi/v2/smf.
func LoadSMF(path string) (*track.Multitrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sequencer: open %s: %w", path, err)
	}
	defer f.Close()

	sm, err := smf.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("sequencer: read smf %s: %w", path, err)
	}

	mt := track.NewMultitrack(uint16(sm.TimeFormat.(smf.MetricTicks).Ticks()))
	for ti, tr := range sm.Tracks {
		var target *track.Track
		if ti == 0 {
			target = mt.Track(0)
		} else {
			idx := mt.InsertTrack()
			target = mt.Track(idx)
		}
		var clock uint32
		for _, ev := range tr {
			clock += ev.Delta
			msg, ok := convertSMFEvent(ev, clock)
			if !ok {
				continue
			}
			target.Insert(msg)
		}
	}
	return mt, nil
}

// convertSMFEvent maps one smf.TrackEvent onto a midimsg.Message, or
// reports false for events with no Message representation (e.g. an
// SMF-specific end-of-track marker the library itself emits, which we
// regenerate via Track's own sentinel).
func convertSMFEvent(ev smf.TrackEvent, clock uint32) (midimsg.Message, bool) {
	var m midimsg.Message
	raw := ev.Message.Bytes()
	if len(raw) == 0 {
		return m, false
	}
	status := raw[0]
	switch {
	case status == 0xFF:
		if len(raw) < 2 {
			return m, false
		}
		metaType := raw[1]
		if metaType == midimsg.MetaEndOfTrack {
			return m, false
		}
		m.Status, m.MetaType = 0xFF, metaType
		if len(raw) > 2 {
			m.SysEx = append([]byte(nil), raw[2:]...)
		}
	case status == 0xF0 || status == 0xF7:
		m.SetSysEx(status, raw[1:])
	default:
		m.Status = status
		if len(raw) > 1 {
			m.Data1 = raw[1]
		}
		if len(raw) > 2 {
			m.Data2 = raw[2]
		}
	}
	m.Time = clock
	return m, true
}

// SaveSMF writes mt to path via gitlab.com/gomidi/midi/v2/smf. The format
// argument is not applied: the file gets whatever format smf.New sets.
func SaveSMF(path string, format uint16, mt *track.Multitrack) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(mt.TicksPerBeat)

	for i := 0; i < mt.NumTracks(); i++ {
		tr := mt.Track(i)
		var smfTrack smf.Track
		var last uint32
		for j := 0; j < tr.Len(); j++ {
			e := tr.At(j)
			delta := e.Time - last
			last = e.Time
			smfTrack.Add(delta, encodeToSMFMessage(e))
		}
		if err := sm.Add(smfTrack); err != nil {
			return fmt.Errorf("sequencer: add track %d: %w", i, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sequencer: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := sm.WriteTo(f); err != nil {
		return fmt.Errorf("sequencer: write smf %s: %w", path, err)
	}
	return nil
}

func encodeToSMFMessage(m midimsg.Message) smf.Message {
	switch {
	case m.IsEndOfTrack():
		return smf.MetaEndOfTrack()
	case m.IsMeta():
		return smf.MetaText(m.MetaType, string(m.SysEx))
	case m.IsSysEx():
		return smf.SysEx(m.SysEx)
	default:
		return smf.Message(m.Bytes())
	}
}
