// Package recorder implements the Recorder tick component: a shadow
// multitrack paired with a Sequencer, recording enabled input ports into
// enabled tracks with undo support.
package recorder

import (
	"sync"

	"github.com/zurustar/midiseq/internal/logging"
	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/notify"
	"github.com/zurustar/midiseq/pkg/sequencer"
	"github.com/zurustar/midiseq/pkg/track"
	"github.com/zurustar/midiseq/pkg/transport"
)

var log = logging.For("recorder")

// Mode selects how recorded events combine with existing track content.
type Mode int

const (
	Merge Mode = iota
	Over
)

// maxDrainPerTick bounds per-tick input draining.
const maxDrainPerTick = 100

type trackConfig struct {
	enabled    bool
	recChannel int // -1 = any
}

type undoSnapshot struct {
	tracks map[int]*track.Track
}

// Recorder implements transport.Component at PRPostSeq, paired with seq.
type Recorder struct {
	transport.Base

	mu       sync.Mutex
	seq      *sequencer.Sequencer
	shadow   *track.Multitrack
	inputs   map[int]driver.Input  // port -> input, keyed by the caller's own port numbering
	outputs  map[int]driver.Output // track index -> monitor output mirrored while recording
	tracks   map[int]*trackConfig
	mode     Mode
	recStart uint32
	recEnd   uint32

	undo []undoSnapshot

	notifier     notify.Notifier
	firedStart   bool
	firedStop    bool
	inCountIn    bool
}

// New returns a Recorder paired with seq, with an empty shadow multitrack
// matching seq's resolution.
func New(clock *transport.Clock, seq *sequencer.Sequencer) *Recorder {
	mt := seq.Multitrack()
	shadow := track.NewMultitrack(mt.TicksPerBeat)
	return &Recorder{
		Base:    transport.NewBase(clock),
		seq:     seq,
		shadow:  shadow,
		inputs:  make(map[int]driver.Input),
		outputs: make(map[int]driver.Output),
		tracks:  make(map[int]*trackConfig),
		recEnd:  ^uint32(0),
	}
}

func (r *Recorder) Priority() transport.Priority { return transport.PRPostSeq }

// SetNotifier installs the GUI notifier for GROUP_RECORDER events.
func (r *Recorder) SetNotifier(n notify.Notifier) { r.notifier = n }

// SetInput assigns the input driver used for port p.
func (r *Recorder) SetInput(port int, in driver.Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs[port] = in
}

// SetOutput assigns the monitor output mirrored with whatever gets routed
// into track k while recording, so the performer hears their own input
// live instead of only on playback.
func (r *Recorder) SetOutput(k int, out driver.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[k] = out
}

// SetMode sets MERGE or OVER recording mode; invalid while recording.
func (r *Recorder) SetMode(m Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Running() {
		return false
	}
	r.mode = m
	return true
}

// SetWindow sets the recording window [start, end) in ticks; invalid
// while recording.
func (r *Recorder) SetWindow(start, end uint32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Running() {
		return false
	}
	r.recStart, r.recEnd = start, end
	return true
}

// EnableTrack grows the shadow multitrack if needed, clears track k, and
// marks it enabled with the given recording channel filter (-1 = any).
func (r *Recorder) EnableTrack(k int, recChannel int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shadow.EnsureTracks(k + 1)
	idx := r.shadow.Track(k)
	*idx = *track.New()
	r.tracks[k] = &trackConfig{enabled: true, recChannel: recChannel}
}

// DisableTrack stops recording into track k.
func (r *Recorder) DisableTrack(k int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tracks, k)
}

func (r *Recorder) enabledTracks() []int {
	var ks []int
	for k, cfg := range r.tracks {
		if cfg.enabled {
			ks = append(ks, k)
		}
	}
	return ks
}

// Start pushes an undo snapshot, prepares each enabled shadow track, and
// (in OVER mode) installs the shadow tracks live, then starts the
// recorder's own tick component. It does not start the sequencer or
// change its play mode.
//
// The undo snapshot is taken here, before any shadow track is prepared or
// installed. Tick captures nothing while the sequencer clock is before the
// recording window (count-in), so nothing from the count-in reaches a track.
func (r *Recorder) Start() error {
	r.mu.Lock()
	snap := undoSnapshot{tracks: make(map[int]*track.Track)}
	mt := r.seq.Multitrack()
	for _, k := range r.enabledTracks() {
		if src := mt.Track(k); src != nil {
			snap.tracks[k] = src.Clone()
		}
		r.prepareShadowTrack(k)
		if r.mode == Over {
			*mt.Track(k) = *r.shadow.Track(k).Clone()
		}
	}
	r.undo = append(r.undo, snap)
	log.Info("recording started", "mode", r.mode, "tracks", r.enabledTracks())
	r.firedStart = false
	r.firedStop = false
	r.inCountIn = true
	r.mu.Unlock()

	return r.Base.Start()
}

// prepareShadowTrack copies the sequencer's live track k into the shadow
// and truncates open notes/pedal/pitch-bend at the recording window edges,
// stripping mid-window channel events except the first program-change and
// first volume-change, so OVER-mode playback doesn't jump parameters
// suddenly.
func (r *Recorder) prepareShadowTrack(k int) {
	live := r.seq.Multitrack().Track(k)
	if live == nil {
		return
	}
	shadowTr := track.New()
	shadowTr.RecChannel = r.tracks[k].recChannel

	sawProgram, sawVolume := false, false
	for i := 0; i < live.Len()-1; i++ {
		e := live.At(i)
		inWindow := e.Time >= r.recStart && e.Time < r.recEnd
		if !inWindow {
			shadowTr.Insert(e)
			continue
		}
		if e.IsProgramChange() && !sawProgram {
			shadowTr.Insert(e)
			sawProgram = true
			continue
		}
		if e.IsControlChange() && e.Data1 == 7 && !sawVolume {
			shadowTr.Insert(e)
			sawVolume = true
			continue
		}
		if e.IsChannelMsg() {
			continue // stripped: recording will supply fresh events here
		}
		shadowTr.Insert(e)
	}
	*r.shadow.Track(k) = *shadowTr
}

// Tick drains enabled inputs during the recording window. It is a no-op
// during count-in.
func (r *Recorder) Tick(sysTimeMs uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	clock := r.seq.State().CurClock
	if r.inCountIn {
		if clock < r.recStart {
			return
		}
		r.inCountIn = false
	}

	if clock >= r.recEnd {
		if !r.firedStop {
			r.firedStop = true
			r.notify(notify.SubRecStop)
		}
		return
	}
	if clock >= r.recStart && !r.firedStart {
		r.firedStart = true
		r.notify(notify.SubRecStart)
	}
	if clock < r.recStart || clock >= r.recEnd {
		return
	}

	for _, in := range r.inputs {
		r.drainInput(in, clock)
	}
}

func (r *Recorder) drainInput(in driver.Input, clock uint32) {
	in.QueueLock()
	n := in.QueueSize()
	if n > maxDrainPerTick {
		n = maxDrainPerTick
	}
	in.QueueUnlock()

	for i := 0; i < n; i++ {
		raw, ok := in.PollOne()
		if !ok {
			break
		}
		msg, ok := parseRaw(raw)
		if !ok {
			continue
		}
		msg.Time = clock
		r.route(msg, raw)
	}
}

// route inserts msg into every enabled track whose rec-channel matches (or
// accepts any channel), and mirrors the raw bytes to that track's monitor
// output, if one is set, so the performer hears their own input live.
func (r *Recorder) route(msg midimsg.Message, raw []byte) {
	ch, isChannel := msg.Channel()
	if !isChannel {
		if tr := r.shadow.Track(0); tr != nil {
			tr.Insert(msg)
		}
		return
	}
	for k, cfg := range r.tracks {
		if !cfg.enabled {
			continue
		}
		if cfg.recChannel >= 0 && byte(cfg.recChannel) != ch {
			continue
		}
		if tr := r.shadow.Track(k); tr != nil {
			tr.Insert(msg)
		}
		if out := r.outputs[k]; out != nil {
			_ = out.SendBytes(raw)
		}
	}
}

// Stop closes any open notes/pedal within the recording window on each
// enabled shadow track, installs every shadow track back into the
// sequencer, and stops the recorder's own tick component. It does not stop
// the sequencer or change its play mode.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	mt := r.seq.Multitrack()
	for _, k := range r.enabledTracks() {
		closeOpenState(r.shadow.Track(k), r.recStart, r.recEnd)
		if shadowTr := r.shadow.Track(k); shadowTr != nil {
			mt.EnsureTracks(k + 1)
			*mt.Track(k) = *shadowTr.Clone()
		}
	}
	r.mu.Unlock()
	log.Info("recording stopped")
	return r.Base.Stop()
}

// closeOpenState appends synthetic note-off/pedal-up events at recEnd for
// anything left open inside [recStart, recEnd), preventing stuck notes
// when the recorded segment ends mid-note.
func closeOpenState(tr *track.Track, recStart, recEnd uint32) {
	if tr == nil {
		return
	}
	type key struct{ ch, note byte }
	open := map[key]bool{}
	pedal := map[byte]bool{}
	for i := 0; i < tr.Len()-1; i++ {
		e := tr.At(i)
		if e.Time < recStart || e.Time >= recEnd {
			continue
		}
		ch, ok := e.Channel()
		if !ok {
			continue
		}
		switch {
		case e.IsNoteOn():
			open[key{ch, e.Data1}] = true
		case e.IsNoteOff():
			delete(open, key{ch, e.Data1})
		case e.IsControlChange() && e.Data1 == 64:
			pedal[ch] = e.Data2 >= 64
		}
	}
	for k := range open {
		var m midimsg.Message
		m.SetNoteOff(k.ch, k.note, 0)
		m.Time = recEnd
		tr.Insert(m)
	}
	for ch, down := range pedal {
		if !down {
			continue
		}
		var m midimsg.Message
		m.SetControlChange(ch, 64, 0)
		m.Time = recEnd
		tr.Insert(m)
	}
}

// Undo pops the top snapshot and restores each of its tracks into the
// sequencer.
func (r *Recorder) Undo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.undo) == 0 {
		return false
	}
	snap := r.undo[len(r.undo)-1]
	r.undo = r.undo[:len(r.undo)-1]

	mt := r.seq.Multitrack()
	for k, tr := range snap.tracks {
		mt.EnsureTracks(k + 1)
		*mt.Track(k) = *tr.Clone()
	}
	if r.notifier != nil {
		r.notifier.Notify(notify.Event{Group: notify.GroupAll, Track: -1})
	}
	return true
}

func (r *Recorder) notify(sub notify.Subgroup) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(notify.Event{Group: notify.GroupRecorder, Subgroup: sub, Track: -1})
}

func parseRaw(raw []byte) (midimsg.Message, bool) {
	var m midimsg.Message
	if len(raw) == 0 {
		return m, false
	}
	m.Status = raw[0]
	if len(raw) > 1 {
		m.Data1 = raw[1]
	}
	if len(raw) > 2 {
		m.Data2 = raw[2]
	}
	return m, true
}
