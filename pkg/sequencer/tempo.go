package sequencer

import "github.com/zurustar/midiseq/pkg/track"

// tempoSegment is one constant-tempo run between two tempo events on track 0.
type tempoSegment struct {
	startTick uint32
	bpm       float64
}

// tempoMapFrom walks track 0 once and returns tempo segments in ascending
// startTick order, always starting with an implicit 120 BPM segment at
// tick 0 if no tempo event occurs there: default tempo is 120 BPM until a
// tempo event overrides it.
func tempoMapFrom(mt *track.Multitrack) []tempoSegment {
	segs := []tempoSegment{{startTick: 0, bpm: 120}}
	conductor := mt.Track(0)
	if conductor == nil {
		return segs
	}
	for i := 0; i < conductor.Len()-1; i++ {
		e := conductor.At(i)
		if !e.IsTempo() {
			continue
		}
		if e.Time == 0 {
			segs[0].bpm = e.Tempo()
			continue
		}
		segs = append(segs, tempoSegment{startTick: e.Time, bpm: e.Tempo()})
	}
	return segs
}

// midiToMs integrates elapsed milliseconds from clock 0 to clock t across
// every tempo segment, honoring tempoScale (percent).
func midiToMs(segs []tempoSegment, ticksPerBeat uint16, tempoScalePct int, t uint32) float64 {
	if ticksPerBeat == 0 {
		ticksPerBeat = 480
	}
	if tempoScalePct <= 0 {
		tempoScalePct = 100
	}
	ms := 0.0
	for i, seg := range segs {
		segEnd := t
		if i+1 < len(segs) && segs[i+1].startTick < t {
			segEnd = segs[i+1].startTick
		}
		if segEnd <= seg.startTick {
			continue
		}
		ticks := float64(segEnd - seg.startTick)
		effBpm := seg.bpm * float64(tempoScalePct) / 100.0
		if effBpm <= 0 {
			effBpm = 120
		}
		ms += ticks * 60000.0 / (effBpm * float64(ticksPerBeat))
		if segEnd >= t {
			break
		}
	}
	return ms
}

// msToTicks inverts midiToMs by walking the same segments forward,
// converting each segment's duration to ticks until x milliseconds are
// consumed. Used by GoToTimeMs; deliberately simple rather than solved in
// closed form, since segments are few.
func msToTicks(segs []tempoSegment, ticksPerBeat uint16, tempoScalePct int, x float64) uint32 {
	if ticksPerBeat == 0 {
		ticksPerBeat = 480
	}
	if tempoScalePct <= 0 {
		tempoScalePct = 100
	}
	remaining := x
	tick := uint32(0)
	for i, seg := range segs {
		effBpm := seg.bpm * float64(tempoScalePct) / 100.0
		if effBpm <= 0 {
			effBpm = 120
		}
		msPerTick := 60000.0 / (effBpm * float64(ticksPerBeat))
		var segTicks uint32
		if i+1 < len(segs) {
			segTicks = segs[i+1].startTick - seg.startTick
		} else {
			segTicks = ^uint32(0)
		}
		segMs := float64(segTicks) * msPerTick
		if remaining <= segMs || segTicks == ^uint32(0) {
			tick = seg.startTick + uint32(remaining/msPerTick)
			return tick
		}
		remaining -= segMs
		tick = seg.startTick + segTicks
	}
	return tick
}

// timeSigAt walks track 0 up to time t and returns the last time signature
// in effect, defaulting to 4/4 if none was ever set: there is nothing to
// have seen yet at the start, so the default applies rather than a
// "last seen before the scan point" rule.
func timeSigAt(mt *track.Multitrack, t uint32) (num, denom byte) {
	num, denom = 4, 4
	conductor := mt.Track(0)
	if conductor == nil {
		return
	}
	for i := 0; i < conductor.Len()-1; i++ {
		e := conductor.At(i)
		if e.Time > t {
			break
		}
		if e.IsTimeSig() {
			num, denom = e.TimeSig()
		}
	}
	return
}

// keySigAt mirrors timeSigAt for the key signature, defaulting to C major.
func keySigAt(mt *track.Multitrack, t uint32) (sharpsFlats int8, minor bool) {
	conductor := mt.Track(0)
	if conductor == nil {
		return 0, false
	}
	for i := 0; i < conductor.Len()-1; i++ {
		e := conductor.At(i)
		if e.Time > t {
			break
		}
		if e.IsKeySig() {
			sharpsFlats, minor = e.KeySig()
		}
	}
	return
}
