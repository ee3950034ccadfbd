package sequencer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/zurustar/midiseq/pkg/track"
)

// Property: msToTicks inverts midiToMs to within one tick, for any tick
// reachable under a single constant-tempo segment.
func TestPropertyMidiToMsRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("midiToMs/msToTicks round trip within 1 tick", prop.ForAll(
		func(bpm int, tick uint32) bool {
			if bpm < 20 || bpm > 300 {
				return true
			}
			segs := []tempoSegment{{startTick: 0, bpm: float64(bpm)}}
			ms := midiToMs(segs, 480, 100, tick)
			back := msToTicks(segs, 480, 100, ms)
			diff := int(back) - int(tick)
			if diff < 0 {
				diff = -diff
			}
			return diff <= 1
		},
		gen.IntRange(20, 300),
		gen.UInt32Range(0, 100000),
	))

	properties.TestingRun(t)
}

// Property: a tempoMap derived from any sequence of positive-tick tempo
// events stays sorted by startTick, with the implicit tick-0 segment first.
func TestPropertyTempoMapStaysOrdered(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("tempoMapFrom output is strictly ascending by startTick", prop.ForAll(
		func(ticks []uint32) bool {
			mt := track.NewMultitrack(480)
			var last uint32
			for _, delta := range ticks {
				last += delta%2000 + 1
				tempo := tempoEvent(60+float64(last%200), last)
				mt.Track(0).Insert(tempo)
			}
			segs := tempoMapFrom(mt)
			for i := 1; i < len(segs); i++ {
				if segs[i].startTick <= segs[i-1].startTick {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt32Range(0, 500)),
	))

	properties.TestingRun(t)
}
