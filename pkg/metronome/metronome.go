// Package metronome implements a click-track tick component: a
// transport.Component at PRPostSeq that sends measure, beat, and
// subdivision note-ons at a configurable tempo.
package metronome

import (
	"fmt"

	"github.com/zurustar/midiseq/internal/logging"
	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/transport"
)

var log = logging.For("metronome")

// quarterTicks is the metronome's own tick count per quarter note,
// independent of any score's ticksPerBeat.
const quarterTicks = uint32(480)

// Config is the metronome's settable parameters. Every field has a
// pending counterpart applied at commit time so an in-flight click
// pattern stays coherent: values apply at the next click if running,
// immediately if not.
type Config struct {
	Channel       byte
	MeasureNote   byte
	BeatNote      byte
	SubdivNote    byte
	SubdivType    int // 0 = disabled, else 2..6
	TimeSigNum    int // 0 = no measure grouping
	TempoBPM      float64
	TempoScalePct int
}

// Metronome implements transport.Component at PRPostSeq.
type Metronome struct {
	transport.Base

	out driver.Output

	committed Config
	pending   Config

	beatLength uint32
	msPerBeat  float64
	onOffTime  float64

	clockTicks   uint32 // synthetic tick counter, advances beatLength per beat
	beat         int
	lastNote     byte
	noteOn       bool
	nextTimeOnMs uint64
	nextOffMs    uint64
}

// New returns a Metronome sending clicks to out, or a DummyOutput if out
// is nil: construction failure falls back to dummy rather than erroring.
func New(clock *transport.Clock, out driver.Output, cfg Config) *Metronome {
	if out == nil {
		out = driver.NewDummyOutput("metronome-dummy")
	}
	m := &Metronome{Base: transport.NewBase(clock), out: out, committed: cfg, pending: cfg}
	m.recompute()
	return m
}

func (m *Metronome) Priority() transport.Priority { return transport.PRPostSeq }

// SetConfig stages cfg into the pending fields; it takes effect at the
// next click boundary while running, or immediately if stopped.
func (m *Metronome) SetConfig(cfg Config) {
	m.pending = cfg
	if !m.Running() {
		m.committed = cfg
		m.recompute()
	}
	log.Debug("config staged", "bpm", cfg.TempoBPM, "subdiv", cfg.SubdivType)
}

func (m *Metronome) recompute() {
	subd := m.committed.SubdivType
	if subd < 1 {
		subd = 1
	}
	m.beatLength = quarterTicks / uint32(subd)

	bpm := m.committed.TempoBPM
	if bpm <= 0 {
		bpm = 120
	}
	scale := m.committed.TempoScalePct
	if scale <= 0 {
		scale = 100
	}
	m.msPerBeat = 60_000_000.0 / (bpm * float64(scale) / 100.0 * float64(subd)) / 1000.0
	m.onOffTime = m.msPerBeat / 4
	if m.onOffTime < 30 {
		m.onOffTime = 30
	}
}

func (m *Metronome) Start() error {
	if err := m.Base.Start(); err != nil {
		return err
	}
	m.clockTicks = 0
	m.beat = 0
	m.nextTimeOnMs = 0
	m.nextOffMs = 0
	return nil
}

func (m *Metronome) Stop() error {
	if m.noteOn {
		m.sendNoteOff()
	}
	return m.Base.Stop()
}

// Tick implements transport.Component.
func (m *Metronome) Tick(sysTimeMs uint64) {
	elapsed := m.Elapsed(sysTimeMs)

	if elapsed >= m.nextTimeOnMs {
		m.committed = m.pending
		m.recompute()

		subd := m.committed.SubdivType
		onQuarter := subd < 2 || (m.clockTicks%quarterTicks == 0)
		var note byte
		switch {
		case onQuarter && m.beat == 0 && m.committed.TimeSigNum > 0:
			note = m.committed.MeasureNote
		case onQuarter:
			note = m.committed.BeatNote
		default:
			note = m.committed.SubdivNote
		}
		m.sendNoteOn(note)

		m.clockTicks += m.beatLength
		if onQuarter {
			m.beat++
			if m.committed.TimeSigNum > 0 && m.beat >= m.committed.TimeSigNum {
				m.beat = 0
			}
		}
		m.nextTimeOnMs += uint64(m.msPerBeat)
	}

	if m.noteOn && elapsed >= m.nextOffMs {
		m.sendNoteOff()
		m.nextOffMs += uint64(m.msPerBeat)
	}
}

func (m *Metronome) sendNoteOn(note byte) {
	var msg midimsg.Message
	msg.SetNoteOn(m.committed.Channel, note, 100)
	_ = m.out.SendBytes(msg.Bytes())
	m.lastNote = note
	m.noteOn = true
	m.nextOffMs = m.nextTimeOnMs + uint64(m.onOffTime)
}

func (m *Metronome) sendNoteOff() {
	var msg midimsg.Message
	msg.SetNoteOff(m.committed.Channel, m.lastNote, 0)
	_ = m.out.SendBytes(msg.Bytes())
	m.noteOn = false
}

func (c Config) String() string {
	return fmt.Sprintf("metronome{ch=%d bpm=%.1f subd=%d}", c.Channel, c.TempoBPM, c.SubdivType)
}
