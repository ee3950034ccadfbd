// Package midimsg defines the core MIDI event type shared by every other
// package in this module: a value type carrying a status byte, up to two
// data bytes, an optional owned sysex payload, and a clock-time stamp.
package midimsg

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// Meta type bytes used by SetText / the Is* predicates below.
const (
	MetaTrackName  byte = 0x03
	MetaMarker     byte = 0x06
	MetaTempo      byte = 0x51
	MetaTimeSig    byte = 0x58
	MetaKeySig     byte = 0x59
	MetaEndOfTrack byte = 0x2F
)

// Message is a single MIDI event. Zero value is invalid: Status must never
// be zero. It is cheap to copy except for SysEx, which Clone deep-copies.
type Message struct {
	Status   byte
	Data1    byte
	Data2    byte
	SysEx    []byte // sysex data for Status 0xF0/0xF7, meta payload for Status 0xFF
	MetaType byte   // valid iff Status is 0xFF
	Time     uint32
}

// Clone returns a value copy that owns its own SysEx buffer.
func (m Message) Clone() Message {
	if m.SysEx == nil {
		return m
	}
	cp := m
	cp.SysEx = append([]byte(nil), m.SysEx...)
	return cp
}

// IsChannelMsg reports whether Status encodes a channel voice/mode message
// (0x80-0xEF).
func (m Message) IsChannelMsg() bool {
	return m.Status >= 0x80 && m.Status < 0xF0
}

// Channel returns the low nibble of Status for channel messages.
func (m Message) Channel() (ch byte, ok bool) {
	if !m.IsChannelMsg() {
		return 0, false
	}
	return m.Status & 0x0F, true
}

func (m Message) command() byte { return m.Status & 0xF0 }

// IsNoteOn reports a note-on event with nonzero velocity; a note-on with
// velocity 0 is conventionally a note-off and is NOT reported here.
func (m Message) IsNoteOn() bool {
	return m.IsChannelMsg() && m.command() == 0x90 && m.Data2 > 0
}

// IsNoteOff reports a note-off event, including a note-on with velocity 0.
func (m Message) IsNoteOff() bool {
	if !m.IsChannelMsg() {
		return false
	}
	c := m.command()
	return c == 0x80 || (c == 0x90 && m.Data2 == 0)
}

func (m Message) IsPolyPressure() bool  { return m.IsChannelMsg() && m.command() == 0xA0 }
func (m Message) IsControlChange() bool { return m.IsChannelMsg() && m.command() == 0xB0 }
func (m Message) IsProgramChange() bool { return m.IsChannelMsg() && m.command() == 0xC0 }
func (m Message) IsChannelPressure() bool {
	return m.IsChannelMsg() && m.command() == 0xD0
}
func (m Message) IsPitchBend() bool { return m.IsChannelMsg() && m.command() == 0xE0 }

func (m Message) IsSysEx() bool { return m.Status == 0xF0 || m.Status == 0xF7 }
func (m Message) IsMeta() bool  { return m.Status == 0xFF }

func (m Message) IsTempo() bool      { return m.IsMeta() && m.MetaType == MetaTempo }
func (m Message) IsTimeSig() bool    { return m.IsMeta() && m.MetaType == MetaTimeSig }
func (m Message) IsKeySig() bool     { return m.IsMeta() && m.MetaType == MetaKeySig }
func (m Message) IsMarker() bool     { return m.IsMeta() && m.MetaType == MetaMarker }
func (m Message) IsTrackName() bool  { return m.IsMeta() && m.MetaType == MetaTrackName }
func (m Message) IsEndOfTrack() bool { return m.IsMeta() && m.MetaType == MetaEndOfTrack }

// IsAllNotesOff reports the "all notes off" channel-mode controller (CC 123).
func (m Message) IsAllNotesOff() bool {
	return m.IsControlChange() && m.Data1 == 123
}

// SetNoteOn sets this message to a note-on event on channel ch.
func (m *Message) SetNoteOn(ch, note, vel byte) {
	m.Status = 0x90 | (ch & 0x0F)
	m.Data1, m.Data2 = note, vel
	m.SysEx, m.MetaType = nil, 0
}

// SetNoteOff sets this message to a note-off event on channel ch.
func (m *Message) SetNoteOff(ch, note, vel byte) {
	m.Status = 0x80 | (ch & 0x0F)
	m.Data1, m.Data2 = note, vel
	m.SysEx, m.MetaType = nil, 0
}

func (m *Message) SetControlChange(ch, cc, val byte) {
	m.Status = 0xB0 | (ch & 0x0F)
	m.Data1, m.Data2 = cc, val
	m.SysEx, m.MetaType = nil, 0
}

func (m *Message) SetProgramChange(ch, prog byte) {
	m.Status = 0xC0 | (ch & 0x0F)
	m.Data1, m.Data2 = prog, 0
	m.SysEx, m.MetaType = nil, 0
}

// SetPitchBend sets a 14-bit pitch-bend value, where 0x2000 is center.
func (m *Message) SetPitchBend(ch byte, val uint16) {
	m.Status = 0xE0 | (ch & 0x0F)
	m.Data1 = byte(val & 0x7F)
	m.Data2 = byte((val >> 7) & 0x7F)
	m.SysEx, m.MetaType = nil, 0
}

// PitchBendValue reconstructs the 14-bit pitch-bend value from Data1/Data2.
func (m Message) PitchBendValue() uint16 {
	return uint16(m.Data1&0x7F) | (uint16(m.Data2&0x7F) << 7)
}

// SetTempo sets this message to a tempo meta-event at the given BPM.
func (m *Message) SetTempo(bpm float64) {
	microsPerBeat := uint32(60000000.0 / bpm)
	m.Status, m.MetaType = 0xFF, MetaTempo
	m.SysEx = []byte{
		byte(microsPerBeat >> 16),
		byte(microsPerBeat >> 8),
		byte(microsPerBeat),
	}
}

// Tempo returns the BPM encoded by a tempo meta-event.
func (m Message) Tempo() float64 {
	if !m.IsTempo() || len(m.SysEx) != 3 {
		return 120
	}
	micros := uint32(m.SysEx[0])<<16 | uint32(m.SysEx[1])<<8 | uint32(m.SysEx[2])
	if micros == 0 {
		return 120
	}
	return 60000000.0 / float64(micros)
}

// SetTimeSig sets this message to a time-signature meta-event. denom is the
// actual denominator (e.g. 4), stored internally as its power-of-two log.
func (m *Message) SetTimeSig(num, denom byte) {
	m.Status, m.MetaType = 0xFF, MetaTimeSig
	log2 := byte(0)
	for d := denom; d > 1; d >>= 1 {
		log2++
	}
	m.SysEx = []byte{num, log2, 24, 8}
}

// TimeSig returns the numerator and denominator of a time-signature event.
func (m Message) TimeSig() (num, denom byte) {
	if !m.IsTimeSig() || len(m.SysEx) < 2 {
		return 4, 4
	}
	return m.SysEx[0], 1 << m.SysEx[1]
}

// SetKeySig sets this message to a key-signature meta-event.
func (m *Message) SetKeySig(sharpsFlats int8, minor bool) {
	m.Status, m.MetaType = 0xFF, MetaKeySig
	mode := byte(0)
	if minor {
		mode = 1
	}
	m.SysEx = []byte{byte(sharpsFlats), mode}
}

// KeySig returns sharps/flats (negative = flats) and major/minor.
func (m Message) KeySig() (sharpsFlats int8, minor bool) {
	if !m.IsKeySig() || len(m.SysEx) < 2 {
		return 0, false
	}
	return int8(m.SysEx[0]), m.SysEx[1] != 0
}

// SetText sets this message to a text-carrying meta-event (marker, track
// name, ...).
func (m *Message) SetText(metaType byte, s string) {
	m.Status, m.MetaType = 0xFF, metaType
	m.SysEx = []byte(s)
}

// Text returns the text payload of a text meta-event.
func (m Message) Text() string {
	if !m.IsMeta() {
		return ""
	}
	return string(m.SysEx)
}

// SetEndOfTrack sets this message to the end-of-track sentinel, leaving
// Time unchanged.
func (m *Message) SetEndOfTrack() {
	m.Status, m.MetaType = 0xFF, MetaEndOfTrack
	m.SysEx = nil
}

// SetSysEx sets this message to a system-exclusive event; payload must
// already include the opening 0xF0 (or the continuation status 0xF7) and
// the closing 0xF7.
func (m *Message) SetSysEx(status byte, payload []byte) {
	m.Status = status
	m.SysEx = append([]byte(nil), payload...)
	m.MetaType = 0
}

// Bytes renders the channel-message wire form (status, data1[, data2]) using
// gomidi's encoding so the byte layout matches the published MIDI v2
// library this module depends on for channel-message arithmetic.
func (m Message) Bytes() []byte {
	if !m.IsChannelMsg() {
		return nil
	}
	ch := m.Status & 0x0F
	switch m.command() {
	case 0x80:
		return midi.NoteOff(ch, m.Data1).Bytes()
	case 0x90:
		return midi.NoteOn(ch, m.Data1, m.Data2).Bytes()
	case 0xA0:
		return midi.PolyAfterTouch(ch, m.Data1, m.Data2).Bytes()
	case 0xB0:
		return midi.ControlChange(ch, m.Data1, m.Data2).Bytes()
	case 0xC0:
		return midi.ProgramChange(ch, m.Data1).Bytes()
	case 0xD0:
		return midi.AfterTouch(ch, m.Data1).Bytes()
	case 0xE0:
		return midi.Pitchbend(ch, int16(m.PitchBendValue())-0x2000).Bytes()
	default:
		return []byte{m.Status, m.Data1, m.Data2}
	}
}

func (m Message) String() string {
	return fmt.Sprintf("Message{status=0x%02X data1=%d data2=%d time=%d}", m.Status, m.Data1, m.Data2, m.Time)
}
