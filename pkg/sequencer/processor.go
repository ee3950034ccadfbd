package sequencer

import "github.com/zurustar/midiseq/pkg/midimsg"

// Solo states for a single track's Processor.
type SoloState int

const (
	NoSolo SoloState = iota
	Soloed
	NotSoloed
)

// ExtraProcessor lets a caller hook additional per-track transforms into
// the processor chain; it returns the (possibly modified) message and
// whether to keep it.
type ExtraProcessor func(midimsg.Message) (midimsg.Message, bool)

// Processor is the per-track mute/solo/velocity/rechannel/transpose filter
// applied to outgoing messages.
type Processor struct {
	Mute          bool
	Solo          SoloState
	VelocityScale int  // percent, 100 = identity
	Rechannel     int8 // -1 = keep original channel
	Transpose     int  // signed semitones
	ExtraProc     ExtraProcessor
}

// NewProcessor returns a Processor in its identity configuration.
func NewProcessor() *Processor {
	return &Processor{VelocityScale: 100, Rechannel: -1}
}

// Apply transforms msg according to this processor's configuration,
// returning the transformed message and whether it should still be sent.
// isConductor tracks (track 0) are never muted/soloed out by the caller;
// Apply itself does not special-case track index.
func (p *Processor) Apply(msg midimsg.Message) (midimsg.Message, bool) {
	if p.Mute || p.Solo == NotSoloed {
		return msg, false
	}
	if p.isNoOp() {
		if p.ExtraProc != nil {
			return p.ExtraProc(msg)
		}
		return msg, true
	}
	if p.ExtraProc != nil {
		var ok bool
		msg, ok = p.ExtraProc(msg)
		if !ok {
			return msg, false
		}
	}
	ch, isChannel := msg.Channel()
	if !isChannel {
		return msg, true
	}

	if p.Rechannel >= 0 {
		ch = byte(p.Rechannel)
	}

	switch {
	case msg.IsNoteOn():
		vel := int(msg.Data2) * p.VelocityScale / 100
		if vel > 127 {
			vel = 127
		}
		if vel < 1 {
			vel = 1
		}
		note := int(msg.Data1) + p.Transpose
		if note < 0 || note > 127 {
			return msg, false
		}
		msg.SetNoteOn(ch, byte(note), byte(vel))
	case msg.IsNoteOff():
		note := int(msg.Data1) + p.Transpose
		if note < 0 || note > 127 {
			return msg, false
		}
		msg.SetNoteOff(ch, byte(note), msg.Data2)
	case msg.IsPolyPressure():
		note := int(msg.Data1) + p.Transpose
		if note < 0 || note > 127 {
			return msg, false
		}
		msg.Status = 0xA0 | (ch & 0x0F)
		msg.Data1 = byte(note)
	default:
		msg.Status = (msg.Status & 0xF0) | (ch & 0x0F)
	}
	return msg, true
}

func (p *Processor) isNoOp() bool {
	return !p.Mute && p.Solo != NotSoloed && p.VelocityScale == 100 && p.Rechannel < 0 && p.Transpose == 0
}
