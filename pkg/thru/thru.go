// Package thru implements a channel-filtering MIDI pass-through tick
// component: everything from one input port, optionally
// filtered/remapped/transformed, lands on one output port.
package thru

import (
	"sync"

	"github.com/zurustar/midiseq/internal/logging"
	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/transport"
)

var log = logging.For("thru")

// Processor optionally transforms or drops a message before it is sent
// on; it mirrors sequencer.ExtraProcessor's shape without importing that
// package (Thru has no other dependency on pkg/sequencer).
type Processor func(midimsg.Message) (midimsg.Message, bool)

// Config is Thru's settable parameters.
type Config struct {
	InChannel  int // -1 = any
	OutChannel int // -1 = unchanged
	Proc       Processor
}

// Thru implements transport.Component at PRPreSeq.
type Thru struct {
	transport.Base

	mu  sync.Mutex
	in  driver.Input
	out driver.Output
	cfg Config

	lastOutChannel int
}

// New returns a Thru reading from in and writing to out. Either may be
// nil, in which case a dummy driver is substituted: construction failure
// returns a non-functional component rather than erroring the caller.
func New(clock *transport.Clock, in driver.Input, out driver.Output, cfg Config) *Thru {
	if in == nil {
		in = driver.NewDummyInput("thru-in-dummy")
	}
	if out == nil {
		out = driver.NewDummyOutput("thru-out-dummy")
	}
	return &Thru{Base: transport.NewBase(clock), in: in, out: out, cfg: cfg, lastOutChannel: -1}
}

func (t *Thru) Priority() transport.Priority { return transport.PRPreSeq }

// SetConfig changes the channel filter/remap, emitting all-notes-off on
// the previously active outgoing channel first.
func (t *Thru) SetConfig(cfg Config) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allNotesOffLocked()
	t.cfg = cfg
	log.Info("config changed", "inChannel", cfg.InChannel, "outChannel", cfg.OutChannel)
}

func (t *Thru) Stop() error {
	t.mu.Lock()
	t.allNotesOffLocked()
	t.mu.Unlock()
	return t.Base.Stop()
}

func (t *Thru) allNotesOffLocked() {
	if t.lastOutChannel < 0 {
		return
	}
	var m midimsg.Message
	m.SetControlChange(byte(t.lastOutChannel), 123, 0)
	_ = t.out.SendBytes(m.Bytes())
	t.lastOutChannel = -1
}

// AllNotesOff is exposed for transport.Manager's panic-button sweep.
func (t *Thru) AllNotesOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allNotesOffLocked()
}

// Tick drains every message queued on the input port and forwards the
// ones that match the channel filter. Draining is bounded to the queue
// depth observed at entry so a producer racing with this tick cannot
// starve other components.
func (t *Thru) Tick(sysTimeMs uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.in.QueueLock()
	n := t.in.QueueSize()
	t.in.QueueUnlock()

	for i := 0; i < n; i++ {
		raw, ok := t.in.PollOne()
		if !ok {
			break
		}
		msg, ok := parseRaw(raw)
		if !ok {
			continue
		}
		t.forward(msg)
	}
}

func (t *Thru) forward(msg midimsg.Message) {
	ch, isChannel := msg.Channel()
	if isChannel {
		if t.cfg.InChannel >= 0 && int(ch) != t.cfg.InChannel {
			return
		}
		if t.cfg.OutChannel >= 0 {
			ch = byte(t.cfg.OutChannel)
		}
	}

	if t.cfg.Proc != nil {
		var ok bool
		msg, ok = t.cfg.Proc(msg)
		if !ok {
			return
		}
	}

	if isChannel {
		msg.Status = (msg.Status & 0xF0) | (ch & 0x0F)
		t.lastOutChannel = int(ch)
	}
	_ = t.out.SendBytes(msg.Bytes())
}

// parseRaw turns a raw 1-3 byte channel message into a midimsg.Message.
// Thru only ever receives channel messages from real hardware, so
// sysex/meta forms are not handled here.
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
