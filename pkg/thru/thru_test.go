package thru

import (
	"testing"

	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/midimsg"
	"github.com/zurustar/midiseq/pkg/transport"
)

type captureOutput struct {
	driver.DummyOutput
	sent [][]byte
}

func (c *captureOutput) SendBytes(b []byte) error {
	c.sent = append(c.sent, append([]byte(nil), b...))
	return nil
}

func noteOnBytes(ch, note, vel byte) []byte {
	var m midimsg.Message
	m.SetNoteOn(ch, note, vel)
	return m.Bytes()
}

func TestThruFiltersByInputChannel(t *testing.T) {
	in := driver.NewQueueInput("in")
	out := &captureOutput{}
	clock := transport.NewClock(0, nil)
	th := New(clock, in, out, Config{InChannel: 2, OutChannel: -1})

	in.Push(noteOnBytes(2, 60, 100))
	in.Push(noteOnBytes(3, 61, 100))
	th.Tick(0)

	if len(out.sent) != 1 {
		t.Fatalf("expected exactly 1 forwarded message, got %d", len(out.sent))
	}
	var m midimsg.Message
	m.Status = out.sent[0][0]
	ch, _ := m.Channel()
	if ch != 2 {
		t.Fatalf("expected forwarded message to be on channel 2, got %d", ch)
	}
}

func TestThruRemapsOutputChannel(t *testing.T) {
	in := driver.NewQueueInput("in")
	out := &captureOutput{}
	clock := transport.NewClock(0, nil)
	th := New(clock, in, out, Config{InChannel: -1, OutChannel: 5})

	in.Push(noteOnBytes(0, 60, 100))
	th.Tick(0)

	if len(out.sent) != 1 {
		t.Fatalf("expected 1 forwarded message, got %d", len(out.sent))
	}
	if ch := out.sent[0][0] & 0x0F; ch != 5 {
		t.Fatalf("expected remapped channel 5, got %d", ch)
	}
}

func TestThruAllNotesOffOnConfigChange(t *testing.T) {
	in := driver.NewQueueInput("in")
	out := &captureOutput{}
	clock := transport.NewClock(0, nil)
	th := New(clock, in, out, Config{InChannel: -1, OutChannel: 1})

	in.Push(noteOnBytes(0, 60, 100))
	th.Tick(0)

	th.SetConfig(Config{InChannel: -1, OutChannel: 2})

	if len(out.sent) != 2 {
		t.Fatalf("expected a note-on plus an all-notes-off CC on config change, got %d messages", len(out.sent))
	}
	last := out.sent[len(out.sent)-1]
	if last[1] != 123 {
		t.Fatalf("expected CC 123 (all notes off), got CC %d", last[1])
	}
}
