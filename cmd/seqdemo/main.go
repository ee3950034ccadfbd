// Command seqdemo wires the sequencing core together and plays one
// Standard MIDI File. It exists to exercise the engine end to end; it is
// not a full player front-end.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zurustar/midiseq/internal/logging"
	"github.com/zurustar/midiseq/pkg/driver"
	"github.com/zurustar/midiseq/pkg/sequencer"
	"github.com/zurustar/midiseq/pkg/softsynth"
	"github.com/zurustar/midiseq/pkg/transport"
)

func main() {
	smfPath := flag.String("smf", "", "path to a Standard MIDI File to play")
	soundFont := flag.String("soundfont", "", "path to a .sf2 file; omit to discard audio")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	if err := logging.Init(*logLevel, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.For("seqdemo")

	if *smfPath == "" {
		fmt.Fprintln(os.Stderr, "seqdemo: -smf is required")
		os.Exit(1)
	}

	mt, err := sequencer.LoadSMF(*smfPath)
	if err != nil {
		log.Error("load failed", "err", err)
		os.Exit(1)
	}

	seq := sequencer.New(mt.TicksPerBeat)
	seq.Load(mt)

	var out driver.Output
	if *soundFont != "" {
		synth, err := softsynth.New("seqdemo", *soundFont)
		if err != nil {
			log.Error("soundfont load failed", "err", err)
			os.Exit(1)
		}
		if err := synth.Open(); err != nil {
			log.Error("audio open failed", "err", err)
			os.Exit(1)
		}
		defer synth.Close()
		out = synth
	} else {
		out = driver.NewDummyOutput("silent")
	}

	clock := transport.NewClock(time.Millisecond, nil)
	mgr := transport.NewManager(clock)

	done := make(chan struct{})
	player := &playerComponent{Base: transport.NewBase(clock), seq: seq, out: out, done: done}
	mgr.AddTick(player)

	if err := player.Start(); err != nil {
		log.Error("start failed", "err", err)
		os.Exit(1)
	}
	log.Info("playback started", "file", *smfPath)

	<-done
	_ = player.Stop()
	log.Info("playback finished")
}

// playerComponent drains the Sequencer at PRSeq and sends every resulting
// message to out, closing done once the song is exhausted.
type playerComponent struct {
	transport.Base
	seq  *sequencer.Sequencer
	out  driver.Output
	done chan struct{}

	closedOnce bool
}

func (p *playerComponent) Priority() transport.Priority { return transport.PRSeq }

func (p *playerComponent) Tick(sysTimeMs uint64) {
	elapsed := p.Elapsed(sysTimeMs)
	for {
		nt, ok := p.seq.NextEventTime()
		if !ok {
			if !p.closedOnce {
				p.closedOnce = true
				close(p.done)
			}
			return
		}
		if uint64(p.seq.State().MidiToMs(p.seq.Multitrack(), nt)) > elapsed {
			return
		}
		_, msg, keep := p.seq.NextEvent()
		if keep {
			_ = p.out.SendBytes(msg.Bytes())
		}
	}
}
