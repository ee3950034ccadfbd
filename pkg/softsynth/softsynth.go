// Package softsynth implements driver.Output against an in-process
// software synthesizer: raw MIDI bytes sent via SendBytes are forwarded
// to a go-meltysynth Synthesizer, which an ebiten/v2/audio.Player pulls
// PCM frames from on demand.
package softsynth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/zurustar/midiseq/internal/logging"
)

var log = logging.For("softsynth")

// SampleRate is the PCM rate rendered for every SoftSynth; meltysynth and
// the ebiten audio context must agree on it.
const SampleRate = 44100

var (
	sharedContext *audio.Context
	sharedMu      sync.Mutex
)

func getContext() *audio.Context {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedContext == nil {
		sharedContext = audio.NewContext(SampleRate)
	}
	return sharedContext
}

// SoftSynth is a driver.Output backed by a loaded SoundFont. It satisfies
// driver.Output: Open/Close manage the ebiten audio.Player's lifetime,
// SendBytes forwards one raw MIDI message straight into the synthesizer.
type SoftSynth struct {
	mu     sync.Mutex
	name   string
	font   *meltysynth.SoundFont
	synth  *meltysynth.Synthesizer
	stream *renderStream
	player *audio.Player
	open   bool
}

// New loads a SoundFont from path and returns a SoftSynth named name. The
// synthesizer is created eagerly so SendBytes can be called before Open.
func New(name, soundFontPath string) (*SoftSynth, error) {
	data, err := os.ReadFile(soundFontPath)
	if err != nil {
		return nil, fmt.Errorf("softsynth: read soundfont %s: %w", soundFontPath, err)
	}
	font, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("softsynth: parse soundfont %s: %w", soundFontPath, err)
	}
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(font, settings)
	if err != nil {
		return nil, fmt.Errorf("softsynth: create synthesizer: %w", err)
	}
	log.Info("soundfont loaded", "path", soundFontPath, "name", name)
	return &SoftSynth{name: name, font: font, synth: synth}, nil
}

// Open starts the underlying audio.Player. Safe to call more than once.
func (s *SoftSynth) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	s.stream = &renderStream{synth: s.synth}
	player, err := getContext().NewPlayer(s.stream)
	if err != nil {
		return fmt.Errorf("softsynth: new player: %w", err)
	}
	s.player = player
	s.player.Play()
	s.open = true
	return nil
}

func (s *SoftSynth) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
	s.open = false
	return nil
}

func (s *SoftSynth) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *SoftSynth) Name() string { return s.name }

// SendBytes decodes one raw channel message and forwards it to the
// synthesizer. Non-channel messages (meta, sysex) are silently dropped:
// the synthesizer has no use for them.
func (s *SoftSynth) SendBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	status := b[0]
	if status < 0x80 || status >= 0xF0 {
		return nil
	}
	channel := int32(status & 0x0F)
	command := int32(status & 0xF0)
	var data1, data2 int32
	if len(b) > 1 {
		data1 = int32(b[1])
	}
	if len(b) > 2 {
		data2 = int32(b[2])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.synth.ProcessMidiMessage(channel, command, data1, data2)
	return nil
}

// renderStream implements io.Reader, pulling PCM frames from the
// synthesizer on demand, the way ebiten's audio.Player expects.
type renderStream struct {
	mu    sync.Mutex
	synth *meltysynth.Synthesizer
}

func (r *renderStream) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sampleCount := len(p) / 4 // stereo, 16-bit
	if sampleCount == 0 {
		return 0, nil
	}
	left := make([]float32, sampleCount)
	right := make([]float32, sampleCount)
	r.synth.Render(left, right)

	for i := 0; i < sampleCount; i++ {
		binary.LittleEndian.PutUint16(p[i*4:], uint16(int16(clampSample(left[i]))))
		binary.LittleEndian.PutUint16(p[i*4+2:], uint16(int16(clampSample(right[i]))))
	}
	return sampleCount * 4, nil
}

func clampSample(f float32) float32 {
	v := f * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

var _ io.Reader = (*renderStream)(nil)
