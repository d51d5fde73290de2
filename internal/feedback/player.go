package feedback

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// Sink receives finished streamers.
type Sink interface {
	Play(s beep.Streamer)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(s beep.Streamer)

func (f SinkFunc) Play(s beep.Streamer) { f(s) }

// Config configures a Player.
type Config struct {
	Enabled    bool
	SampleRate int
	Volume     float64 // master gain applied on top of the tone volume
}

// Player turns engine taps into sounds. Tap is safe to call from the
// engine goroutine; it never blocks on audio output.
type Player struct {
	enabled atomic.Bool
	taps    atomic.Int64
	rate    beep.SampleRate
	volume  float64
	tone    Tone
	sink    Sink

	wavOnce sync.Once
	wav     []byte
	wavErr  error
}

// NewPlayer creates a player that sends pings to sink.
func NewPlayer(cfg Config, sink Sink) *Player {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	p := &Player{
		rate:   beep.SampleRate(cfg.SampleRate),
		volume: cfg.Volume,
		tone:   TapTone,
		sink:   sink,
	}
	p.enabled.Store(cfg.Enabled)
	return p
}

// Tap plays the tap tone when sound is enabled.
func (p *Player) Tap() {
	if !p.enabled.Load() || p.sink == nil {
		return
	}
	p.taps.Add(1)
	p.sink.Play(p.stream())
}

func (p *Player) stream() beep.Streamer {
	return newVolume(NewPing(p.tone, p.rate), p.volume)
}

// SetEnabled toggles sound and returns the applied value.
func (p *Player) SetEnabled(on bool) bool {
	p.enabled.Store(on)
	return on
}

// Enabled reports whether taps make sound.
func (p *Player) Enabled() bool {
	return p.enabled.Load()
}

// Taps returns how many pings were played.
func (p *Player) Taps() int64 {
	return p.taps.Load()
}

// Format returns the output format of the player's streams.
func (p *Player) Format() beep.Format {
	return beep.Format{SampleRate: p.rate, NumChannels: 1, Precision: 2}
}

// TapWAV returns the tap tone encoded as a WAV file. It is rendered once.
func (p *Player) TapWAV() ([]byte, error) {
	p.wavOnce.Do(func() {
		var buf seekBuffer
		if err := wav.Encode(&buf, p.stream(), p.Format()); err != nil {
			p.wavErr = fmt.Errorf("encode tap tone: %w", err)
			return
		}
		p.wav = buf.data
	})
	return p.wav, p.wavErr
}

// seekBuffer is an in-memory io.WriteSeeker for wav.Encode, which seeks
// back to patch the header sizes.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	copy(b.data[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(b.pos) + offset
	case io.SeekEnd:
		next = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("seek: negative position %d", next)
	}
	b.pos = int(next)
	return next, nil
}
