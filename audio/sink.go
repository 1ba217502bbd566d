package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/hajimehoshi/oto/v2"
)

// Sink is the boundary the pipeline writes converted PCM to. Volume and
// mute are applied here, by the sink's own gain control, rather than by
// scaling samples in the pipeline: changes take effect without artifacts
// between buffers.
type Sink interface {
	Open(sampleRate, channels int) error
	Write(pcm []byte) error
	SetVolume(volume int) // 0-100
	SetMuted(muted bool)
	Close() error
}

// ActivityMonitor reports whether another application is currently playing
// audio, driving the auto-mute feature. Implementations live with the
// audio backend plumbing; NopMonitor is the default.
type ActivityMonitor interface {
	OtherPlaybackActive() bool
}

// NopMonitor never reports foreign playback.
type NopMonitor struct{}

func (NopMonitor) OtherPlaybackActive() bool { return false }

// The process-wide oto context. oto allows a single context per process
// with a fixed sample rate and channel count; the first session to open a
// sink fixes both, and later sessions with a different format degrade to
// silent video rather than failing playback.
var (
	otoMu       sync.Mutex
	otoCtx      *oto.Context
	otoRate     int
	otoChannels int
)

func acquireOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate || otoChannels != channels {
			return nil, fmt.Errorf("audio: device opened at %dHz/%dch, source needs %dHz/%dch",
				otoRate, otoChannels, sampleRate, channels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(sampleRate, channels, bytesPerSample)
	if err != nil {
		return nil, fmt.Errorf("audio: opening device: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoRate = sampleRate
	otoChannels = channels
	return ctx, nil
}

// OtoSink plays PCM through the oto audio device. Writes feed a pipe read
// by the device player, so Write backpressure naturally paces the decode
// loop to the device's consumption rate.
type OtoSink struct {
	mu     sync.Mutex
	player oto.Player
	pw     *io.PipeWriter
	volume int
	muted  bool
}

// NewOtoSink returns an unopened sink at full volume.
func NewOtoSink() *OtoSink {
	return &OtoSink{volume: 100}
}

// Open connects the sink to the audio device for the given stream format.
func (s *OtoSink) Open(sampleRate, channels int) error {
	ctx, err := acquireOtoContext(sampleRate, channels)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		return errors.New("audio: sink already open")
	}

	pr, pw := io.Pipe()
	p := ctx.NewPlayer(pr)
	p.SetVolume(s.gain())
	p.Play()

	s.player = p
	s.pw = pw
	return nil
}

// Write queues one converted PCM buffer, blocking while the device buffer
// is full.
func (s *OtoSink) Write(pcm []byte) error {
	s.mu.Lock()
	pw := s.pw
	s.mu.Unlock()

	if pw == nil {
		return errors.New("audio: sink not open")
	}
	_, err := pw.Write(pcm)
	return err
}

// SetVolume stores the volume (0-100, clamped) and applies it unless muted.
func (s *OtoSink) SetVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}
	s.volume = volume
	s.apply()
}

// SetMuted toggles mute without touching the stored volume.
func (s *OtoSink) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.muted = muted
	s.apply()
}

func (s *OtoSink) apply() {
	if s.player != nil {
		s.player.SetVolume(s.gain())
	}
}

// gain maps the stored volume and mute flag to the player's linear gain.
func (s *OtoSink) gain() float64 {
	if s.muted {
		return 0
	}
	return float64(s.volume) / 100
}

// Close detaches from the device. The shared context stays alive for
// subsequent sessions.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pw != nil {
		_ = s.pw.Close()
		s.pw = nil
	}
	if s.player != nil {
		err := s.player.Close()
		s.player = nil
		return err
	}
	return nil
}
