// Package player orchestrates one media playback session: it drives the
// decoder from the render loop, paces frames against the playback clock,
// hands displayable frames to the display backend, and manages the audio
// pipeline's lifecycle alongside.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidwall/vidwall/audio"
	"github.com/vidwall/vidwall/decode"
	"github.com/vidwall/vidwall/display"
	"github.com/vidwall/vidwall/media"
	"github.com/vidwall/vidwall/pace"
)

// ErrNoMedia is returned by Tick before a successful Load.
var ErrNoMedia = errors.New("player: no media loaded")

// Source is the decode capability the player drives. *decode.Decoder is
// the production implementation; tests substitute stubs.
type Source interface {
	Load(path string) (media.Kind, error)
	NextFrame() (media.DecodedFrame, error)
	NativeFrameRate() float64
	HasAudio() bool
	Close()
}

// AudioStarter launches the audio pipeline for a loaded source. Split out
// so tests can run the player without FFmpeg or an audio device.
type AudioStarter func(path string, state *media.PlaybackState) interface{ Close() }

// Options configures a player session.
type Options struct {
	TargetFPS   float64 // <= 0 means native rate
	Volume      int     // 0-100
	Muted       bool
	AutoMute    bool
	ScalingMode media.ScalingMode
}

// Player owns the render-loop half of a session. All methods are called
// from the render-loop goroutine; the shared state object carries
// play/mute/volume to the audio pipeline.
type Player struct {
	log     *slog.Logger
	source  Source
	backend display.Backend
	pacer   *pace.Pacer
	state   *media.PlaybackState
	opts    Options

	startAudio AudioStarter
	audioPipe  interface{ Close() }

	loadReq chan string

	kind      media.Kind
	path      string
	presented bool // a still has been presented at least once
}

// New creates a player over the given source and backend. A nil source
// gets the production FFmpeg decoder; a nil audio starter gets the
// production audio pipeline with an oto sink. If log is nil,
// slog.Default() is used.
func New(source Source, backend display.Backend, opts Options, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "player")
	if source == nil {
		source = decode.New(log)
	}

	p := &Player{
		log:     log,
		source:  source,
		backend: backend,
		pacer:   pace.New(pace.DefaultFrameRate),
		state:   media.NewPlaybackState(opts.Volume, opts.Muted),
		opts:    opts,
		loadReq: make(chan string, 1),
	}
	p.startAudio = func(path string, state *media.PlaybackState) interface{ Close() } {
		return audio.Start(path, state, audio.NewOtoSink(), nil, opts.AutoMute, log)
	}
	p.pacer.SetTargetRate(opts.TargetFPS)
	return p
}

// SetAudioStarter overrides how the audio pipeline is launched. Must be
// called before Load.
func (p *Player) SetAudioStarter(s AudioStarter) { p.startAudio = s }

// State exposes the shared playback state (for control surfaces).
func (p *Player) State() *media.PlaybackState { return p.state }

// Load replaces the current session with the media at path. The previous
// audio pipeline is joined before decoder state is torn down and rebuilt.
func (p *Player) Load(path string) error {
	p.stopAudio()

	kind, err := p.source.Load(path)
	if err != nil {
		// The decoder reset its state before failing; the session is gone.
		p.kind = media.KindUnknown
		return fmt.Errorf("player: loading %s: %w", path, err)
	}

	p.kind = kind
	p.path = path
	p.presented = false
	p.pacer.SetNativeRate(p.source.NativeFrameRate())
	p.pacer.Reset()

	if kind == media.KindVideo && p.source.HasAudio() {
		p.audioPipe = p.startAudio(path, p.state)
	}

	p.state.SetPlaying(true)
	p.log.Info("session started", "path", path, "kind", kind.String())
	return nil
}

// Play resumes playback.
func (p *Player) Play() { p.state.SetPlaying(true) }

// Pause suspends playback; the session and audio pipeline stay alive.
func (p *Player) Pause() { p.state.SetPlaying(false) }

// Stop idles playback and rewinds the clock. The audio unit keeps running
// (idle); only Close terminates it.
func (p *Player) Stop() {
	p.state.SetPlaying(false)
	p.pacer.Reset()
}

// SetVolume updates the session volume (clamped to 0-100).
func (p *Player) SetVolume(v int) { p.state.SetVolume(v) }

// SetMuted toggles mute.
func (p *Player) SetMuted(m bool) { p.state.SetMuted(m) }

// Tick runs one render-loop iteration: decode, pace, and, when the pacer
// admits the frame, present. For stills the cached frame is presented once
// and subsequent ticks are no-ops. Under native-rate pacing Tick may block
// briefly (bounded at 100ms).
func (p *Player) Tick() error {
	if p.kind == media.KindUnknown {
		return ErrNoMedia
	}

	if p.kind.Still() {
		if p.presented {
			return nil
		}
		frame, err := p.source.NextFrame()
		if err != nil {
			return fmt.Errorf("player: decoding still: %w", err)
		}
		if err := p.backend.PresentImage(frame.Pix, frame.Width, frame.Height, p.opts.ScalingMode); err != nil {
			return err
		}
		p.presented = true
		return nil
	}

	if !p.state.Playing() {
		return nil
	}

	frame, err := p.source.NextFrame()
	if err != nil {
		return fmt.Errorf("player: decoding frame: %w", err)
	}

	// Decoding always runs at native cadence; only presentation is gated.
	p.pacer.Pace(frame.PTS)
	if p.pacer.RateLimited() && !p.pacer.ShouldDisplay() {
		return nil
	}

	return p.backend.PresentFrame(frame.Pix, frame.Width, frame.Height, p.opts.ScalingMode)
}

// RequestLoad asks the render loop to replace the session with path on its
// next iteration. Safe to call from any goroutine (e.g. a file watcher); a
// still-pending request is superseded.
func (p *Player) RequestLoad(path string) {
	for {
		select {
		case p.loadReq <- path:
			return
		default:
			select {
			case <-p.loadReq:
			default:
			}
		}
	}
}

// Run drives Tick until the context is cancelled or the backend reports
// its surface closed. Paused, still, or empty sessions idle between event
// pumps instead of spinning. A failed hot-reload leaves the session empty
// and keeps the loop alive for the next request.
func (p *Player) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-p.loadReq:
			if err := p.Load(path); err != nil {
				p.log.Warn("reload failed, session idle", "path", path, "error", err)
			}
		default:
		}

		if err := p.backend.Pump(); err != nil {
			if errors.Is(err, display.ErrClosed) {
				return nil
			}
			return err
		}

		idle := p.kind.Still() || !p.state.Playing()
		if err := p.Tick(); err != nil {
			if !errors.Is(err, ErrNoMedia) {
				return err
			}
			idle = true
		}

		if idle {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case path := <-p.loadReq:
				if err := p.Load(path); err != nil {
					p.log.Warn("reload failed, session idle", "path", path, "error", err)
				}
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
}

// Close tears the session down: the audio unit is signalled and joined
// first, then the decoder's shared resources are released.
func (p *Player) Close() {
	p.stopAudio()
	p.source.Close()
	p.kind = media.KindUnknown
}

func (p *Player) stopAudio() {
	if p.audioPipe != nil {
		p.audioPipe.Close()
		p.audioPipe = nil
	}
}
