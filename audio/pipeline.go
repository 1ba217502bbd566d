package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/vidwall/vidwall/media"
)

// idleRecheck bounds how long the pipeline sleeps while paused or muted
// before re-reading the shared state, even if a change notification was
// missed.
const idleRecheck = 500 * time.Millisecond

// maxWriteErrLogs caps how many sink write failures are reported per
// session; after that they are swallowed silently.
const maxWriteErrLogs = 5

// Pipeline decodes and plays the audio stream of one media session on its
// own goroutine. It opens a separate demux/decode context against the same
// path as the video decoder, so the two paths share no mutable FFmpeg
// state and never contend on a lock.
//
// Stopping playback only idles the loop; Close terminates and joins it,
// and must complete before shared session resources are torn down.
type Pipeline struct {
	log      *slog.Logger
	path     string
	state    *media.PlaybackState
	sink     Sink
	monitor  ActivityMonitor
	autoMute bool

	stop chan struct{}
	done chan struct{}

	pcmBuf       []byte
	writeErrs    int
	lastVolume   int
	lastMuted    bool
	sinkSettings bool // true once volume/mute have been pushed to the sink
}

// Start launches the audio pipeline for path. The sink is opened from the
// pipeline goroutine once the stream format is known; any failure there
// disables audio for the session (logged, not fatal). If log is nil,
// slog.Default() is used.
func Start(path string, state *media.PlaybackState, sink Sink, monitor ActivityMonitor, autoMute bool, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if monitor == nil {
		monitor = NopMonitor{}
	}
	p := &Pipeline{
		log:      log.With("component", "audio"),
		path:     path,
		state:    state,
		sink:     sink,
		monitor:  monitor,
		autoMute: autoMute,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Close signals the loop to exit and blocks until it has: after Close
// returns, the pipeline holds no decode resources.
func (p *Pipeline) Close() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
	<-p.done
}

func (p *Pipeline) run() {
	defer close(p.done)

	s, err := p.openStream()
	if err != nil {
		// Degraded mode: video continues without sound.
		p.log.Warn("audio disabled for session", "error", err)
		return
	}
	defer s.close()

	if err := p.sink.Open(s.sampleRate, s.channels); err != nil {
		p.log.Warn("audio sink unavailable, audio disabled", "error", err)
		return
	}
	defer func() { _ = p.sink.Close() }()

	p.log.Info("audio session started",
		"rate", s.sampleRate,
		"channels", s.channels,
		"format", s.ctx.SampleFormat().Name(),
	)

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if !p.audible() {
			// Idle without decoding: wait for a state transition, bounded
			// so a missed signal can never park the loop forever.
			select {
			case <-p.stop:
				return
			case <-p.state.Changed():
			case <-time.After(idleRecheck):
			}
			continue
		}

		if err := p.pump(s); err != nil {
			p.log.Warn("audio loop ended", "error", err)
			return
		}
	}
}

// audible applies current state to the sink and reports whether decoding
// should proceed this iteration.
func (p *Pipeline) audible() bool {
	playing, muted, volume := p.state.Snapshot()

	if p.autoMute && p.monitor.OtherPlaybackActive() {
		muted = true
	}

	if !p.sinkSettings || volume != p.lastVolume || muted != p.lastMuted {
		p.sink.SetVolume(volume)
		p.sink.SetMuted(muted)
		p.lastVolume, p.lastMuted, p.sinkSettings = volume, muted, true
	}

	return playing && !muted
}

// pump reads one packet, decoding and forwarding it if it belongs to the
// audio stream. End-of-stream rewinds for loop playback.
func (p *Pipeline) pump(s *audioStream) error {
	if err := s.fc.ReadFrame(s.pkt); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			if err := s.fc.SeekFrame(s.index, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
				return fmt.Errorf("rewinding audio stream: %w", err)
			}
			return nil
		}
		return fmt.Errorf("reading packet: %w", err)
	}
	defer s.pkt.Unref()

	if s.pkt.StreamIndex() != s.index {
		return nil
	}

	if err := s.ctx.SendPacket(s.pkt); err != nil {
		// Skip the corrupt packet; steady-state decode errors are
		// recoverable.
		return nil
	}

	for {
		if err := s.ctx.ReceiveFrame(s.frame); err != nil {
			return nil // EAGAIN or EOF: done with this packet
		}
		p.playFrame(s)
		s.frame.Unref()
	}
}

// playFrame converts the decoded frame to canonical PCM and writes it to
// the sink. Write failures degrade silently after a few logged warnings.
func (p *Pipeline) playFrame(s *audioStream) {
	data, err := s.frame.Data().Bytes(0)
	if err != nil || len(data) == 0 {
		return
	}

	samples := s.frame.NbSamples()
	channels := s.frame.ChannelLayout().Channels()
	layout := layoutFor(s.frame.SampleFormat())

	p.pcmBuf = ConvertToS16LE(layout, data, samples, channels, p.pcmBuf)
	if len(p.pcmBuf) == 0 {
		return
	}

	if err := p.sink.Write(p.pcmBuf); err != nil {
		if p.writeErrs < maxWriteErrLogs {
			p.writeErrs++
			p.log.Warn("audio sink write failed", "error", err, "reported", p.writeErrs)
		}
	}
}

// layoutFor maps FFmpeg sample formats onto the conversion layouts. Every
// unhandled format plays as silence.
func layoutFor(f astiav.SampleFormat) SampleLayout {
	switch f {
	case astiav.SampleFormatS16:
		return LayoutS16Interleaved
	case astiav.SampleFormatFltp:
		return LayoutFloatPlanar
	case astiav.SampleFormatS16P:
		return LayoutS16Planar
	default:
		return LayoutOther
	}
}

// audioStream bundles the pipeline's private FFmpeg state.
type audioStream struct {
	fc         *astiav.FormatContext
	ctx        *astiav.CodecContext
	frame      *astiav.Frame
	pkt        *astiav.Packet
	index      int
	sampleRate int
	channels   int
}

// openStream opens a fresh demux context for the path and prepares the
// first audio stream's decoder.
func (p *Pipeline) openStream() (*audioStream, error) {
	s := &audioStream{index: -1}

	s.fc = astiav.AllocFormatContext()
	if s.fc == nil {
		return nil, errors.New("allocating format context")
	}
	if err := s.fc.OpenInput(p.path, nil, nil); err != nil {
		s.fc.Free()
		return nil, fmt.Errorf("opening input: %w", err)
	}
	if err := s.fc.FindStreamInfo(nil); err != nil {
		s.close()
		return nil, fmt.Errorf("finding stream info: %w", err)
	}

	var stream *astiav.Stream
	for _, st := range s.fc.Streams() {
		if st.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			stream = st
			s.index = st.Index()
			break
		}
	}
	if stream == nil {
		s.close()
		return nil, errors.New("no audio stream")
	}

	par := stream.CodecParameters()
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		s.close()
		return nil, fmt.Errorf("no decoder for codec id %v", par.CodecID())
	}
	s.ctx = astiav.AllocCodecContext(codec)
	if s.ctx == nil {
		s.close()
		return nil, errors.New("allocating codec context")
	}
	if err := par.ToCodecContext(s.ctx); err != nil {
		s.close()
		return nil, fmt.Errorf("copying codec parameters: %w", err)
	}
	if err := s.ctx.Open(codec, nil); err != nil {
		s.close()
		return nil, fmt.Errorf("opening audio codec: %w", err)
	}

	s.sampleRate = s.ctx.SampleRate()
	s.channels = s.ctx.ChannelLayout().Channels()
	if s.sampleRate <= 0 || s.channels <= 0 {
		s.close()
		return nil, fmt.Errorf("unusable audio format: %dHz/%dch", s.sampleRate, s.channels)
	}

	s.frame = astiav.AllocFrame()
	s.pkt = astiav.AllocPacket()
	return s, nil
}

func (s *audioStream) close() {
	if s.pkt != nil {
		s.pkt.Free()
		s.pkt = nil
	}
	if s.frame != nil {
		s.frame.Free()
		s.frame = nil
	}
	if s.ctx != nil {
		s.ctx.Free()
		s.ctx = nil
	}
	if s.fc != nil {
		s.fc.CloseInput()
		s.fc.Free()
		s.fc = nil
	}
}
