// Package decode turns a media file into a sequence of RGBA pixel buffers.
// It demultiplexes the container with FFmpeg (via go-astiav), decodes the
// first video stream, and converts every picture to the canonical
// 4-byte-per-pixel RGBA layout through a software scale context.
//
// Still images and animated images are treated as single-frame videos: one
// frame is decoded at load time and served from cache afterwards. Videos
// loop forever; end-of-stream seeks back to the start and decoding
// continues, so NextFrame has no terminal state for a video session.
package decode

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/asticode/go-astiav"

	"github.com/vidwall/vidwall/media"
)

// Load-time failures. Each maps to one entry of the error taxonomy the
// caller switches on; all abandon the session for that source.
var (
	ErrNotFound          = errors.New("decode: media file not found")
	ErrUnsupportedFormat = errors.New("decode: unsupported media format")
	ErrNoVideoStream     = errors.New("decode: no video stream")
	ErrCodecOpen         = errors.New("decode: codec open failed")
	ErrNoSession         = errors.New("decode: no media loaded")
)

// Decoder owns the demux and video decode state for one loaded source.
// Load fully replaces that state; it is never updated incrementally. Not
// safe for concurrent use: the render loop is the only caller.
type Decoder struct {
	log *slog.Logger

	path string
	kind media.Kind

	fc       *astiav.FormatContext
	vctx     *astiav.CodecContext
	videoIdx int
	audioIdx int

	timeBase  astiav.Rational
	frameRate float64

	sws      *astiav.SoftwareScaleContext
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame
	pkt      *astiav.Packet

	width  int
	height int

	// One persistent RGBA buffer per decode session, sized at load.
	buf []byte

	// For stills: the frame decoded at load time, returned by every
	// NextFrame call without touching the codec again.
	cached *media.DecodedFrame

	frameIndex int64
}

// New returns a Decoder with no media loaded. If log is nil,
// slog.Default() is used.
func New(log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{
		log:      log.With("component", "decoder"),
		videoIdx: -1,
		audioIdx: -1,
	}
}

// Load opens path and prepares a decode session for it, unconditionally
// discarding any previous session first. The returned kind tells the
// caller whether to drive the video path or present a cached still.
func (d *Decoder) Load(path string) (media.Kind, error) {
	d.Close()

	kind := media.DetectKind(path)
	if kind == media.KindUnknown {
		return media.KindUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if _, err := os.Stat(path); err != nil {
		return media.KindUnknown, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	d.path = path
	d.kind = kind

	if err := d.openSession(); err != nil {
		d.Close()
		return media.KindUnknown, err
	}

	d.log.Info("media loaded",
		"path", path,
		"kind", kind.String(),
		"size", fmt.Sprintf("%dx%d", d.width, d.height),
		"fps", d.frameRate,
		"audio", d.audioIdx >= 0,
	)

	if kind.Still() {
		frame, err := d.decodeNext()
		if err != nil {
			d.Close()
			return media.KindUnknown, fmt.Errorf("decoding still frame: %w", err)
		}
		pix := make([]byte, len(frame.Pix))
		copy(pix, frame.Pix)
		d.cached = &media.DecodedFrame{Pix: pix, Width: frame.Width, Height: frame.Height}
		// The still is cached; the demux/codec state is no longer needed.
		d.closeSession()
	}

	return kind, nil
}

// openSession opens the format context, selects the first video and audio
// streams, opens the video codec, and sets up the RGBA conversion.
func (d *Decoder) openSession() error {
	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return errors.New("decode: allocating format context")
	}
	if err := d.fc.OpenInput(d.path, nil, nil); err != nil {
		d.fc.Free()
		d.fc = nil
		return fmt.Errorf("%w: opening input: %v", ErrCodecOpen, err)
	}
	if err := d.fc.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("%w: finding stream info: %v", ErrCodecOpen, err)
	}

	// First video stream and first audio stream win; the rest are ignored.
	var vstream *astiav.Stream
	for _, s := range d.fc.Streams() {
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if d.videoIdx < 0 {
				d.videoIdx = s.Index()
				vstream = s
			}
		case astiav.MediaTypeAudio:
			if d.audioIdx < 0 {
				d.audioIdx = s.Index()
			}
		}
	}
	if vstream == nil {
		return fmt.Errorf("%w: %s", ErrNoVideoStream, d.path)
	}

	par := vstream.CodecParameters()
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		return fmt.Errorf("%w: no decoder for codec id %v", ErrCodecOpen, par.CodecID())
	}
	d.vctx = astiav.AllocCodecContext(codec)
	if d.vctx == nil {
		return fmt.Errorf("%w: allocating codec context", ErrCodecOpen)
	}
	if err := par.ToCodecContext(d.vctx); err != nil {
		return fmt.Errorf("%w: copying codec parameters: %v", ErrCodecOpen, err)
	}
	if err := d.vctx.Open(codec, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrCodecOpen, err)
	}

	d.timeBase = vstream.TimeBase()
	d.frameRate = detectFrameRate(vstream, d.vctx)
	d.width = d.vctx.Width()
	d.height = d.vctx.Height()
	if d.width <= 0 || d.height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrCodecOpen, d.width, d.height)
	}

	sws, err := astiav.CreateSoftwareScaleContext(
		d.width, d.height, d.vctx.PixelFormat(),
		d.width, d.height, astiav.PixelFormatRgba,
		astiav.NewSoftwareScaleContextFlags(),
	)
	if err != nil {
		return fmt.Errorf("%w: creating scale context: %v", ErrCodecOpen, err)
	}
	d.sws = sws

	d.dstFrame = astiav.AllocFrame()
	d.dstFrame.SetWidth(d.width)
	d.dstFrame.SetHeight(d.height)
	d.dstFrame.SetPixelFormat(astiav.PixelFormatRgba)
	if err := d.dstFrame.AllocBuffer(1); err != nil {
		return fmt.Errorf("%w: allocating RGBA frame: %v", ErrCodecOpen, err)
	}

	d.srcFrame = astiav.AllocFrame()
	d.pkt = astiav.AllocPacket()
	d.buf = make([]byte, d.width*d.height*4)
	d.frameIndex = 0

	return nil
}

// detectFrameRate derives the native rate from the stream's declared
// average rate, falling back to the codec context's rate, then to
// DefaultFrameRate when neither is usable.
func detectFrameRate(s *astiav.Stream, ctx *astiav.CodecContext) float64 {
	if r := s.AvgFrameRate(); r.Num() > 0 && r.Den() > 0 {
		return float64(r.Num()) / float64(r.Den())
	}
	if r := ctx.Framerate(); r.Num() > 0 && r.Den() > 0 {
		return float64(r.Num()) / float64(r.Den())
	}
	return 30.0
}

// NextFrame returns the next decoded frame. For stills it returns the
// cached frame; for video it demultiplexes until the next picture of the
// selected video stream decodes, looping back to the start of the stream
// on end-of-file. The returned pixel buffer is reused by the next call.
func (d *Decoder) NextFrame() (media.DecodedFrame, error) {
	if d.cached != nil {
		return *d.cached, nil
	}
	if d.fc == nil {
		return media.DecodedFrame{}, ErrNoSession
	}
	return d.decodeNext()
}

func (d *Decoder) decodeNext() (media.DecodedFrame, error) {
	for {
		// Drain decoded output before feeding more input: one packet can
		// yield several frames and the codec buffers them internally.
		err := d.vctx.ReceiveFrame(d.srcFrame)
		if err == nil {
			frame, cerr := d.convertFrame()
			d.srcFrame.Unref()
			if cerr != nil {
				return media.DecodedFrame{}, cerr
			}
			return frame, nil
		}
		if !errors.Is(err, astiav.ErrEagain) && !errors.Is(err, astiav.ErrEof) {
			d.log.Debug("dropping frame on decode error", "error", err)
		}

		if err := d.fc.ReadFrame(d.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				if err := d.rewind(); err != nil {
					return media.DecodedFrame{}, err
				}
				continue
			}
			return media.DecodedFrame{}, fmt.Errorf("decode: reading packet: %w", err)
		}

		if d.pkt.StreamIndex() != d.videoIdx {
			d.pkt.Unref()
			continue
		}

		err = d.vctx.SendPacket(d.pkt)
		d.pkt.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			// The codec was drained above, so this is not backpressure:
			// the packet is corrupt. Skip it and keep the stream advancing.
			d.log.Debug("dropping undecodable packet", "error", err)
		}
	}
}

// convertFrame scales the decoded picture into the persistent RGBA buffer
// and stamps it with a PTS in seconds.
func (d *Decoder) convertFrame() (media.DecodedFrame, error) {
	if err := d.sws.ScaleFrame(d.srcFrame, d.dstFrame); err != nil {
		return media.DecodedFrame{}, fmt.Errorf("decode: converting to RGBA: %w", err)
	}
	if _, err := d.dstFrame.ImageCopyToBuffer(d.buf, 1); err != nil {
		return media.DecodedFrame{}, fmt.Errorf("decode: copying RGBA frame: %w", err)
	}

	pts := d.srcFrame.Pts()
	var seconds float64
	if pts == astiav.NoPtsValue || pts < 0 {
		// No timestamp: synthesize from the frame index so PTS stays
		// monotonic within the pass.
		seconds = float64(d.frameIndex) / d.frameRate
	} else {
		seconds = float64(pts) * float64(d.timeBase.Num()) / float64(d.timeBase.Den())
	}
	d.frameIndex++

	return media.DecodedFrame{
		Pix:    d.buf,
		Width:  d.width,
		Height: d.height,
		PTS:    seconds,
	}, nil
}

// rewind seeks the stream back to its beginning for loop playback.
func (d *Decoder) rewind() error {
	if err := d.fc.SeekFrame(d.videoIdx, 0, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("decode: seeking to start: %w", err)
	}
	d.frameIndex = 0
	d.log.Debug("stream looped", "path", d.path)
	return nil
}

// Kind returns the loaded media kind, KindUnknown when nothing is loaded.
func (d *Decoder) Kind() media.Kind { return d.kind }

// Path returns the loaded media path.
func (d *Decoder) Path() string { return d.path }

// HasAudio reports whether the loaded source carries an audio stream.
// Absence of audio is not an error: audio is simply disabled.
func (d *Decoder) HasAudio() bool { return d.audioIdx >= 0 }

// Size returns the source dimensions in pixels.
func (d *Decoder) Size() (int, int) {
	if d.cached != nil {
		return d.cached.Width, d.cached.Height
	}
	return d.width, d.height
}

// NativeFrameRate returns the detected native frame rate of the source.
func (d *Decoder) NativeFrameRate() float64 { return d.frameRate }

// Close releases all decode resources. The decoder can be reused with a
// subsequent Load.
func (d *Decoder) Close() {
	d.closeSession()
	d.cached = nil
	d.path = ""
	d.kind = media.KindUnknown
	d.audioIdx = -1
}

// closeSession frees the FFmpeg state but keeps load-derived metadata so a
// cached still session stays queryable.
func (d *Decoder) closeSession() {
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.srcFrame != nil {
		d.srcFrame.Free()
		d.srcFrame = nil
	}
	if d.dstFrame != nil {
		d.dstFrame.Free()
		d.dstFrame = nil
	}
	if d.sws != nil {
		d.sws.Free()
		d.sws = nil
	}
	if d.vctx != nil {
		d.vctx.Free()
		d.vctx = nil
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
		d.fc = nil
	}
	d.videoIdx = -1
	d.buf = nil
}
