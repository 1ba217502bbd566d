// Package media defines the core types that flow through the vidwall
// playback pipeline: media classification, decoded frames, scaling policy,
// coordinate conventions, and the playback state shared between the render
// loop and the audio pipeline.
package media

import (
	"path/filepath"
	"strings"
)

// Kind classifies a media source by what the decoder must do with it.
type Kind int

const (
	KindUnknown Kind = iota
	KindImage
	KindAnimatedImage
	KindVideo
)

// String returns a human-readable name for logging.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAnimatedImage:
		return "animated-image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// Still reports whether the kind is decoded once and served from cache.
// Animated images share the still path: the first frame is decoded at load
// time and repeated.
func (k Kind) Still() bool {
	return k == KindImage || k == KindAnimatedImage
}

// DetectKind classifies a path by file extension. Unknown extensions map to
// KindUnknown, which Load rejects as an unsupported format.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp":
		return KindImage
	case ".gif":
		return KindAnimatedImage
	case ".mp4", ".avi", ".mkv", ".mov", ".webm", ".flv":
		return KindVideo
	default:
		return KindUnknown
	}
}

// DecodedFrame is one decoded picture in the canonical RGBA layout
// (4 bytes per pixel, tightly packed, row-major, top-down). The pixel
// buffer is owned by the decoder and reused across calls: it is only valid
// until the next NextFrame call and must not be retained by consumers.
type DecodedFrame struct {
	Pix    []byte
	Width  int
	Height int
	PTS    float64 // presentation timestamp in seconds from stream start
}

// AudioFrame is one block of canonical interleaved signed 16-bit
// little-endian PCM, converted and forwarded to the sink, never persisted.
type AudioFrame struct {
	PCM        []byte
	Channels   int
	SampleRate int
}

// ScalingMode selects how a source buffer is placed into a destination
// surface of a different size.
type ScalingMode int

const (
	// ScaleDefault is an alias for ScaleFit.
	ScaleDefault ScalingMode = iota
	ScaleStretch
	ScaleFit
	ScaleFill
)

func (m ScalingMode) String() string {
	switch m {
	case ScaleStretch:
		return "stretch"
	case ScaleFit:
		return "fit"
	case ScaleFill:
		return "fill"
	default:
		return "default"
	}
}

// ParseScalingMode maps a config string to a ScalingMode. Unrecognized
// names fall back to ScaleDefault.
func ParseScalingMode(s string) ScalingMode {
	switch strings.ToLower(s) {
	case "stretch":
		return ScaleStretch
	case "fit":
		return ScaleFit
	case "fill":
		return ScaleFill
	default:
		return ScaleDefault
	}
}

// CoordConvention names the destination surface's vertical origin. The
// compositor flips its vertical sampling when the destination origin is at
// the bottom, so the decision travels with the call site instead of being
// inferred from which backend is rendering.
type CoordConvention int

const (
	// OriginTopLeft: destination row 0 is the top of the surface. Decoded
	// buffers are top-down, so no flip is required.
	OriginTopLeft CoordConvention = iota
	// OriginBottomLeft: destination row 0 is the bottom of the surface;
	// sampling is vertically inverted.
	OriginBottomLeft
)
