// Package audio implements the audio half of a playback session: an
// independent decode loop that demultiplexes the source's audio stream,
// converts samples to canonical interleaved signed 16-bit little-endian
// PCM, and writes them to a Sink honoring the shared play/mute/volume
// state.
package audio

import (
	"encoding/binary"
	"math"
)

// SampleLayout tags the decoded sample format for conversion. Only the
// layouts the pipeline can convert are named; everything else maps to
// LayoutOther and produces silence instead of failing playback.
type SampleLayout int

const (
	LayoutS16Interleaved SampleLayout = iota
	LayoutFloatPlanar
	LayoutS16Planar
	LayoutOther
)

const bytesPerSample = 2 // canonical output: signed 16-bit

// ConvertToS16LE converts one decoded audio frame to interleaved signed
// 16-bit little-endian PCM. data is the frame's raw sample buffer with
// planar formats stored as equally sized planes back to back. dst is
// reused when large enough; the returned slice is sized exactly
// samples*channels*2 bytes.
//
// Unknown layouts yield a zeroed buffer of the right size: silence is
// preferable to terminating the pipeline mid-session.
func ConvertToS16LE(layout SampleLayout, data []byte, samples, channels int, dst []byte) []byte {
	n := samples * channels * bytesPerSample
	if n <= 0 {
		return dst[:0]
	}
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]

	switch layout {
	case LayoutS16Interleaved:
		// Already canonical; the frame buffer may carry padding past the
		// payload, so copy only what the sample count declares.
		m := copy(dst, data[:min(len(data), n)])
		zero(dst[m:])

	case LayoutFloatPlanar:
		convertFloatPlanar(dst, data, samples, channels)

	case LayoutS16Planar:
		convertS16Planar(dst, data, samples, channels)

	default:
		zero(dst)
	}

	return dst
}

// convertFloatPlanar interleaves planar 32-bit float samples, clamping to
// [-1, 1] and scaling by 32767.
func convertFloatPlanar(dst, data []byte, samples, channels int) {
	stride := planeStride(data, channels)
	for ch := 0; ch < channels; ch++ {
		plane := data[ch*stride:]
		for i := 0; i < samples; i++ {
			var v float32
			if off := i * 4; off+4 <= len(plane) {
				v = math.Float32frombits(binary.LittleEndian.Uint32(plane[off:]))
			}
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			s := int16(v * 32767)
			binary.LittleEndian.PutUint16(dst[(i*channels+ch)*bytesPerSample:], uint16(s))
		}
	}
}

// convertS16Planar interleaves planar 16-bit samples without rescaling.
func convertS16Planar(dst, data []byte, samples, channels int) {
	stride := planeStride(data, channels)
	for ch := 0; ch < channels; ch++ {
		plane := data[ch*stride:]
		for i := 0; i < samples; i++ {
			var s uint16
			if off := i * 2; off+2 <= len(plane) {
				s = binary.LittleEndian.Uint16(plane[off:])
			}
			binary.LittleEndian.PutUint16(dst[(i*channels+ch)*bytesPerSample:], s)
		}
	}
}

// planeStride returns the byte distance between consecutive channel planes
// in a contiguous frame buffer. Planes are equally sized, so the stride is
// the total length split evenly; padding, if any, sits at each plane tail
// and is never read past the declared sample count.
func planeStride(data []byte, channels int) int {
	if channels <= 0 {
		return len(data)
	}
	return len(data) / channels
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
