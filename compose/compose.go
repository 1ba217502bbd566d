// Package compose maps a decoded RGBA frame into a destination surface
// under a scaling policy. It is the single scaling/orientation
// implementation shared by every display backend: pure nearest-neighbor
// geometry with no backend-specific state.
package compose

import (
	"errors"

	"github.com/vidwall/vidwall/media"
)

const bytesPerPixel = 4

var (
	// ErrNilSource is returned when the source pixel buffer is nil or
	// smaller than its declared dimensions.
	ErrNilSource = errors.New("compose: nil or undersized source buffer")
	// ErrEmptyDestination is returned for a zero-sized destination.
	ErrEmptyDestination = errors.New("compose: zero-sized destination")
)

// Placement is where the scaled source lands on the destination surface.
// Under ScaleFill the offsets may be negative: the render size covers the
// whole destination and the overhang is cropped at copy time.
type Placement struct {
	X, Y int
	W, H int
}

// Plan computes the placement for a source of srcW x srcH on a destination
// of dstW x dstH under the given mode. It performs no pixel work.
func Plan(srcW, srcH, dstW, dstH int, mode media.ScalingMode) Placement {
	switch mode {
	case media.ScaleStretch:
		return Placement{0, 0, dstW, dstH}

	case media.ScaleFill:
		srcAspect := float64(srcW) / float64(srcH)
		dstAspect := float64(dstW) / float64(dstH)
		if srcAspect > dstAspect {
			// Source wider: height matches, width overhangs horizontally.
			w := int(float64(dstH) * srcAspect)
			return Placement{(dstW - w) / 2, 0, w, dstH}
		}
		h := int(float64(dstW) / srcAspect)
		return Placement{0, (dstH - h) / 2, dstW, h}

	default: // ScaleFit and ScaleDefault
		srcAspect := float64(srcW) / float64(srcH)
		dstAspect := float64(dstW) / float64(dstH)
		if srcAspect > dstAspect {
			h := int(float64(dstW) / srcAspect)
			return Placement{0, (dstH - h) / 2, dstW, h}
		}
		w := int(float64(dstH) * srcAspect)
		return Placement{(dstW - w) / 2, 0, w, dstH}
	}
}

// Compositor renders source frames into a persistent destination buffer,
// resized only when the destination dimensions change.
type Compositor struct {
	buf  []byte
	bufW int
	bufH int
}

// Compose scales src (RGBA, srcW x srcH, top-down rows) into a dstW x dstH
// RGBA buffer under mode. conv names the destination's vertical origin;
// OriginBottomLeft inverts the vertical sampling axis. Letterbox pixels are
// zeroed; destination pixels outside the surface (possible under Fill's
// negative offsets) are skipped.
//
// The returned buffer is owned by the Compositor and valid until the next
// Compose call.
func (c *Compositor) Compose(src []byte, srcW, srcH, dstW, dstH int, mode media.ScalingMode, conv media.CoordConvention) (Placement, []byte, error) {
	if src == nil || srcW <= 0 || srcH <= 0 || len(src) < srcW*srcH*bytesPerPixel {
		return Placement{}, nil, ErrNilSource
	}
	if dstW <= 0 || dstH <= 0 {
		return Placement{}, nil, ErrEmptyDestination
	}

	n := dstW * dstH * bytesPerPixel
	if c.bufW != dstW || c.bufH != dstH || len(c.buf) != n {
		c.buf = make([]byte, n)
		c.bufW, c.bufH = dstW, dstH
	} else {
		clear(c.buf)
	}

	pl := Plan(srcW, srcH, dstW, dstH, mode)

	// Clip the placement against the destination; only the visible region
	// is rasterized.
	y0, y1 := max(pl.Y, 0), min(pl.Y+pl.H, dstH)
	x0, x1 := max(pl.X, 0), min(pl.X+pl.W, dstW)

	flip := conv == media.OriginBottomLeft

	for y := y0; y < y1; y++ {
		// Position within the placement, then integer-ratio map to source.
		py := y - pl.Y
		if flip {
			py = pl.H - 1 - py
		}
		sy := clampCoord(py*srcH/pl.H, srcH)
		srcRow := sy * srcW * bytesPerPixel
		dstRow := y * dstW * bytesPerPixel

		for x := x0; x < x1; x++ {
			sx := clampCoord((x-pl.X)*srcW/pl.W, srcW)
			si := srcRow + sx*bytesPerPixel
			di := dstRow + x*bytesPerPixel
			copy(c.buf[di:di+bytesPerPixel], src[si:si+bytesPerPixel])
		}
	}

	return pl, c.buf, nil
}

// clampCoord clamps a computed source coordinate into [0, dim-1] to
// tolerate integer-division rounding at the edges.
func clampCoord(v, dim int) int {
	if v < 0 {
		return 0
	}
	if v >= dim {
		return dim - 1
	}
	return v
}
