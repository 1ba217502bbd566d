// Package display defines the capability interface the player drives a
// display backend through, and provides the SDL2 window backend. Backends
// own surface creation and presentation timing; the player only hands them
// composed-ready pixel buffers.
package display

import (
	"errors"

	"github.com/vidwall/vidwall/media"
)

// ErrClosed is returned by Pump when the backend's surface has been closed
// by the user (window close, quit request) and playback should end.
var ErrClosed = errors.New("display: surface closed")

// Backend is the capability interface a display implementation provides.
// The distinction between PresentFrame and PresentImage lets backends
// choose different upload paths for continuously changing video versus a
// static picture; the player selects the right call once per load, by
// media kind, never by inspecting the backend's concrete type.
type Backend interface {
	// SurfaceSize returns the current destination surface dimensions.
	SurfaceSize() (w, h int)

	// Convention names the surface's vertical origin so compositing can
	// flip explicitly instead of guessing from the backend identity.
	Convention() media.CoordConvention

	// PresentFrame composes and presents one video frame.
	PresentFrame(pix []byte, w, h int, mode media.ScalingMode) error

	// PresentImage composes and presents a static image.
	PresentImage(pix []byte, w, h int, mode media.ScalingMode) error

	// Pump processes backend events; returns ErrClosed once the surface
	// is gone.
	Pump() error

	// Close releases the surface and backend resources.
	Close() error
}
