// Package pace implements the playback clock and frame pacer. It decides
// when a decoded frame may be shown, decoupling the display cadence from
// the source's native frame rate.
//
// Two strategies apply, selected by comparing the requested display rate to
// the native rate:
//
//   - Native-rate mode (target >= native, or no target): the decode call is
//     wall-clock-gated against each frame's PTS, producing real-time
//     playback with no frame dropping.
//   - Rate-limited mode (target < native): decoding runs at native speed to
//     keep codec state advancing, and an independent monotonic-clock gate
//     (ShouldDisplay) admits frames at the target rate; the rest are
//     decoded and discarded.
package pace

import "time"

// maxFrameWait caps the native-mode sleep so a bad PTS can never stall the
// render loop for more than one bounded interval.
const maxFrameWait = 100 * time.Millisecond

// DefaultFrameRate is assumed when the source declares no usable rate.
const DefaultFrameRate = 30.0

// UseNativeRate is the sentinel target meaning "display at the source's
// native frame rate". Any non-positive target behaves the same.
const UseNativeRate = -1.0

// Pacer tracks the playback clock for one media session. It is used from a
// single goroutine (the render loop) and is not safe for concurrent use.
type Pacer struct {
	nativeFPS float64
	targetFPS float64

	started bool
	start   time.Time // wall-clock anchor: PTS 0 maps here
	lastPTS float64

	displayArmed bool
	lastDisplay  time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a pacer with the native rate set to nativeFPS (non-positive
// values fall back to DefaultFrameRate) and no display-rate limit.
func New(nativeFPS float64) *Pacer {
	p := &Pacer{
		targetFPS: UseNativeRate,
		now:       time.Now,
		sleep:     time.Sleep,
	}
	p.SetNativeRate(nativeFPS)
	return p
}

// SetNativeRate updates the source's native frame rate, normally after a
// load. Non-positive values fall back to DefaultFrameRate.
func (p *Pacer) SetNativeRate(fps float64) {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	p.nativeFPS = fps
}

// SetTargetRate sets the requested display rate. Non-positive means "use
// the native rate".
func (p *Pacer) SetTargetRate(fps float64) {
	if fps <= 0 {
		fps = UseNativeRate
	}
	p.targetFPS = fps
}

// NativeRate returns the current native frame rate.
func (p *Pacer) NativeRate() float64 { return p.nativeFPS }

// FrameDuration returns the native frame interval.
func (p *Pacer) FrameDuration() time.Duration {
	return time.Duration(float64(time.Second) / p.nativeFPS)
}

// RateLimited reports whether the independent display gate governs
// presentation (target rate set below the native rate).
func (p *Pacer) RateLimited() bool {
	return p.targetFPS > 0 && p.targetFPS < p.nativeFPS
}

// Pace applies native-mode wall-clock gating for the frame with the given
// PTS (seconds). The first frame anchors the playback clock; a PTS
// regression (stream looped back to its start) re-anchors it so the next
// expected time is not computed against the previous pass. In rate-limited
// mode Pace only maintains the clock and never sleeps.
func (p *Pacer) Pace(pts float64) {
	now := p.now()

	if !p.started || pts < p.lastPTS {
		p.started = true
		p.start = now.Add(-time.Duration(pts * float64(time.Second)))
		p.lastPTS = pts
		return
	}
	p.lastPTS = pts

	if p.RateLimited() {
		return
	}

	expected := p.start.Add(time.Duration(pts * float64(time.Second)))
	if wait := expected.Sub(now); wait > 0 {
		p.sleep(min(wait, maxFrameWait))
	}
}

// ShouldDisplay is the rate-limited display gate: it returns true, and
// records the display time, only when at least one target frame interval
// has elapsed on the monotonic clock since the last admitted frame. The
// first call always admits.
func (p *Pacer) ShouldDisplay() bool {
	now := p.now()

	if !p.displayArmed {
		p.displayArmed = true
		p.lastDisplay = now
		return true
	}

	interval := time.Duration(float64(time.Second) / p.targetFPS)
	if p.targetFPS <= 0 {
		interval = time.Duration(float64(time.Second) / p.nativeFPS)
	}
	if now.Sub(p.lastDisplay) >= interval {
		p.lastDisplay = now
		return true
	}
	return false
}

// Reset clears the playback anchors, forcing the next Pace call to
// re-anchor. Used when a new source is loaded or playback restarts.
func (p *Pacer) Reset() {
	p.started = false
	p.displayArmed = false
	p.lastPTS = 0
}
