package pace

import (
	"testing"
	"time"
)

// fakeClock provides deterministic time to a Pacer and records sleeps by
// advancing itself.
type fakeClock struct {
	t      time.Time
	slept  []time.Duration
	pacers []*Pacer
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) install(p *Pacer) {
	p.now = func() time.Time { return c.t }
	p.sleep = func(d time.Duration) {
		c.slept = append(c.slept, d)
		c.t = c.t.Add(d)
	}
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestNewDefaultsNativeRate(t *testing.T) {
	t.Parallel()

	if got := New(0).NativeRate(); got != DefaultFrameRate {
		t.Errorf("NativeRate with 0: got %v, want %v", got, DefaultFrameRate)
	}
	if got := New(-3).NativeRate(); got != DefaultFrameRate {
		t.Errorf("NativeRate with -3: got %v, want %v", got, DefaultFrameRate)
	}
	if got := New(23.976).NativeRate(); got != 23.976 {
		t.Errorf("NativeRate: got %v, want 23.976", got)
	}
}

func TestRateLimitedSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		native, target float64
		want           bool
	}{
		{30, UseNativeRate, false}, // sentinel: use native
		{30, 0, false},
		{30, 30, false}, // equal: native mode
		{30, 60, false}, // above native: native mode
		{30, 15, true},  // below native: limited
		{60, 59, true},
	}

	for _, tt := range tests {
		p := New(tt.native)
		p.SetTargetRate(tt.target)
		if got := p.RateLimited(); got != tt.want {
			t.Errorf("native=%v target=%v: RateLimited got %v, want %v", tt.native, tt.target, got, tt.want)
		}
	}
}

func TestPaceSleepsToFramePTS(t *testing.T) {
	t.Parallel()

	p := New(25)
	c := newFakeClock()
	c.install(p)

	p.Pace(0) // anchors, no sleep
	if len(c.slept) != 0 {
		t.Fatalf("first frame slept %v, want no sleep", c.slept)
	}

	// Next frame is 40ms into the stream but no wall time has passed:
	// the pacer must wait out the difference.
	p.Pace(0.040)
	if len(c.slept) != 1 || c.slept[0] != 40*time.Millisecond {
		t.Fatalf("slept %v, want [40ms]", c.slept)
	}

	// Decoding ran slow: frame PTS already behind wall clock, no sleep.
	c.advance(500 * time.Millisecond)
	p.Pace(0.080)
	if len(c.slept) != 1 {
		t.Errorf("late frame slept %v, want no additional sleep", c.slept[1:])
	}
}

func TestPaceWaitIsBounded(t *testing.T) {
	t.Parallel()

	p := New(30)
	c := newFakeClock()
	c.install(p)

	p.Pace(0)
	// A wild PTS jump must not stall the loop beyond the cap.
	p.Pace(10.0)
	if len(c.slept) != 1 || c.slept[0] != 100*time.Millisecond {
		t.Fatalf("slept %v, want [100ms] (bounded)", c.slept)
	}
}

func TestPaceReanchorsOnLoop(t *testing.T) {
	t.Parallel()

	p := New(25)
	c := newFakeClock()
	c.install(p)

	p.Pace(0)
	c.advance(40 * time.Millisecond)
	p.Pace(0.040)
	c.advance(40 * time.Millisecond)

	// Stream looped: PTS regressed to ~0. Without re-anchoring this would
	// compute an expected time far in the past or future; it must instead
	// reset the anchor and not sleep.
	p.Pace(0)
	if len(c.slept) != 0 {
		t.Fatalf("loop-back frame slept %v, want none", c.slept)
	}

	// And timing continues normally from the new anchor.
	p.Pace(0.040)
	if len(c.slept) != 1 || c.slept[0] != 40*time.Millisecond {
		t.Fatalf("post-loop frame slept %v, want [40ms]", c.slept)
	}
}

func TestPaceNoSleepWhenRateLimited(t *testing.T) {
	t.Parallel()

	p := New(30)
	p.SetTargetRate(10)
	c := newFakeClock()
	c.install(p)

	p.Pace(0)
	p.Pace(0.033)
	p.Pace(0.066)
	if len(c.slept) != 0 {
		t.Fatalf("rate-limited mode slept %v, want none (decode runs free)", c.slept)
	}
}

func TestShouldDisplayAdmitsAtTargetRate(t *testing.T) {
	t.Parallel()

	const targetFPS = 10.0
	const duration = 3 * time.Second
	const step = time.Millisecond

	p := New(30)
	p.SetTargetRate(targetFPS)
	c := newFakeClock()
	c.install(p)

	admitted := 0
	for elapsed := time.Duration(0); elapsed < duration; elapsed += step {
		if p.ShouldDisplay() {
			admitted++
		}
		c.advance(step)
	}

	want := int(duration.Seconds() * targetFPS) // floor(T*f)
	if admitted < want-1 || admitted > want+1 {
		t.Errorf("admitted %d frames over %v at %v fps, want %d +/- 1", admitted, duration, targetFPS, want)
	}
}

func TestShouldDisplayFirstCallAdmits(t *testing.T) {
	t.Parallel()

	p := New(30)
	p.SetTargetRate(5)
	c := newFakeClock()
	c.install(p)

	if !p.ShouldDisplay() {
		t.Fatal("first call should admit")
	}
	if p.ShouldDisplay() {
		t.Fatal("immediate second call should not admit")
	}
	c.advance(200 * time.Millisecond)
	if !p.ShouldDisplay() {
		t.Fatal("call after one interval should admit")
	}
}

func TestResetRearms(t *testing.T) {
	t.Parallel()

	p := New(30)
	p.SetTargetRate(5)
	c := newFakeClock()
	c.install(p)

	p.Pace(0)
	p.ShouldDisplay()
	p.Reset()

	if !p.ShouldDisplay() {
		t.Error("ShouldDisplay after Reset should admit immediately")
	}
	p.Pace(5.0) // far PTS right after reset must anchor, not sleep
	if len(c.slept) != 0 {
		t.Errorf("Pace after Reset slept %v, want none", c.slept)
	}
}
