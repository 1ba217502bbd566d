package audio

import (
	"testing"
	"time"

	"github.com/vidwall/vidwall/media"
)

// stubSink records gain changes and writes.
type stubSink struct {
	volume int
	muted  bool
	writes int
	opened bool
}

func (s *stubSink) Open(rate, channels int) error { s.opened = true; return nil }
func (s *stubSink) Write(pcm []byte) error        { s.writes++; return nil }
func (s *stubSink) SetVolume(v int)               { s.volume = v }
func (s *stubSink) SetMuted(m bool)               { s.muted = m }
func (s *stubSink) Close() error                  { return nil }

type stubMonitor struct{ active bool }

func (m stubMonitor) OtherPlaybackActive() bool { return m.active }

func newTestPipeline(state *media.PlaybackState, sink Sink, monitor ActivityMonitor, autoMute bool) *Pipeline {
	if monitor == nil {
		monitor = NopMonitor{}
	}
	return &Pipeline{
		state:    state,
		sink:     sink,
		monitor:  monitor,
		autoMute: autoMute,
	}
}

func TestAudibleGatesOnPlayAndMute(t *testing.T) {
	t.Parallel()

	state := media.NewPlaybackState(80, false)
	sink := &stubSink{}
	p := newTestPipeline(state, sink, nil, false)

	if p.audible() {
		t.Error("stopped session should not be audible")
	}

	state.SetPlaying(true)
	if !p.audible() {
		t.Error("playing unmuted session should be audible")
	}

	state.SetMuted(true)
	if p.audible() {
		t.Error("muted session should not be audible regardless of volume")
	}

	state.SetMuted(false)
	state.SetPlaying(false)
	if p.audible() {
		t.Error("paused session should not be audible")
	}
}

func TestAudibleAppliesStateAtSinkBoundary(t *testing.T) {
	t.Parallel()

	state := media.NewPlaybackState(80, false)
	state.SetPlaying(true)
	sink := &stubSink{}
	p := newTestPipeline(state, sink, nil, false)

	p.audible()
	if sink.volume != 80 || sink.muted {
		t.Errorf("sink state: got volume=%d muted=%v, want 80/false", sink.volume, sink.muted)
	}

	state.SetVolume(25)
	state.SetMuted(true)
	p.audible()
	if sink.volume != 25 || !sink.muted {
		t.Errorf("sink state after change: got volume=%d muted=%v, want 25/true", sink.volume, sink.muted)
	}
}

func TestAudibleAutoMute(t *testing.T) {
	t.Parallel()

	state := media.NewPlaybackState(100, false)
	state.SetPlaying(true)
	sink := &stubSink{}

	// Another application is playing and auto-mute is on: behave as muted.
	p := newTestPipeline(state, sink, stubMonitor{active: true}, true)
	if p.audible() {
		t.Error("auto-mute with foreign playback should silence the session")
	}
	if !sink.muted {
		t.Error("auto-mute should be applied at the sink")
	}

	// Same monitor, feature disabled: plays normally.
	sink2 := &stubSink{}
	p2 := newTestPipeline(state, sink2, stubMonitor{active: true}, false)
	if !p2.audible() {
		t.Error("disabled auto-mute should not silence the session")
	}
}

func TestStartWithUnreadableSourceDegrades(t *testing.T) {
	t.Parallel()

	state := media.NewPlaybackState(100, false)
	sink := &stubSink{}

	// The pipeline must come up, fail to open the source, and terminate
	// cleanly without ever opening the sink; video would keep playing.
	p := Start("/nonexistent/media.mp4", state, sink, nil, false, nil)

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not terminate after open failure")
	}
	p.Close() // must not hang or panic after self-termination

	if sink.opened {
		t.Error("sink should not open when the audio stream cannot")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	state := media.NewPlaybackState(100, false)
	p := Start("/nonexistent/media.mp4", state, &stubSink{}, nil, false, nil)
	p.Close()
	p.Close()
}
