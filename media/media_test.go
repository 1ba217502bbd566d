package media

import (
	"sync"
	"testing"
)

func TestDetectKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Kind
	}{
		{"/wall/sunset.jpg", KindImage},
		{"/wall/sunset.JPEG", KindImage},
		{"photo.png", KindImage},
		{"scan.tiff", KindImage},
		{"icon.webp", KindImage},
		{"old.bmp", KindImage},
		{"loop.gif", KindAnimatedImage},
		{"LOOP.GIF", KindAnimatedImage},
		{"clip.mp4", KindVideo},
		{"clip.mkv", KindVideo},
		{"clip.mov", KindVideo},
		{"clip.webm", KindVideo},
		{"clip.avi", KindVideo},
		{"clip.flv", KindVideo},
		{"notes.txt", KindUnknown},
		{"noext", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		if got := DetectKind(tt.path); got != tt.want {
			t.Errorf("DetectKind(%q): got %v, want %v", tt.path, got, tt.want)
		}
	}
}

// GIF must classify as an animated image, not fall through to unknown.
func TestDetectKindGIFIsAnimated(t *testing.T) {
	t.Parallel()

	got := DetectKind("wall.gif")
	if got != KindAnimatedImage {
		t.Fatalf("DetectKind(wall.gif): got %v, want KindAnimatedImage", got)
	}
	if !got.Still() {
		t.Error("KindAnimatedImage.Still(): got false, want true (decoded once, served from cache)")
	}
}

func TestParseScalingMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ScalingMode
	}{
		{"stretch", ScaleStretch},
		{"fit", ScaleFit},
		{"fill", ScaleFill},
		{"FILL", ScaleFill},
		{"default", ScaleDefault},
		{"", ScaleDefault},
		{"bogus", ScaleDefault},
	}

	for _, tt := range tests {
		if got := ParseScalingMode(tt.in); got != tt.want {
			t.Errorf("ParseScalingMode(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPlaybackStateVolumeClamp(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState(50, false)

	s.SetVolume(-5)
	if got := s.Volume(); got != 0 {
		t.Errorf("SetVolume(-5): got %d, want 0", got)
	}

	s.SetVolume(150)
	if got := s.Volume(); got != 100 {
		t.Errorf("SetVolume(150): got %d, want 100", got)
	}

	if s := NewPlaybackState(-10, false); s.Volume() != 0 {
		t.Errorf("NewPlaybackState(-10): volume got %d, want 0", s.Volume())
	}
	if s := NewPlaybackState(400, false); s.Volume() != 100 {
		t.Errorf("NewPlaybackState(400): volume got %d, want 100", s.Volume())
	}
}

func TestPlaybackStateMutePreservesVolume(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState(73, false)
	s.SetMuted(true)
	if got := s.Volume(); got != 73 {
		t.Errorf("volume after mute: got %d, want 73", got)
	}
	s.SetMuted(false)
	if got := s.Volume(); got != 73 {
		t.Errorf("volume after unmute: got %d, want 73", got)
	}
}

func TestPlaybackStateNotifies(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState(100, false)
	s.SetPlaying(true)

	select {
	case <-s.Changed():
	default:
		t.Fatal("expected a pending change notification after SetPlaying")
	}

	// Notifications coalesce: many writes leave at most one pending.
	s.SetMuted(true)
	s.SetVolume(10)
	s.SetPlaying(false)

	select {
	case <-s.Changed():
	default:
		t.Fatal("expected a pending change notification after writes")
	}
	select {
	case <-s.Changed():
		t.Fatal("expected notifications to coalesce to one")
	default:
	}
}

func TestPlaybackStateConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := NewPlaybackState(50, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s.SetVolume(n * j)
				s.SetPlaying(j%2 == 0)
				s.Snapshot()
				s.Muted()
			}
		}(i)
	}
	wg.Wait()

	if v := s.Volume(); v < 0 || v > 100 {
		t.Errorf("volume out of range after concurrent writes: %d", v)
	}
}
