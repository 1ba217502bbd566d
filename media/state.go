package media

import "sync"

// PlaybackState is the play/mute/volume state shared between the render
// loop (writer) and the audio pipeline (reader). All accessors are
// mutex-guarded so each side always sees a consistent view.
//
// Every mutation publishes a notification on Changed, letting the audio
// pipeline wake immediately on play/mute transitions instead of busy
// polling. The channel holds at most one pending notification; coalescing
// is fine because readers re-snapshot the full state on wake.
type PlaybackState struct {
	mu      sync.Mutex
	playing bool
	muted   bool
	volume  int

	changed chan struct{}
}

// NewPlaybackState returns a stopped, unmuted state at the given volume,
// clamped to [0, 100].
func NewPlaybackState(volume int, muted bool) *PlaybackState {
	return &PlaybackState{
		volume:  clampVolume(volume),
		muted:   muted,
		changed: make(chan struct{}, 1),
	}
}

// Snapshot returns a consistent view of all three fields.
func (s *PlaybackState) Snapshot() (playing, muted bool, volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing, s.muted, s.volume
}

// Playing reports whether playback is active.
func (s *PlaybackState) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Muted reports whether audio output is muted.
func (s *PlaybackState) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Volume returns the stored volume in [0, 100].
func (s *PlaybackState) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetPlaying updates the playing flag and notifies waiters.
func (s *PlaybackState) SetPlaying(playing bool) {
	s.mu.Lock()
	s.playing = playing
	s.mu.Unlock()
	s.notify()
}

// SetMuted updates the muted flag and notifies waiters. The stored volume
// is untouched so unmuting restores the previous gain.
func (s *PlaybackState) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	s.notify()
}

// SetVolume stores the volume clamped to [0, 100] and notifies waiters.
func (s *PlaybackState) SetVolume(volume int) {
	s.mu.Lock()
	s.volume = clampVolume(volume)
	s.mu.Unlock()
	s.notify()
}

// Changed returns the notification channel. Receiving drains at most one
// coalesced state-change event.
func (s *PlaybackState) Changed() <-chan struct{} {
	return s.changed
}

func (s *PlaybackState) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
