package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReportsFileChange(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wall.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 1)
	w, err := New(path, func(p string) {
		select {
		case changed <- p:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	go func() { _ = w.Start() }()

	// Give the watch loop a moment to come up before mutating.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("changed path: got %q, want %q", got, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wall.mp4")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 1)
	w, err := New(path, func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	go func() { _ = w.Start() }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "other.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		t.Fatalf("unexpected notification for sibling write: %q", p)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "wall.png")
	if err := os.WriteFile(path, []byte("img"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, func(string) {}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = w.Start()
		close(done)
	}()

	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
