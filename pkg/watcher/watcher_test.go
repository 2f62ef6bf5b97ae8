package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeStatus(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	writeStatus(t, path, "a: {}\n")

	w, err := New(path, WithDebounce(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeStatus(t, path, "a: {}\nb: {}\n")

	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("change not detected")
	}
}

func TestWatcherPollingFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	writeStatus(t, path, "a: {}\n")

	w, err := New(path,
		WithForcePoll(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	// Polling compares mtime and size; make sure at least one differs.
	time.Sleep(30 * time.Millisecond)
	writeStatus(t, path, "a: {}\nb: {}\n")

	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("change not detected in polling mode")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	writeStatus(t, path, "a: {}\n")

	w, err := New(path, WithDebounce(100*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// A burst of writes within the window coalesces into one change.
	for i := 0; i < 5; i++ {
		writeStatus(t, path, "a: {}\n")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-w.Changed():
	case <-time.After(3 * time.Second):
		t.Fatal("burst not detected")
	}

	select {
	case <-w.Changed():
		t.Error("burst must coalesce into a single change")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStartTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.yaml")
	writeStatus(t, path, "a: {}\n")

	w, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}
