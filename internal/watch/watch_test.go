package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hochfrequenz/cargo-for-each/internal/logging"
)

func startWatcher(t *testing.T, root string) <-chan struct{} {
	t.Helper()

	notified := make(chan struct{}, 16)
	sw, err := NewStateWatcher(root, func() { notified <- struct{}{} }, logging.New(logging.Options{Writer: io.Discard}))
	if err != nil {
		t.Fatalf("NewStateWatcher() error = %v", err)
	}
	sw.SetDebounce(20 * time.Millisecond)
	sw.Start(context.Background())
	t.Cleanup(sw.Stop)
	return notified
}

func awaitNotification(t *testing.T, notified <-chan struct{}) {
	t.Helper()
	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a state change notification")
	}
}

func TestStateWatcher_CreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tasks", "upgrade")
	if _, err := NewStateWatcher(root, nil, logging.New(logging.Options{Writer: io.Discard})); err != nil {
		t.Fatalf("NewStateWatcher() error = %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root not created: %v", err)
	}
}

func TestStateWatcher_NotifiesOnExitStatus(t *testing.T) {
	root := t.TempDir()
	stepDir := filepath.Join(root, "0", "1")
	if err := os.MkdirAll(stepDir, 0o755); err != nil {
		t.Fatal(err)
	}

	notified := startWatcher(t, root)

	if err := os.WriteFile(filepath.Join(stepDir, "exit_status"), []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}
	awaitNotification(t, notified)
}

func TestStateWatcher_NotifiesOnNewStepDirectory(t *testing.T) {
	root := t.TempDir()
	notified := startWatcher(t, root)

	// The executor creates target and step directories while running.
	stepDir := filepath.Join(root, "2", "1")
	if err := os.MkdirAll(stepDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stepDir, "manual_step_confirmed"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}
	awaitNotification(t, notified)
}

func TestStateWatcher_IgnoresCastWrites(t *testing.T) {
	root := t.TempDir()
	stepDir := filepath.Join(root, "0", "1")
	if err := os.MkdirAll(stepDir, 0o755); err != nil {
		t.Fatal(err)
	}

	notified := startWatcher(t, root)

	castPath := filepath.Join(stepDir, "asciinema.cast")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(castPath, []byte("frame"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-notified:
		t.Fatal("cast writes must not trigger notifications")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStateWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	stepDir := filepath.Join(root, "0", "1")
	if err := os.MkdirAll(stepDir, 0o755); err != nil {
		t.Fatal(err)
	}

	notified := startWatcher(t, root)

	statusPath := filepath.Join(stepDir, "exit_status")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(statusPath, []byte("0"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	awaitNotification(t, notified)
	// The burst happened within one debounce window; a second
	// notification may arrive only if writes straddled the window.
	time.Sleep(100 * time.Millisecond)
	if len(notified) > 1 {
		t.Errorf("got %d extra notifications for one burst", len(notified))
	}
}
