package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSidecarPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/inbox/song.wav", "/inbox/song.beaver.txt"},
		{"/inbox/Song.M4A", "/inbox/Song.beaver.txt"},
		{"/inbox/a.b.mp3", "/inbox/a.b.beaver.txt"},
	}
	for _, tt := range tests {
		if got := SidecarPath(tt.in); got != tt.want {
			t.Errorf("SidecarPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsInboxAudio(t *testing.T) {
	for name, want := range map[string]bool{
		"a.wav":        true,
		"a.MP3":        true,
		"a.m4a":        true,
		"a.beaver.txt": false,
		"a.flac":       false,
		"noext":        false,
	} {
		if got := isInboxAudio(name); got != want {
			t.Errorf("isInboxAudio(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestFileWatcher_Handle(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeProvider{text: "the river"}, nil)
	dir := t.TempDir()
	fw := NewFileWatcher(p, dir, 1, 4, zerolog.Nop())

	path := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(path, mp3Bytes(128), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fw.Handle(context.Background(), Job{Path: path}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	out, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	if !strings.HasPrefix(string(out), "the beaver highway\n") {
		t.Errorf("sidecar = %q", out)
	}
	if fw.Status().FilesProcessed != 1 {
		t.Errorf("FilesProcessed = %d, want 1", fw.Status().FilesProcessed)
	}
}

func TestFileWatcher_ProcessesExistingAndNewFiles(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeProvider{text: "family"}, nil)
	dir := t.TempDir()

	existing := filepath.Join(dir, "before.mp3")
	if err := os.WriteFile(existing, mp3Bytes(64), 0o644); err != nil {
		t.Fatal(err)
	}
	// already has a sidecar, must be skipped
	done := filepath.Join(dir, "done.mp3")
	if err := os.WriteFile(done, mp3Bytes(64), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(SidecarPath(done), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	fw := NewFileWatcher(p, dir, 1, 10, zerolog.Nop())
	if err := fw.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fw.Stop()

	fresh := filepath.Join(dir, "after.mp3")
	if err := os.WriteFile(fresh, mp3Bytes(64), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 5*time.Second, func() bool {
		_, errA := os.Stat(SidecarPath(existing))
		_, errB := os.Stat(SidecarPath(fresh))
		return errA == nil && errB == nil
	})

	old, _ := os.ReadFile(SidecarPath(done))
	if string(old) != "old" {
		t.Errorf("existing sidecar was overwritten: %q", old)
	}
}

func TestFileWatcher_EnqueueOncePerFile(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeProvider{text: "river"}, nil)
	dir := t.TempDir()
	fw := NewFileWatcher(p, dir, 1, 10, zerolog.Nop())
	fw.ctx = context.Background()

	path := filepath.Join(dir, "clip.mp3")
	if err := os.WriteFile(path, mp3Bytes(64), 0o644); err != nil {
		t.Fatal(err)
	}

	// startup scan and an fsnotify event for the same file
	fw.enqueue(path)
	fw.enqueue(path)

	if got := fw.Pool().Pending(); got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}
	st := fw.Status()
	if st.FilesQueued != 1 || st.FilesSkipped != 1 {
		t.Errorf("queued/skipped = %d/%d, want 1/1", st.FilesQueued, st.FilesSkipped)
	}

	// once handled, the path can be queued again if its sidecar is removed
	if err := fw.Handle(context.Background(), Job{Path: path}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := os.Remove(SidecarPath(path)); err != nil {
		t.Fatal(err)
	}
	fw.enqueue(path)
	if got := fw.Status().FilesQueued; got != 2 {
		t.Errorf("FilesQueued after release = %d, want 2", got)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
