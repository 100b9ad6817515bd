package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/config"
)

func TestLocalStore_SaveOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewLocalStore(dir)
	key := Key("abc", BeaverifiedFile)

	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open before Save: err = %v, want ErrNotFound", err)
	}
	if err := s.Save(ctx, key, []byte("dam metropolis"), "text/plain"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "dam metropolis" {
		t.Errorf("content = %q", got)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Join(dir, "abc"))
	if len(entries) != 1 {
		t.Errorf("dir entries = %d, want 1", len(entries))
	}
}

func TestLocalStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())
	s.Save(ctx, "x/a.txt", []byte("one"), "text/plain")
	s.Save(ctx, "x/a.txt", []byte("two"), "text/plain")
	rc, err := s.Open(ctx, "x/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "two" {
		t.Errorf("content = %q, want two", got)
	}
}

func TestLocalStore_NotFound(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if _, err := s.Open(context.Background(), "missing/beaver_lyrics.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	for _, key := range []string{"../etc/passwd", "/abs/path", "..", "."} {
		if err := s.Save(context.Background(), key, []byte("x"), "text/plain"); err == nil {
			t.Errorf("Save(%q) should fail", key)
		}
	}
}

func TestLocalStore_URLAndType(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if u, err := s.URL(context.Background(), "a/b"); u != "" || err != nil {
		t.Errorf("URL = %q, %v; want empty", u, err)
	}
	if s.Type() != "local" {
		t.Errorf("Type = %q", s.Type())
	}
}

func TestNew_LocalWhenS3Disabled(t *testing.T) {
	store, err := New(config.S3Config{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Type() != "local" {
		t.Errorf("Type = %q, want local", store.Type())
	}
}
