package ingest

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/audio"
	"github.com/snarg/beaverscribe/internal/beaver"
	"github.com/snarg/beaverscribe/internal/database"
	"github.com/snarg/beaverscribe/internal/storage"
	"github.com/snarg/beaverscribe/internal/transcribe"
)

// fakeProvider returns canned text and records what it was sent.
type fakeProvider struct {
	mu       sync.Mutex
	text     string
	err      error
	calls    int
	lastPath string
	lastData []byte
	existed  bool
}

func (f *fakeProvider) Transcribe(ctx context.Context, path string, opts transcribe.TranscribeOpts) (*transcribe.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPath = path
	data, err := os.ReadFile(path)
	f.existed = err == nil
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	return &transcribe.Response{Text: f.text}, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

type fakeRecorder struct {
	mu   sync.Mutex
	rows []database.TranscriptRow
	err  error
}

func (r *fakeRecorder) InsertTranscript(ctx context.Context, row *database.TranscriptRow) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return time.Time{}, r.err
	}
	r.rows = append(r.rows, *row)
	return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), nil
}

// mp3Bytes is a tiny ID3-prefixed payload. The wav strategy passes it through.
func mp3Bytes(n int) []byte {
	data := make([]byte, n)
	copy(data, "ID3")
	return data
}

func newTestPipeline(t *testing.T, prov transcribe.Provider, rec Recorder) (*Pipeline, *storage.LocalStore) {
	t.Helper()
	store := storage.NewLocalStore(t.TempDir())
	opts := PipelineOptions{
		Provider:       prov,
		Trimmer:        audio.NewTrimmer(audio.StrategyWAV, 30, 1<<20, zerolog.Nop()),
		Beaverifier:    beaver.New(42),
		Store:          store,
		MaxUploadBytes: 1 << 20,
		APIMaxBytes:    1 << 19,
		DefaultMode:    beaver.ModeClassic,
		Log:            zerolog.Nop(),
	}
	if rec != nil {
		opts.History = rec
	}
	return NewPipeline(opts), store
}

func readStored(t *testing.T, store storage.TextStore, key string) string {
	t.Helper()
	rc, err := store.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open(%q): %v", key, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestProcess_Success(t *testing.T) {
	prov := &fakeProvider{text: "  a man and a woman in love  "}
	rec := &fakeRecorder{}
	p, store := newTestPipeline(t, prov, rec)

	res, err := p.Process(context.Background(), Upload{Filename: "song.mp3", Data: mp3Bytes(2048)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.ID == "" {
		t.Error("expected id")
	}
	if res.Original != "a man and a woman in love" {
		t.Errorf("Original = %q", res.Original)
	}
	if !strings.HasPrefix(res.Beaverified, "a beaver enthusiast and a beaver biologist in respect for beaver society\n") {
		t.Errorf("Beaverified = %q", res.Beaverified)
	}
	if !strings.Contains(res.Beaverified, "\n\nBonus Beaver Fact: ") {
		t.Errorf("missing fact line: %q", res.Beaverified)
	}
	if res.Mode != beaver.ModeClassic {
		t.Errorf("Mode = %q, want classic", res.Mode)
	}
	if res.Provider != "fake" || res.Model != "fake-model" {
		t.Errorf("Provider/Model = %q/%q", res.Provider, res.Model)
	}
	if res.AudioBytes != 2048 {
		t.Errorf("AudioBytes = %d, want 2048", res.AudioBytes)
	}

	if !prov.existed {
		t.Error("temp file should exist during the provider call")
	}
	if !strings.HasSuffix(prov.lastPath, ".mp3") {
		t.Errorf("temp file %q should keep the mp3 extension", prov.lastPath)
	}
	if _, err := os.Stat(prov.lastPath); !os.IsNotExist(err) {
		t.Errorf("temp file %q should be removed, stat err = %v", prov.lastPath, err)
	}

	if got := readStored(t, store, storage.Key(res.ID, storage.OriginalFile)); got != res.Original {
		t.Errorf("stored original = %q", got)
	}
	if got := readStored(t, store, storage.Key(res.ID, storage.BeaverifiedFile)); got != res.Beaverified {
		t.Errorf("stored beaverified = %q", got)
	}

	if len(rec.rows) != 1 {
		t.Fatalf("history rows = %d, want 1", len(rec.rows))
	}
	row := rec.rows[0]
	if row.ID != res.ID || row.Source != "upload" || row.Mode != "classic" {
		t.Errorf("history row = %+v", row)
	}
	if !res.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("CreatedAt = %v, want recorder timestamp", res.CreatedAt)
	}
}

func TestProcess_ModeOverride(t *testing.T) {
	prov := &fakeProvider{text: "we fight for home"}
	p, _ := newTestPipeline(t, prov, nil)

	res, err := p.Process(context.Background(), Upload{Filename: "a.mp3", Data: mp3Bytes(64), Mode: "Maximum"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Mode != beaver.ModeMaximum {
		t.Errorf("Mode = %q, want maximum", res.Mode)
	}
	if !strings.HasPrefix(res.Beaverified, "we dam dispute for lodge\n") {
		t.Errorf("Beaverified = %q", res.Beaverified)
	}
}

func TestProcess_Errors(t *testing.T) {
	apiErr := &transcribe.APIError{Provider: "fake", StatusCode: 503, Body: "loading"}

	tests := []struct {
		name       string
		upload     Upload
		provErr    error
		wantIs     error
		wantAPI    bool
		wantCalled bool
	}{
		{
			name:   "too_large",
			upload: Upload{Filename: "big.mp3", Data: mp3Bytes(1<<20 + 1)},
			wantIs: audio.ErrTooLarge,
		},
		{
			name:   "over_api_limit",
			upload: Upload{Filename: "big.mp3", Data: mp3Bytes(1<<19 + 1)},
			wantIs: audio.ErrTooLarge,
		},
		{
			name:   "unsupported",
			upload: Upload{Filename: "notes.txt", Data: []byte("hello there")},
			wantIs: audio.ErrUnsupportedFormat,
		},
		{
			name:   "bad_mode",
			upload: Upload{Filename: "a.mp3", Data: mp3Bytes(64), Mode: "feral"},
			wantIs: beaver.ErrUnknownMode,
		},
		{
			name:       "api_error",
			upload:     Upload{Filename: "a.mp3", Data: mp3Bytes(64)},
			provErr:    apiErr,
			wantAPI:    true,
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov := &fakeProvider{text: "unused", err: tt.provErr}
			rec := &fakeRecorder{}
			p, _ := newTestPipeline(t, prov, rec)

			_, err := p.Process(context.Background(), tt.upload)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("err = %v, want %v", err, tt.wantIs)
			}
			if tt.wantAPI {
				var got *transcribe.APIError
				if !errors.As(err, &got) || got.StatusCode != 503 {
					t.Errorf("err = %v, want APIError 503", err)
				}
			}
			if (prov.calls > 0) != tt.wantCalled {
				t.Errorf("provider calls = %d, wantCalled %v", prov.calls, tt.wantCalled)
			}
			if tt.wantCalled {
				if _, statErr := os.Stat(prov.lastPath); !os.IsNotExist(statErr) {
					t.Errorf("temp file should be removed after failure")
				}
			}
			if len(rec.rows) != 0 {
				t.Errorf("history rows = %d, want 0", len(rec.rows))
			}
		})
	}
}

func TestProcess_HistoryFailureStillSucceeds(t *testing.T) {
	prov := &fakeProvider{text: "river"}
	rec := &fakeRecorder{err: errors.New("db down")}
	p, store := newTestPipeline(t, prov, rec)

	res, err := p.Process(context.Background(), Upload{Filename: "a.mp3", Data: mp3Bytes(64)})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := readStored(t, store, storage.Key(res.ID, storage.BeaverifiedFile)); got != res.Beaverified {
		t.Errorf("stored beaverified = %q, want the result text", got)
	}
}

func TestProcess_DeterministicWithSeed(t *testing.T) {
	run := func() string {
		p, _ := newTestPipeline(t, &fakeProvider{text: "build a tree city"}, nil)
		res, err := p.Process(context.Background(), Upload{Filename: "a.mp3", Data: mp3Bytes(64)})
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		return res.Beaverified
	}
	if a, b := run(), run(); a != b {
		t.Errorf("same seed produced different output:\n%q\n%q", a, b)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{audio.ErrTooLarge, "too_large"},
		{audio.ErrUnsupportedFormat, "unsupported"},
		{beaver.ErrUnknownMode, "bad_mode"},
		{&transcribe.APIError{StatusCode: 500}, "api_error"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
