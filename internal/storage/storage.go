package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/config"
)

// ErrNotFound is returned by Open when the key does not exist.
var ErrNotFound = errors.New("transcript file not found")

// TextStore abstracts where transcript text files live.
type TextStore interface {
	// Save stores data under key. key format: {id}/{filename}
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the stored file, or ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// URL returns a presigned URL for the file.
	// Returns "" for local-only backends.
	URL(ctx context.Context, key string) (string, error)

	// Type returns "local" or "s3".
	Type() string
}

// Well-known file names under a transcript id.
const (
	OriginalFile    = "original.txt"
	BeaverifiedFile = "beaver_lyrics.txt"
)

// Key builds the storage key for a transcript file.
func Key(id, file string) string {
	return path.Join(id, file)
}

// New creates a TextStore based on config. Returns an error if S3 is
// configured but unreachable.
func New(cfg config.S3Config, transcriptDir string, log zerolog.Logger) (TextStore, error) {
	if !cfg.Enabled() {
		log.Info().Str("dir", transcriptDir).Msg("transcript storage: local")
		return NewLocalStore(transcriptDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return s3store, nil
}
