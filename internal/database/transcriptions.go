package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a transcript id has no row.
var ErrNotFound = errors.New("transcript not found")

// TranscriptRow is the input for inserting a beaverified transcript.
type TranscriptRow struct {
	ID           string
	Filename     string
	Mode         string
	Provider     string
	Model        string
	OriginalText string
	BeaverText   string
	Trimmed      bool
	AudioSeconds float64
	AudioBytes   int64
	DurationMs   int
	Source       string // "upload" or "inbox"
}

// TranscriptAPI is the transcript representation for API responses.
type TranscriptAPI struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Mode         string    `json:"mode"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	Original     string    `json:"original"`
	Beaverified  string    `json:"beaverified"`
	Trimmed      bool      `json:"trimmed"`
	AudioSeconds float64   `json:"audio_seconds"`
	AudioBytes   int64     `json:"audio_bytes"`
	DurationMs   int       `json:"duration_ms"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

const transcriptColumns = `id::text, filename, mode, provider, model,
	original_text, beaver_text, trimmed, audio_seconds, audio_bytes,
	duration_ms, source, created_at`

// InsertTranscript stores a transcript row and returns its creation time.
func (db *DB) InsertTranscript(ctx context.Context, row *TranscriptRow) (time.Time, error) {
	source := row.Source
	if source == "" {
		source = "upload"
	}
	var created time.Time
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO beaver_transcripts (
			id, filename, mode, provider, model,
			original_text, beaver_text, trimmed, audio_seconds, audio_bytes,
			duration_ms, source
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`,
		row.ID, row.Filename, row.Mode, row.Provider, row.Model,
		row.OriginalText, row.BeaverText, row.Trimmed, row.AudioSeconds, row.AudioBytes,
		row.DurationMs, source,
	).Scan(&created)
	if err != nil {
		return time.Time{}, fmt.Errorf("insert transcript: %w", err)
	}
	return created, nil
}

// GetTranscript returns one transcript by id.
func (db *DB) GetTranscript(ctx context.Context, id string) (*TranscriptAPI, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+transcriptColumns+` FROM beaver_transcripts WHERE id = $1::uuid`, id)
	t, err := scanTranscript(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return t, nil
}

// ListTranscripts returns transcripts newest first, plus the total row count.
func (db *DB) ListTranscripts(ctx context.Context, limit, offset int) ([]TranscriptAPI, int, error) {
	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM beaver_transcripts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transcripts: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT `+transcriptColumns+`
		FROM beaver_transcripts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	out := []TranscriptAPI{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

func scanTranscript(row pgx.Row) (*TranscriptAPI, error) {
	var t TranscriptAPI
	err := row.Scan(
		&t.ID, &t.Filename, &t.Mode, &t.Provider, &t.Model,
		&t.Original, &t.Beaverified, &t.Trimmed, &t.AudioSeconds, &t.AudioBytes,
		&t.DurationMs, &t.Source, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
