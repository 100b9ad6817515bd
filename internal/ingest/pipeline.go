package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/audio"
	"github.com/snarg/beaverscribe/internal/beaver"
	"github.com/snarg/beaverscribe/internal/database"
	"github.com/snarg/beaverscribe/internal/metrics"
	"github.com/snarg/beaverscribe/internal/storage"
	"github.com/snarg/beaverscribe/internal/transcribe"
)

// Recorder persists transcript history. *database.DB satisfies it.
type Recorder interface {
	InsertTranscript(ctx context.Context, row *database.TranscriptRow) (time.Time, error)
}

// Upload is a single audio file submitted for beaverification.
type Upload struct {
	Filename string
	Data     []byte
	Mode     string // empty = pipeline default
	Source   string // "upload" or "inbox"
}

// Result is the outcome of a successful Process call.
type Result struct {
	ID           string
	Filename     string
	Mode         beaver.Mode
	Provider     string
	Model        string
	Original     string
	Beaverified  string
	Trimmed      bool
	AudioSeconds float64
	AudioBytes   int64
	Duration     time.Duration
	CreatedAt    time.Time
}

// PipelineOptions wires the pipeline's collaborators.
type PipelineOptions struct {
	Provider       transcribe.Provider
	Trimmer        *audio.Trimmer
	Beaverifier    *beaver.Beaverifier
	Store          storage.TextStore
	History        Recorder // nil disables history
	MaxUploadBytes int64
	APIMaxBytes    int64
	DefaultMode    beaver.Mode
	Language       string
	Log            zerolog.Logger
}

// Pipeline turns uploaded audio into a stored, beaverified transcript.
type Pipeline struct {
	provider    transcribe.Provider
	trimmer     *audio.Trimmer
	beaver      *beaver.Beaverifier
	store       storage.TextStore
	history     Recorder
	maxUpload   int64
	apiMax      int64
	defaultMode beaver.Mode
	language    string
	log         zerolog.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	mode := opts.DefaultMode
	if mode == "" {
		mode = beaver.ModeClassic
	}
	return &Pipeline{
		provider:    opts.Provider,
		trimmer:     opts.Trimmer,
		beaver:      opts.Beaverifier,
		store:       opts.Store,
		history:     opts.History,
		maxUpload:   opts.MaxUploadBytes,
		apiMax:      opts.APIMaxBytes,
		defaultMode: mode,
		language:    opts.Language,
		log:         opts.Log.With().Str("component", "ingest").Logger(),
	}
}

// DefaultMode returns the mode used when an upload does not name one.
func (p *Pipeline) DefaultMode() beaver.Mode { return p.defaultMode }

// Process runs one upload through guard, trim, transcription, substitution
// and storage. The temp file handed to the provider is always removed.
func (p *Pipeline) Process(ctx context.Context, up Upload) (*Result, error) {
	start := time.Now()
	source := up.Source
	if source == "" {
		source = "upload"
	}

	mode := p.defaultMode
	if strings.TrimSpace(up.Mode) != "" {
		m, err := beaver.ParseMode(up.Mode)
		if err != nil {
			metrics.BeaverifyTotal.WithLabelValues(source, "invalid", "bad_mode").Inc()
			return nil, err
		}
		mode = m
	}

	res, err := p.process(ctx, up, mode)
	if err != nil {
		metrics.BeaverifyTotal.WithLabelValues(source, string(mode), outcome(err)).Inc()
		p.log.Warn().Err(err).
			Str("filename", up.Filename).
			Str("source", source).
			Int("bytes", len(up.Data)).
			Msg("beaverify failed")
		return nil, err
	}
	res.Duration = time.Since(start)

	if p.history != nil {
		created, err := p.history.InsertTranscript(ctx, &database.TranscriptRow{
			ID:           res.ID,
			Filename:     res.Filename,
			Mode:         string(res.Mode),
			Provider:     res.Provider,
			Model:        res.Model,
			OriginalText: res.Original,
			BeaverText:   res.Beaverified,
			Trimmed:      res.Trimmed,
			AudioSeconds: res.AudioSeconds,
			AudioBytes:   res.AudioBytes,
			DurationMs:   int(res.Duration.Milliseconds()),
			Source:       source,
		})
		if err != nil {
			// text files are already stored; the download still works
			p.log.Error().Err(err).Str("id", res.ID).Msg("failed to record transcript history")
		} else {
			res.CreatedAt = created
		}
	}

	metrics.BeaverifyTotal.WithLabelValues(source, string(mode), "ok").Inc()
	p.log.Info().
		Str("id", res.ID).
		Str("filename", res.Filename).
		Str("mode", string(mode)).
		Str("source", source).
		Bool("trimmed", res.Trimmed).
		Float64("audio_seconds", res.AudioSeconds).
		Int64("audio_bytes", res.AudioBytes).
		Dur("elapsed", res.Duration).
		Msg("beaverify complete")
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, up Upload, mode beaver.Mode) (*Result, error) {
	if err := audio.CheckSize(int64(len(up.Data)), p.maxUpload); err != nil {
		return nil, err
	}
	format, err := audio.DetectFormat(up.Filename, up.Data)
	if err != nil {
		return nil, err
	}
	metrics.UploadBytes.Observe(float64(len(up.Data)))

	trimmed, err := p.trimmer.Trim(ctx, up.Data, format)
	if err != nil {
		return nil, fmt.Errorf("trim audio: %w", err)
	}
	if trimmed.Trimmed {
		metrics.AudioTrimmedTotal.WithLabelValues(string(trimmed.Strategy)).Inc()
	}
	if err := audio.CheckSize(int64(len(trimmed.Data)), p.apiMax); err != nil {
		return nil, fmt.Errorf("audio exceeds transcription API limit after trimming: %w", err)
	}

	text, err := p.transcribe(ctx, trimmed)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:           uuid.NewString(),
		Filename:     up.Filename,
		Mode:         mode,
		Provider:     p.provider.Name(),
		Model:        p.provider.Model(),
		Original:     text,
		Beaverified:  p.beaver.Beaverify(text, mode),
		Trimmed:      trimmed.Trimmed,
		AudioSeconds: trimmed.Seconds,
		AudioBytes:   int64(len(trimmed.Data)),
		CreatedAt:    time.Now().UTC(),
	}

	if err := p.store.Save(ctx, storage.Key(res.ID, storage.OriginalFile), []byte(res.Original), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("store original transcript: %w", err)
	}
	if err := p.store.Save(ctx, storage.Key(res.ID, storage.BeaverifiedFile), []byte(res.Beaverified), "text/plain; charset=utf-8"); err != nil {
		return nil, fmt.Errorf("store beaverified transcript: %w", err)
	}
	return res, nil
}

// transcribe writes the audio to a temp file, sends it to the provider, and
// removes the file again before returning.
func (p *Pipeline) transcribe(ctx context.Context, tr *audio.TrimResult) (string, error) {
	f, err := os.CreateTemp("", "beaverscribe-*."+string(tr.Format))
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if _, err := f.Write(tr.Data); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp audio file: %w", err)
	}

	name := p.provider.Name()
	start := time.Now()
	resp, err := p.provider.Transcribe(ctx, tmpPath, transcribe.TranscribeOpts{Language: p.language})
	metrics.TranscriptionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		status := 0
		var apiErr *transcribe.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		metrics.TranscriptionErrorsTotal.WithLabelValues(name, strconv.Itoa(status)).Inc()
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// outcome maps a Process error to a metrics label.
func outcome(err error) string {
	var apiErr *transcribe.APIError
	switch {
	case errors.Is(err, audio.ErrTooLarge):
		return "too_large"
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, beaver.ErrUnknownMode):
		return "bad_mode"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
