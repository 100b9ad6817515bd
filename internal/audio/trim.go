package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Strategy selects how oversized audio is cut down before transcription.
type Strategy string

const (
	StrategyWAV  Strategy = "wav"  // in-process PCM truncation, WAV input only
	StrategySox  Strategy = "sox"  // external sox, any container
	StrategyNone Strategy = "none" // pass-through
)

// TrimResult is the audio that will be sent to the transcription API.
type TrimResult struct {
	Data     []byte
	Format   Format
	Seconds  float64 // 0 when unknown (non-WAV pass-through)
	Trimmed  bool
	Strategy Strategy
}

// Trimmer applies a Strategy with a duration cap and an API byte cap.
type Trimmer struct {
	strategy   Strategy
	maxSeconds float64
	maxBytes   int64
	log        zerolog.Logger
}

// NewTrimmer creates a trimmer. If sox is requested but not installed the
// trimmer falls back to the WAV strategy.
func NewTrimmer(strategy Strategy, maxSeconds float64, maxBytes int64, log zerolog.Logger) *Trimmer {
	if strategy == StrategySox && !CheckSox() {
		log.Warn().Msg("TRIM_STRATEGY=sox but sox not found in PATH; falling back to wav")
		strategy = StrategyWAV
	}
	return &Trimmer{
		strategy:   strategy,
		maxSeconds: maxSeconds,
		maxBytes:   maxBytes,
		log:        log,
	}
}

// Strategy returns the effective strategy.
func (t *Trimmer) Strategy() Strategy { return t.strategy }

// MaxSeconds returns the configured duration cap.
func (t *Trimmer) MaxSeconds() float64 { return t.maxSeconds }

// Trim cuts data down to the duration cap and, for WAV output, to the API
// byte cap. The result still has to pass CheckSize against the API limit:
// containers that cannot be trimmed are returned as-is.
func (t *Trimmer) Trim(ctx context.Context, data []byte, format Format) (*TrimResult, error) {
	res := &TrimResult{Data: data, Format: format, Strategy: t.strategy}

	switch t.strategy {
	case StrategyNone:
		if format == FormatWAV {
			if s, err := WAVSeconds(data); err == nil {
				res.Seconds = s
			}
		}
		return res, nil

	case StrategySox:
		if !t.needsTrim(data, format) {
			return t.trimWAV(res)
		}
		out, err := SoxTrim(ctx, data, format, t.maxSeconds)
		if err != nil {
			return nil, err
		}
		res.Data = out
		res.Format = FormatWAV
		res.Trimmed = true
		// sox rounds the trim point; refine against both caps in-process.
		refined, err := t.trimWAV(res)
		if err != nil {
			return nil, err
		}
		refined.Trimmed = true
		return refined, nil

	default:
		return t.trimWAV(res)
	}
}

// needsTrim reports whether sox has any work to do. WAV that already fits
// both caps is left alone.
func (t *Trimmer) needsTrim(data []byte, format Format) bool {
	if format != FormatWAV {
		return t.maxSeconds > 0 || (t.maxBytes > 0 && int64(len(data)) > t.maxBytes)
	}
	info, err := ReadWAVInfo(data)
	if err != nil {
		return true
	}
	limit := FitSeconds(info, t.maxSeconds, t.maxBytes)
	if limit <= 0 {
		return false
	}
	s, err := WAVSeconds(data)
	return err != nil || s > limit
}

func (t *Trimmer) trimWAV(res *TrimResult) (*TrimResult, error) {
	if res.Format != FormatWAV {
		return res, nil
	}
	info, err := ReadWAVInfo(res.Data)
	if err != nil {
		if errors.Is(err, ErrInvalidWAV) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, err
	}
	limit := FitSeconds(info, t.maxSeconds, t.maxBytes)
	out, seconds, trimmed, err := TrimWAV(res.Data, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if trimmed {
		t.log.Debug().
			Float64("limit_seconds", limit).
			Int("bytes_before", len(res.Data)).
			Int("bytes_after", len(out)).
			Msg("audio trimmed")
	}
	res.Data = out
	res.Seconds = seconds
	res.Trimmed = res.Trimmed || trimmed
	return res, nil
}
