package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

const (
	wavHeaderSize = 44
	pcmFormat     = 1
)

// ErrInvalidWAV means the data could not be read as a PCM RIFF/WAVE file.
var ErrInvalidWAV = errors.New("invalid wav data")

// WAVInfo describes a PCM WAV stream.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// ByteRate returns PCM bytes per second of audio.
func (i WAVInfo) ByteRate() int {
	return i.SampleRate * i.Channels * i.BitDepth / 8
}

// ReadWAVInfo parses the WAV header without decoding samples.
func ReadWAVInfo(data []byte) (WAVInfo, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return WAVInfo{}, ErrInvalidWAV
	}
	if d.WavAudioFormat != pcmFormat {
		return WAVInfo{}, fmt.Errorf("%w: audio format %d is not PCM", ErrInvalidWAV, d.WavAudioFormat)
	}
	return WAVInfo{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// FitSeconds returns the longest duration that satisfies both maxSeconds and
// maxBytes for a WAV with the given layout. A cap <= 0 is ignored; a return
// of 0 means uncapped. A byte cap too small to hold any audio is ignored
// here and left to the API size guard.
func FitSeconds(info WAVInfo, maxSeconds float64, maxBytes int64) float64 {
	limit := maxSeconds
	if maxBytes > wavHeaderSize && info.ByteRate() > 0 {
		s := float64(maxBytes-wavHeaderSize) / float64(info.ByteRate())
		if limit <= 0 || s < limit {
			limit = s
		}
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// WAVSeconds decodes data and returns its duration in seconds.
func WAVSeconds(data []byte) (float64, error) {
	buf, _, err := decodeWAV(data)
	if err != nil {
		return 0, err
	}
	return bufferSeconds(buf), nil
}

// TrimWAV keeps at most maxSeconds of audio, re-encoding the truncated PCM
// in memory. When the input already fits it is returned unchanged with
// trimmed=false. Output duration never exceeds maxSeconds.
func TrimWAV(data []byte, maxSeconds float64) (out []byte, seconds float64, trimmed bool, err error) {
	buf, info, err := decodeWAV(data)
	if err != nil {
		return nil, 0, false, err
	}
	total := bufferSeconds(buf)
	if maxSeconds <= 0 {
		return data, total, false, nil
	}

	channels := buf.Format.NumChannels
	maxFrames := int(math.Floor(maxSeconds * float64(buf.Format.SampleRate)))
	frames := len(buf.Data) / channels
	if frames <= maxFrames {
		return data, total, false, nil
	}

	buf.Data = buf.Data[:maxFrames*channels]
	encoded, err := encodeWAV(buf, info)
	if err != nil {
		return nil, 0, false, err
	}
	return encoded, bufferSeconds(buf), true, nil
}

func decodeWAV(data []byte) (*goaudio.IntBuffer, WAVInfo, error) {
	info, err := ReadWAVInfo(data)
	if err != nil {
		return nil, WAVInfo{}, err
	}
	d := wav.NewDecoder(bytes.NewReader(data))
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, WAVInfo{}, fmt.Errorf("%w: decode pcm: %v", ErrInvalidWAV, err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, WAVInfo{}, fmt.Errorf("%w: missing format chunk", ErrInvalidWAV)
	}
	return buf, info, nil
}

func encodeWAV(buf *goaudio.IntBuffer, info WAVInfo) ([]byte, error) {
	ws := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(ws, info.SampleRate, info.BitDepth, info.Channels, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	out, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return out, nil
}

func bufferSeconds(buf *goaudio.IntBuffer) float64 {
	frames := len(buf.Data) / buf.Format.NumChannels
	return float64(frames) / float64(buf.Format.SampleRate)
}
