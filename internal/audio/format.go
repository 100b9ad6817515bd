package audio

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an accepted upload container.
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatM4A     Format = "m4a"
	FormatUnknown Format = ""
)

var (
	// ErrTooLarge means the audio exceeds a configured byte limit.
	ErrTooLarge = errors.New("audio file too large")
	// ErrUnsupportedFormat means the upload is not wav, mp3, or m4a.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// ContentType returns the MIME type sent to transcription APIs.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatM4A:
		return "audio/mp4"
	}
	return "application/octet-stream"
}

// CheckSize returns ErrTooLarge when n exceeds limit. A limit <= 0 disables the check.
func CheckSize(n, limit int64) error {
	if limit > 0 && n > limit {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d bytes", ErrTooLarge, n, limit)
	}
	return nil
}

// DetectFormat decides the container from the filename extension, falling
// back to magic bytes when the extension is missing or unrecognized.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "wav", "wave":
		return FormatWAV, nil
	case "mp3":
		return FormatMP3, nil
	case "m4a", "mp4":
		return FormatM4A, nil
	}
	if f := sniff(data); f != FormatUnknown {
		return f, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %q (want wav, mp3, or m4a)", ErrUnsupportedFormat, filename)
}

func sniff(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatM4A
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}
