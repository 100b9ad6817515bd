package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

var (
	soxOnce      sync.Once
	soxAvailable bool
)

// CheckSox reports whether sox is in PATH. The lookup runs once.
func CheckSox() bool {
	soxOnce.Do(func() {
		_, err := exec.LookPath("sox")
		soxAvailable = err == nil
	})
	return soxAvailable
}

// SoxTrim decodes any container sox understands and writes at most
// maxSeconds of 16kHz mono 16-bit WAV. Works for mp3 and m4a inputs that
// TrimWAV cannot read.
func SoxTrim(ctx context.Context, data []byte, format Format, maxSeconds float64) ([]byte, error) {
	in, err := os.CreateTemp("", "beaverscribe-in-*."+string(format))
	if err != nil {
		return nil, fmt.Errorf("create temp input: %w", err)
	}
	defer os.Remove(in.Name())
	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("write temp input: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("close temp input: %w", err)
	}

	out, err := os.CreateTemp("", "beaverscribe-out-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp output: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	args := []string{in.Name(), "-b", "16", outPath}
	if maxSeconds > 0 {
		args = append(args, "trim", "0", strconv.FormatFloat(maxSeconds, 'f', 3, 64))
	}
	args = append(args, "rate", "16000", "channels", "1")

	cmd := exec.CommandContext(ctx, "sox", args...)
	if msg, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("sox trim: %w: %s", err, msg)
	}
	return os.ReadFile(outPath)
}
