package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// wavHeaderBytes is the size of a canonical PCM WAV header.
const wavHeaderBytes = 44

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"180s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken   string `env:"AUTH_TOKEN"`
	CORSOrigins string `env:"CORS_ORIGINS"` // comma-separated; empty = allow all
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Speech-to-text
	STTProvider string        `env:"STT_PROVIDER" envDefault:"hosted"` // hosted, whisper, openai
	STTURL      string        `env:"STT_URL"`
	STTAPIKey   string        `env:"STT_API_KEY"`
	STTModel    string        `env:"STT_MODEL"`
	STTLanguage string        `env:"STT_LANGUAGE"`
	STTTimeout  time.Duration `env:"STT_TIMEOUT" envDefault:"120s"`

	// Upload guard and trimming
	MaxUploadMB    int     `env:"MAX_UPLOAD_MB" envDefault:"25"`
	APIMaxBytes    int64   `env:"API_MAX_BYTES" envDefault:"10485760"`
	TrimStrategy   string  `env:"TRIM_STRATEGY" envDefault:"wav"` // wav, sox, none
	TrimMaxSeconds float64 `env:"TRIM_MAX_SECONDS" envDefault:"30"`

	BeaverMode string `env:"BEAVER_MODE" envDefault:"classic"`
	BeaverSeed int64  `env:"BEAVER_SEED"` // 0 = seed from clock

	TranscriptDir string `env:"TRANSCRIPT_DIR" envDefault:"./transcripts"`
	S3            S3Config

	DatabaseURL      string        `env:"DATABASE_URL"` // optional; enables history
	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"4"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`

	InboxDir  string `env:"INBOX_DIR"` // optional; enables the inbox watcher
	Workers   int    `env:"WORKERS" envDefault:"2"`
	QueueSize int    `env:"QUEUE_SIZE" envDefault:"100"`
}

// S3Config holds S3-compatible object storage settings for transcript files.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// MaxUploadBytes returns the upload size guard in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// CORSOriginList splits CORSOrigins into a trimmed list.
func (c *Config) CORSOriginList() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile       string
	HTTPAddr      string
	LogLevel      string
	DatabaseURL   string
	TranscriptDir string
	InboxDir      string
	STTProvider   string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.TranscriptDir != "" {
		cfg.TranscriptDir = overrides.TranscriptDir
	}
	if overrides.InboxDir != "" {
		cfg.InboxDir = overrides.InboxDir
	}
	if overrides.STTProvider != "" {
		cfg.STTProvider = overrides.STTProvider
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.STTProvider {
	case "hosted", "whisper", "openai":
	default:
		return fmt.Errorf("STT_PROVIDER %q: must be hosted, whisper, or openai", c.STTProvider)
	}
	switch c.TrimStrategy {
	case "wav", "sox", "none":
	default:
		return fmt.Errorf("TRIM_STRATEGY %q: must be wav, sox, or none", c.TrimStrategy)
	}
	if c.TrimMaxSeconds < 0 {
		return fmt.Errorf("TRIM_MAX_SECONDS must be >= 0, got %v", c.TrimMaxSeconds)
	}
	if c.APIMaxBytes < 0 || (c.APIMaxBytes > 0 && c.APIMaxBytes <= wavHeaderBytes) {
		return fmt.Errorf("API_MAX_BYTES must be 0 (no limit) or larger than the %d-byte WAV header, got %d", wavHeaderBytes, c.APIMaxBytes)
	}
	if c.MaxUploadMB < 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be >= 0, got %d", c.MaxUploadMB)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 1
	}
	return nil
}
