package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	beaverscribe "github.com/snarg/beaverscribe"
	"github.com/snarg/beaverscribe/internal/api"
	"github.com/snarg/beaverscribe/internal/audio"
	"github.com/snarg/beaverscribe/internal/beaver"
	"github.com/snarg/beaverscribe/internal/config"
	"github.com/snarg/beaverscribe/internal/database"
	"github.com/snarg/beaverscribe/internal/ingest"
	"github.com/snarg/beaverscribe/internal/metrics"
	"github.com/snarg/beaverscribe/internal/storage"
	"github.com/snarg/beaverscribe/internal/transcribe"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "PostgreSQL URL (overrides DATABASE_URL)")
	flag.StringVar(&overrides.TranscriptDir, "transcript-dir", "", "transcript directory (overrides TRANSCRIPT_DIR)")
	flag.StringVar(&overrides.InboxDir, "inbox-dir", "", "inbox directory to watch (overrides INBOX_DIR)")
	flag.StringVar(&overrides.STTProvider, "provider", "", "hosted, whisper, or openai (overrides STT_PROVIDER)")
	flag.Parse()

	if *showVersion {
		fmt.Println("beaverscribe", version)
		return
	}

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("beaverscribe starting")

	defaultMode, err := beaver.ParseMode(cfg.BeaverMode)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid BEAVER_MODE")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Transcript storage
	store, err := storage.New(cfg.S3, cfg.TranscriptDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize transcript storage")
	}

	// Database (optional history)
	var db *database.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, database.Options{
			URL:            cfg.DatabaseURL,
			MaxConns:       cfg.DBMaxConns,
			ConnectTimeout: cfg.DBConnectTimeout,
		}, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	} else {
		log.Info().Msg("DATABASE_URL not set; transcript history disabled")
	}

	// Transcription provider
	provider, err := transcribe.NewProvider(transcribe.Options{
		Provider: cfg.STTProvider,
		URL:      cfg.STTURL,
		APIKey:   cfg.STTAPIKey,
		Model:    cfg.STTModel,
		Timeout:  cfg.STTTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure transcription provider")
	}
	log.Info().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Msg("transcription provider configured")

	seed := cfg.BeaverSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	trimmer := audio.NewTrimmer(audio.Strategy(cfg.TrimStrategy), cfg.TrimMaxSeconds, cfg.APIMaxBytes,
		log.With().Str("component", "audio").Logger())

	pipeOpts := ingest.PipelineOptions{
		Provider:       provider,
		Trimmer:        trimmer,
		Beaverifier:    beaver.New(seed),
		Store:          store,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		APIMaxBytes:    cfg.APIMaxBytes,
		DefaultMode:    defaultMode,
		Language:       cfg.STTLanguage,
		Log:            log,
	}
	if db != nil {
		pipeOpts.History = db
	}
	pipeline := ingest.NewPipeline(pipeOpts)

	// Inbox watcher (optional)
	var watcher *ingest.FileWatcher
	if cfg.InboxDir != "" {
		watcher = ingest.NewFileWatcher(pipeline, cfg.InboxDir, cfg.Workers, cfg.QueueSize, log)
		if err := watcher.Start(ctx); err != nil {
			log.Fatal().Err(err).Str("dir", cfg.InboxDir).Msg("failed to start inbox watcher")
		}
	}

	// Live gauges
	var queue metrics.QueueStats
	if watcher != nil {
		queue = watcher.Pool()
	}
	var dbPool *pgxpool.Pool
	if db != nil {
		dbPool = db.Pool
	}
	prometheus.MustRegister(metrics.NewCollector(dbPool, queue))

	webFS, err := fs.Sub(beaverscribe.WebFiles, "web")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load embedded web files")
	}

	health := api.HealthInfo{
		Version:      version,
		StartTime:    startTime,
		Provider:     provider.Name(),
		Model:        provider.Model(),
		TrimStrategy: string(trimmer.Strategy()),
		Storage:      store.Type(),
		Watcher:      watcher,
	}
	srvOpts := api.ServerOptions{
		Config:      cfg,
		Processor:   pipeline,
		Store:       store,
		Health:      health,
		DefaultMode: defaultMode,
		WebFiles:    webFS,
		Log:         log.With().Str("component", "http").Logger(),
	}
	if db != nil {
		srvOpts.Health.DB = db
		srvOpts.History = db
	}
	srv := api.NewServer(srvOpts)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if watcher != nil {
		watcher.Stop()
	}

	log.Info().Msg("beaverscribe stopped")
}
