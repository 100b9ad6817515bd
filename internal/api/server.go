package api

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/beaverscribe/internal/beaver"
	"github.com/snarg/beaverscribe/internal/config"
	"github.com/snarg/beaverscribe/internal/metrics"
	"github.com/snarg/beaverscribe/internal/storage"
)

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions carries the collaborators the HTTP layer serves.
type ServerOptions struct {
	Config      *config.Config
	Processor   Processor
	Store       storage.TextStore
	History     HistoryReader // nil = history endpoints return 503
	Health      HealthInfo
	DefaultMode beaver.Mode
	WebFiles    fs.FS
	Log         zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	log := opts.Log

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOriginList()))

	r.Get("/", IndexHandler(opts.WebFiles))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoint, no auth
		r.Get("/health", NewHealthHandler(opts.Health).ServeHTTP)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))

			r.Get("/modes", ModesHandler(opts.DefaultMode))
			NewTranscriptsHandler(opts.Store, opts.History, log).Routes(r)

			r.Group(func(r chi.Router) {
				// headroom for multipart framing around the audio
				r.Use(MaxBodySize(bodyLimit(cfg.MaxUploadBytes())))
				NewUploadHandler(opts.Processor, opts.Store, cfg.MaxUploadBytes(), log).Routes(r)
			})
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}

func bodyLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return maxUpload + 1<<20
}
