package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ovalfantasy/ovalsync/internal/lineup"
	"github.com/ovalfantasy/ovalsync/internal/metrics"
	"github.com/ovalfantasy/ovalsync/internal/scrape"
	"github.com/ovalfantasy/ovalsync/internal/socialstats"
)

// LineupScraper scrapes a single match lineup.
type LineupScraper interface {
	Scrape(ctx context.Context, matchID string) (lineup.Lineup, error)
}

// StatsCollector runs social stats collections and reads stored history.
type StatsCollector interface {
	Collect(ctx context.Context, opts socialstats.CollectOptions) (socialstats.Report, error)
	History(ctx context.Context, q socialstats.HistoryQuery) ([]socialstats.Record, error)
}

// Options configures a Server. Ready may be nil, in which case the service
// always reports ready.
type Options struct {
	Lineups        LineupScraper
	Stats          StatsCollector
	Hasher         scrape.Hasher
	RequestIDs     func() string
	Ready          func(ctx context.Context) error
	AllowedOrigins []string
	APIKey         string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the lineup and stats services.
type Server struct {
	router   chi.Router
	opts     Options
	logger   *zap.Logger
	validate *validator.Validate
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		opts:     opts,
		logger:   logger.Named("api"),
		validate: newValidator(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(opts.RequestIDs))
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware(opts.AllowedOrigins))
	if opts.APIKey != "" {
		r.Use(apiKeyMiddleware(opts.APIKey, "/healthz", "/readyz"))
	}
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/lineups", s.getLineup)
		r.Route("/social-stats", func(r chi.Router) {
			r.Get("/", s.getHistory)
			r.Get("/collect", s.collectStats)
			r.Post("/collect", s.collectStats)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, s.logger, http.StatusNotFound, kindNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, s.logger, http.StatusMethodNotAllowed, kindInvalidRequest, "method not allowed")
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server or a Lambda adapter.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, s.logger, http.StatusServiceUnavailable, kindUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ready"})
}
