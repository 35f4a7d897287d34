// Package gateway is the HTTP surface the presence source talks to. It turns
// presence events into tracker calls and exposes totals and manual reports;
// it carries no tracking logic of its own.
package gateway

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goodtune/voicetime/internal/clock"
	"github.com/goodtune/voicetime/internal/report"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Core is the slice of the tracker the gateway drives.
type Core interface {
	StartSession(ctx context.Context, userID string, startedAt time.Time) (bool, error)
	EndSession(ctx context.Context, userID string, endedAt time.Time) (int64, error)
	ReseedSessions(ctx context.Context, userIDs []string, startedAt time.Time) error
	TotalsForDay(ctx context.Context, dayKey string, includeLive bool, now time.Time) (map[string]int64, error)
	DayKey(at time.Time) string
}

// Config holds the gateway server configuration.
type Config struct {
	ListenAddr string
	AuthToken  string
	RateLimit  float64
	RateBurst  int
}

// Server serves the presence gateway API.
type Server struct {
	core     Core
	names    *report.Registry
	builder  *report.Builder
	poster   report.Poster
	cooldown *report.Cooldown
	clock    clock.Clock
	logger   zerolog.Logger

	authToken string
	limiter   *rate.Limiter

	server   *http.Server
	listener net.Listener
}

// NewServer wires the gateway routes.
func NewServer(cfg Config, core Core, names *report.Registry, builder *report.Builder, poster report.Poster, cooldown *report.Cooldown, clk clock.Clock, logger zerolog.Logger) *Server {
	if clk == nil {
		clk = clock.RealClock{}
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		core:      core,
		names:     names,
		builder:   builder,
		poster:    poster,
		cooldown:  cooldown,
		clock:     clk,
		logger:    logger.With().Str("component", "gateway").Logger(),
		authToken: cfg.AuthToken,
		limiter:   rate.NewLimiter(limit, burst),
	}

	router := chi.NewRouter()
	router.Use(s.requestLogger)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/v1/totals/{day}", s.handleTotals)

	router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Use(s.rateLimit)
		r.Post("/v1/presence", s.handlePresence)
		r.Post("/v1/presence/snapshot", s.handleSnapshot)
		r.Post("/v1/report", s.handleManualReport)
		r.Get("/v1/events", s.handleEvents)
	})

	s.server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	return s
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the gateway server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting gateway server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()
	return nil
}

// Stop stops the gateway server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping gateway server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
