package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session lifecycle metrics
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicetime_sessions_started_total",
			Help: "Total presence sessions opened",
		},
	)

	SessionsEnded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicetime_sessions_ended_total",
			Help: "Total presence sessions closed",
		},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicetime_open_sessions",
			Help: "Number of currently open presence sessions",
		},
	)

	SecondsTracked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicetime_seconds_tracked_total",
			Help: "Total seconds accumulated into day buckets",
		},
	)

	Rollovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicetime_rollovers_total",
			Help: "Total midnight rollover passes",
		},
	)

	// Report metrics
	ReportsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicetime_reports_posted_total",
			Help: "Total reports posted",
		},
		[]string{"trigger"},
	)

	ReportFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicetime_report_failures_total",
			Help: "Total report delivery failures",
		},
		[]string{"trigger"},
	)

	// Gateway metrics
	PresenceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicetime_presence_events_total",
			Help: "Presence events received by the gateway",
		},
		[]string{"kind"},
	)

	// Storage metrics
	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicetime_store_errors_total",
			Help: "Storage operation failures surfaced to the core",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsStarted,
		SessionsEnded,
		OpenSessions,
		SecondsTracked,
		Rollovers,
		ReportsPosted,
		ReportFailures,
		PresenceEvents,
		StoreErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
