package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "evcharge/internal/log"
	"evcharge/internal/middleware/ratelimit"
	"evcharge/internal/middleware/security"
	"evcharge/internal/middleware/trace"
	"evcharge/internal/services"
)

// ReadinessChecker reports whether the backing store is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

// Server is the JSON API over one charging service.
type Server struct {
	http.Server

	svc      *services.ChargingService
	ready    ReadinessChecker
	logger   *applog.Logger
	metrics  *Metrics
	limiter  *ratelimit.Limiter
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// Option customizes a Server.
type Option func(*Server)

// WithReadinessChecker makes /readyz ping the backend.
func WithReadinessChecker(c ReadinessChecker) Option {
	return func(s *Server) { s.ready = c }
}

// WithLogger sets the base request logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRateLimit sets the mutating requests allowed per client per minute.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: perMinute})
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc *services.ChargingService, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		svc:      svc,
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.metrics = NewMetrics(
		func() float64 { return float64(len(s.svc.Records())) },
		func() float64 { return float64(s.limiter.Hits()) },
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleCreateRecord)
	mux.HandleFunc("PUT /api/records/{position}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /api/records/{position}", s.handleDeleteRecord)
	mux.HandleFunc("POST /api/import", s.handleImport)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/chart", s.handleChart)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	})(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics.ObserveRequest).Middleware(h)
	s.Handler = h

	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
