/*
Package api exposes the matcher over HTTP.

Routes:

	POST /tool/add      register a tool, echo it back with 201
	GET  /tool/match    resolve ?task= to a tool name
	GET  /healthz       liveness
	GET  /readyz        readiness, probes the collection
	GET  /metrics       Prometheus exposition, when configured

Every failure is answered with a JSON object carrying a single "message".
*/
package api

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/khanglvm/tooldb/internal/matcher"
	"github.com/khanglvm/tooldb/internal/observe"
)

// maxBodyBytes bounds the size of a registration request.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to a matcher.Service.
type Server struct {
	svc            *matcher.Service
	logger         *zap.Logger
	metrics        *observe.Metrics
	metricsHandler http.Handler
	checkers       []Checker
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and error logs.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request durations into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithCheckers adds readiness checks next to the collection probe.
func WithCheckers(c ...Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, c...) }
}

// New returns a Server for svc.
func New(svc *matcher.Service, opts ...Option) (*Server, error) {
	s := &Server{
		svc:    svc,
		logger: zap.NewNop(),
	}
	s.checkers = []Checker{{
		Name: "collection",
		Check: func(ctx context.Context) error {
			_, err := svc.Size(ctx)
			return err
		},
	}}
	for _, o := range opts {
		o(s)
	}

	if s.metrics == nil {
		m, err := observe.NewMetrics(noop.NewMeterProvider())
		if err != nil {
			return nil, err
		}
		s.metrics = m
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tool/add", s.handleAdd)
	mux.HandleFunc("GET /tool/match", s.handleMatch)

	NewHealth(s.checkers...).Register(mux)

	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	return observe.Middleware(s.metrics, s.logger)(recoverer(s.logger)(mux))
}
