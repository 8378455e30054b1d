// Package rpc serves request envelopes over HTTP.
package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"omni/go-backend/internal/platform/metrics"
	"omni/go-backend/internal/platform/ratelimiter"
)

const DefaultAddr = "127.0.0.1:8000"

const shutdownTimeout = 5 * time.Second

// EnvelopeHandler turns a request envelope into a response envelope.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, raw []byte) []byte
}

type Options struct {
	RateLimit ratelimiter.Config
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

type Server struct {
	httpServer *http.Server
	handler    EnvelopeHandler
	limiter    *ratelimiter.MapLimiter
	metrics    *metrics.Collector
	logger     *slog.Logger
}

// NewServer builds the HTTP transport. addr is either host:port or a
// multiaddr such as /ip4/127.0.0.1/tcp/8000.
func NewServer(addr string, handler EnvelopeHandler, opts Options) (*Server, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	hostPort, err := ResolveListenAddr(addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		handler: handler,
		limiter: ratelimiter.FromConfig(opts.RateLimit),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.httpServer = &http.Server{
		Addr:              hostPort,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler exposes the routes for embedding and tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleEnvelope)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

func (s *Server) Addr() string { return s.httpServer.Addr }

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	default:
	}
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("http transport listening", "component", "rpc", "operation", "serve", "addr", ln.Addr().String())
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
