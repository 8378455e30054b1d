package grpcrpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"omni/go-backend/internal/platform/metrics"
	"omni/go-backend/internal/platform/ratelimiter"
)

const (
	transportName = "grpc"
	// MaxMsgBytes bounds envelopes in both directions.
	MaxMsgBytes = 1 << 20
)

// EnvelopeHandler turns a request envelope into a response envelope.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, raw []byte) []byte
}

type Options struct {
	RateLimit ratelimiter.Config
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// Server exposes an EnvelopeHandler over the Omni gRPC service.
type Server struct {
	UnimplementedOmniServer
	handler EnvelopeHandler
	limiter *ratelimiter.MapLimiter
	metrics *metrics.Collector
	logger  *slog.Logger
	grpc    *grpc.Server
}

func NewServer(handler EnvelopeHandler, opts Options) *Server {
	s := &Server{
		handler: handler,
		limiter: ratelimiter.FromConfig(opts.RateLimit),
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.grpc = grpc.NewServer(
		grpc.MaxRecvMsgSize(MaxMsgBytes),
		grpc.MaxSendMsgSize(MaxMsgBytes),
	)
	RegisterOmniServer(s.grpc, s)
	return s
}

func (s *Server) Call(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.handler == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing handler")
	}
	if !s.limiter.Allow(peerKey(ctx), time.Now()) {
		s.metrics.Throttled(transportName)
		return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
	}
	out := s.handler.HandleEnvelope(ctx, in.GetValue())
	if out == nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return wrapperspb.Bytes(out), nil
}

// Serve accepts connections on ln until ctx is cancelled, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("grpc transport listening", "component", "grpcrpc", "operation", "serve", "addr", ln.Addr().String())
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop terminates all connections immediately.
func (s *Server) Stop() { s.grpc.Stop() }

func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "ip:unknown"
	}
	addr := p.Addr.String()
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "ip:" + addr
	}
	return "ip:" + host
}
