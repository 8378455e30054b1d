package grpcrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Sender sends envelopes over a gRPC connection. It satisfies client.Sender.
type Sender struct {
	cc     *grpc.ClientConn
	client OmniClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

// Dial connects lazily to target; extra options are appended to the
// defaults (insecure transport, message size limits).
func Dial(target string, opts ...grpc.DialOption) (*Sender, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMsgBytes),
			grpc.MaxCallSendMsgSize(MaxMsgBytes),
		),
	}
	cc, err := grpc.NewClient(target, append(dialOpts, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Sender{cc: cc, client: NewOmniClient(cc)}, nil
}

func (s *Sender) Close() error {
	if s == nil || s.cc == nil {
		return nil
	}
	return s.cc.Close()
}

func (s *Sender) Send(ctx context.Context, envelope []byte) ([]byte, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	reply, err := s.client.Call(ctx, wrapperspb.Bytes(envelope))
	if err != nil {
		return nil, err
	}
	return reply.GetValue(), nil
}
