package server

import (
	"context"
	"fmt"
	"time"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/platform/metrics"
)

// Validate checks that req is addressed to this server and names a known
// method. It does not execute anything.
func (s *Server) Validate(req *message.RequestMessage) error {
	if err := s.checkDestination(req); err != nil {
		return err
	}
	if !s.HasMethod(req.Method) {
		return message.InvalidMethodName(req.Method)
	}
	return nil
}

func (s *Server) checkDestination(req *message.RequestMessage) error {
	if !req.To.IsAnonymous() && req.To != s.identity {
		return message.UnknownDestination(req.To.String(), s.identity.String())
	}
	return nil
}

// Execute answers req. Built-ins are served directly; every other method goes
// to the module that registered it. The response always names this server as
// its sender.
func (s *Server) Execute(ctx context.Context, req *message.RequestMessage) (*message.ResponseMessage, error) {
	resp, err := s.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.ReplyTo(req, s.identity), nil
}

func (s *Server) execute(ctx context.Context, req *message.RequestMessage) (*message.ResponseMessage, error) {
	switch req.Method {
	case MethodStatus:
		data, err := codec.Marshal(s.Status())
		if err != nil {
			return nil, message.SerializationError(err.Error())
		}
		return message.Success(data), nil
	case MethodHeartbeat:
		return message.Success(nil), nil
	case MethodEcho:
		return message.Success(append([]byte(nil), req.Data...)), nil
	case MethodEndpoints:
		data, err := codec.Marshal(s.Endpoints())
		if err != nil {
			return nil, message.SerializationError(err.Error())
		}
		return message.Success(data), nil
	}

	index, ok := s.methods[req.Method]
	if !ok {
		return nil, message.InvalidMethodName(req.Method)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := s.modules[index].Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, message.InternalServerError(fmt.Sprintf("module %q returned no response", s.modules[index].Info().Name))
	}
	return resp, nil
}

// HandleEnvelope runs the full request pipeline on raw envelope bytes and
// returns the signed response envelope. Every failure is reported to the
// caller as an error response.
func (s *Server) HandleEnvelope(ctx context.Context, raw []byte) []byte {
	started := time.Now()
	req, env, err := message.OpenRequest(raw)
	if err != nil {
		s.observe("", metrics.OutcomeRejected, started, err)
		return s.seal(message.Failure(err).ReplyTo(nil, s.identity))
	}
	// The destination is checked before the signature.
	if err := s.checkDestination(req); err != nil {
		s.observe(req.Method, metrics.OutcomeRejected, started, err)
		return s.seal(message.Failure(err).ReplyTo(req, s.identity))
	}
	if err := message.VerifyRequest(env, req, s.verifier); err != nil {
		s.observe(req.Method, metrics.OutcomeRejected, started, err)
		return s.seal(message.Failure(err).ReplyTo(nil, s.identity))
	}
	if !req.From.IsAnonymous() && !s.senders.Allow("id:"+req.From.String(), started) {
		s.metrics.Throttled("sender")
		err := message.RateLimited(req.From.String())
		s.observe(req.Method, metrics.OutcomeRejected, started, err)
		return s.seal(message.Failure(err).ReplyTo(req, s.identity))
	}
	if err := s.Validate(req); err != nil {
		s.observe(req.Method, metrics.OutcomeRejected, started, err)
		return s.seal(message.Failure(err).ReplyTo(req, s.identity))
	}

	resp, err := s.Execute(ctx, req)
	if err != nil {
		s.observe(req.Method, metrics.OutcomeError, started, err)
		return s.seal(message.Failure(err).ReplyTo(req, s.identity))
	}
	s.observe(req.Method, metrics.OutcomeOK, started, nil)
	return s.seal(resp)
}

func (s *Server) seal(resp *message.ResponseMessage) []byte {
	resp.Timestamp = time.Now().Unix()
	out, err := message.SignResponse(s.signer, resp)
	if err == nil {
		return out
	}
	s.logger.Error("response signing failed",
		"component", componentName,
		"operation", "seal",
		"error", err.Error(),
	)
	fallback := message.Failure(message.InternalServerError("could not sign response")).ReplyTo(nil, s.identity)
	out, err = message.Seal(nil, fallback)
	if err != nil {
		return nil
	}
	return out
}

func (s *Server) observe(method, outcome string, started time.Time, err error) {
	label := method
	if !s.HasMethod(method) {
		label = "unknown"
	}
	s.metrics.ObserveRequest(label, outcome, started)
	latency := time.Since(started).Milliseconds()
	if err != nil {
		code := message.AsError(err).Code
		s.logger.Warn("omni request failed",
			"component", componentName,
			"operation", "dispatch",
			"method", label,
			"outcome", outcome,
			"error_code", code.String(),
			"latency_ms", latency,
		)
		return
	}
	s.logger.Info("omni request",
		"component", componentName,
		"operation", "dispatch",
		"method", label,
		"outcome", outcome,
		"latency_ms", latency,
	)
}
