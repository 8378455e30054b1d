// Package client calls omni servers: it builds and signs request envelopes,
// hands them to a Sender and verifies the responses.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/server"
)

// Sender moves envelope bytes to a server and returns its reply.
type Sender interface {
	Send(ctx context.Context, envelope []byte) ([]byte, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, envelope []byte) ([]byte, error)

func (f SenderFunc) Send(ctx context.Context, envelope []byte) ([]byte, error) {
	return f(ctx, envelope)
}

var ErrUnexpectedResponder = errors.New("response was not sent by the addressed server")

type Client struct {
	sender   Sender
	signer   message.Signer
	to       identity.Identity
	verifier message.Verifier
	nextID   atomic.Uint64
}

// New returns a client addressing to. A nil signer sends anonymous requests;
// an anonymous to lets any server answer.
func New(sender Sender, to identity.Identity, signer message.Signer) *Client {
	return &Client{
		sender:   sender,
		signer:   signer,
		to:       to,
		verifier: identity.Ed25519Verifier{},
	}
}

// Identity is the sender identity of the client's requests.
func (c *Client) Identity() identity.Identity {
	if c.signer == nil {
		return identity.Anonymous()
	}
	return c.signer.Identity()
}

// CallRaw sends data to method and returns the raw result payload.
func (c *Client) CallRaw(ctx context.Context, method string, data []byte) ([]byte, error) {
	req := &message.RequestMessage{
		To:        c.to,
		Method:    method,
		Data:      data,
		Timestamp: time.Now().Unix(),
		ID:        c.nextID.Add(1),
	}
	raw, err := message.SignRequest(c.signer, req)
	if err != nil {
		return nil, err
	}
	reply, err := c.sender.Send(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	resp, err := message.DecodeResponse(reply, c.verifier)
	if err != nil {
		return nil, err
	}
	if !c.to.IsAnonymous() && resp.From != c.to {
		return nil, ErrUnexpectedResponder
	}
	return resp.Result()
}

// Call encodes args, calls method and decodes the result into out. A nil out
// discards the result.
func (c *Client) Call(ctx context.Context, method string, args, out any) error {
	var data []byte
	if args != nil {
		encoded, err := codec.Marshal(args)
		if err != nil {
			return message.SerializationError(err.Error())
		}
		data = encoded
	}
	result, err := c.CallRaw(ctx, method, data)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(result, out); err != nil {
		return message.DeserializationError(err.Error())
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (server.Status, error) {
	var st server.Status
	err := c.Call(ctx, server.MethodStatus, nil, &st)
	return st, err
}

func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.CallRaw(ctx, server.MethodHeartbeat, nil)
	return err
}

func (c *Client) Echo(ctx context.Context, data []byte) ([]byte, error) {
	return c.CallRaw(ctx, server.MethodEcho, data)
}

func (c *Client) Endpoints(ctx context.Context) ([]string, error) {
	var out []string
	err := c.Call(ctx, server.MethodEndpoints, nil, &out)
	return out, err
}
