package message

import (
	"errors"
	"fmt"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
)

// Signer produces detached signatures on behalf of one identity.
type Signer interface {
	Identity() identity.Identity
	PublicKey() identity.PublicKey
	Sign(msg []byte) ([]byte, error)
}

// Verifier checks a detached signature against a public key.
type Verifier interface {
	Verify(msg, sig []byte, key identity.PublicKey) bool
}

// Envelope is the signed wire container of a request or response. Payload
// holds the deterministic encoding of the message and is what gets signed.
type Envelope struct {
	Payload   []byte              `cbor:"1,keyasint"`
	Key       *identity.PublicKey `cbor:"2,keyasint,omitempty"`
	Signature []byte              `cbor:"3,keyasint,omitempty"`
}

var ErrEmptyPayload = errors.New("envelope payload is empty")

// Seal encodes msg and signs it. A nil signer produces an unsigned envelope,
// which is only acceptable for messages from the anonymous identity.
func Seal(signer Signer, msg any) ([]byte, error) {
	payload, err := codec.Marshal(msg)
	if err != nil {
		return nil, SerializationError(err.Error())
	}
	env := Envelope{Payload: payload}
	if signer != nil && signer.Identity().IsAddressable() {
		sig, err := signer.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("sign envelope: %w", err)
		}
		pk := signer.PublicKey()
		env.Key = &pk
		env.Signature = sig
	}
	out, err := codec.Marshal(env)
	if err != nil {
		return nil, SerializationError(err.Error())
	}
	return out, nil
}

// SignRequest stamps the signer's identity as sender and seals req.
func SignRequest(signer Signer, req *RequestMessage) ([]byte, error) {
	if signer != nil {
		req.From = signer.Identity()
	} else {
		req.From = identity.Anonymous()
	}
	if req.Version == 0 {
		req.Version = ProtocolVersion
	}
	return Seal(signer, req)
}

// SignResponse seals resp with the responder's key.
func SignResponse(signer Signer, resp *ResponseMessage) ([]byte, error) {
	return Seal(signer, resp)
}

// DecodeRequest opens a request envelope and verifies that its sender really
// signed it.
func DecodeRequest(raw []byte, verifier Verifier) (*RequestMessage, error) {
	req, env, err := OpenRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := VerifyRequest(env, req, verifier); err != nil {
		return nil, err
	}
	return req, nil
}

// OpenRequest decodes a request envelope without checking its signature.
// Callers must run VerifyRequest before trusting req.From.
func OpenRequest(raw []byte) (*RequestMessage, *Envelope, error) {
	env, err := openEnvelope(raw)
	if err != nil {
		return nil, nil, err
	}
	var req RequestMessage
	if err := codec.Unmarshal(env.Payload, &req); err != nil {
		return nil, nil, DeserializationError(err.Error())
	}
	return &req, env, nil
}

// VerifyRequest checks that the sender of req signed env.
func VerifyRequest(env *Envelope, req *RequestMessage, verifier Verifier) error {
	return verifySender(env, req.From, verifier)
}

// DecodeResponse opens a response envelope and verifies its sender.
func DecodeResponse(raw []byte, verifier Verifier) (*ResponseMessage, error) {
	env, err := openEnvelope(raw)
	if err != nil {
		return nil, err
	}
	var resp ResponseMessage
	if err := codec.Unmarshal(env.Payload, &resp); err != nil {
		return nil, DeserializationError(err.Error())
	}
	if err := verifySender(env, resp.From, verifier); err != nil {
		return nil, err
	}
	return &resp, nil
}

func openEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		return nil, DeserializationError(err.Error())
	}
	if len(env.Payload) == 0 {
		return nil, DeserializationError(ErrEmptyPayload.Error())
	}
	return &env, nil
}

func verifySender(env *Envelope, from identity.Identity, verifier Verifier) error {
	if from.IsAnonymous() {
		return nil
	}
	if env.Key == nil || len(env.Signature) == 0 {
		return CouldNotVerifySignature("missing signature")
	}
	if from.IsSubresource() {
		return CouldNotVerifySignature("sender must be a public key identity")
	}
	if !from.MatchesKey(*env.Key) {
		return CouldNotVerifySignature("key does not match sender identity")
	}
	if verifier == nil {
		verifier = identity.Ed25519Verifier{}
	}
	if !verifier.Verify(env.Payload, env.Signature, *env.Key) {
		return CouldNotVerifySignature("invalid signature")
	}
	return nil
}
