package message

import (
	"errors"
	"testing"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
)

func newSigner(t *testing.T) *identity.KeyPair {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return kp
}

func TestSignedRequestRoundTrip(t *testing.T) {
	kp := newSigner(t)
	req := &RequestMessage{To: identity.Anonymous(), Method: "echo", Data: []byte{1, 2, 3}, ID: 9}
	raw, err := SignRequest(kp, req)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}
	got, err := DecodeRequest(raw, nil)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if got.From != kp.Identity() || got.Method != "echo" || got.ID != 9 || string(got.Data) != "\x01\x02\x03" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Version != ProtocolVersion {
		t.Fatalf("expected version %d, got %d", ProtocolVersion, got.Version)
	}
}

func TestAnonymousRequestNeedsNoSignature(t *testing.T) {
	raw, err := SignRequest(nil, &RequestMessage{Method: "heartbeat"})
	if err != nil {
		t.Fatalf("seal anonymous request: %v", err)
	}
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Key != nil || len(env.Signature) != 0 {
		t.Fatal("anonymous envelope must not carry a signature")
	}
	got, err := DecodeRequest(raw, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.From.IsAnonymous() {
		t.Fatal("sender must be anonymous")
	}
}

func TestTamperedPayloadRejected(t *testing.T) {
	kp := newSigner(t)
	raw, err := SignRequest(kp, &RequestMessage{Method: "echo", Data: []byte("a")})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var env Envelope
	if err := codec.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var req RequestMessage
	if err := codec.Unmarshal(env.Payload, &req); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	req.Data = []byte("b")
	env.Payload = codec.MustMarshal(req)
	tampered := codec.MustMarshal(env)

	if _, err := DecodeRequest(tampered, nil); !errors.Is(err, ErrCouldNotVerifySignature) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestSenderKeyMismatchRejected(t *testing.T) {
	kp := newSigner(t)
	other := newSigner(t)
	req := RequestMessage{Version: ProtocolVersion, From: other.Identity(), Method: "echo"}
	payload := codec.MustMarshal(req)
	sig, _ := kp.Sign(payload)
	pk := kp.PublicKey()
	raw := codec.MustMarshal(Envelope{Payload: payload, Key: &pk, Signature: sig})

	_, err := DecodeRequest(raw, nil)
	if !errors.Is(err, ErrCouldNotVerifySignature) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestUnsignedNonAnonymousRejected(t *testing.T) {
	kp := newSigner(t)
	req := RequestMessage{From: kp.Identity(), Method: "echo"}
	raw := codec.MustMarshal(Envelope{Payload: codec.MustMarshal(req)})
	if _, err := DecodeRequest(raw, nil); !errors.Is(err, ErrCouldNotVerifySignature) {
		t.Fatalf("expected signature failure, got %v", err)
	}
}

func TestGarbageIsDeserializationError(t *testing.T) {
	for _, raw := range [][]byte{nil, {0xff}, codec.MustMarshal(Envelope{})} {
		if _, err := DecodeRequest(raw, nil); !errors.Is(err, ErrDeserialization) {
			t.Fatalf("expected deserialization error for %x, got %v", raw, err)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	kp := newSigner(t)
	req := &RequestMessage{From: identity.Anonymous(), ID: 4}
	resp := Failure(InvalidMethodName("nope")).ReplyTo(req, kp.Identity())
	raw, err := SignResponse(kp, resp)
	if err != nil {
		t.Fatalf("sign response: %v", err)
	}
	got, err := DecodeResponse(raw, identity.Ed25519Verifier{})
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.From != kp.Identity() || got.ID != 4 {
		t.Fatalf("unexpected addressing: %+v", got)
	}
	if _, err := got.Result(); !errors.Is(err, ErrInvalidMethodName) {
		t.Fatalf("expected invalid method error, got %v", err)
	}
	if got.Error.Argument("method") != "nope" {
		t.Fatalf("argument lost: %+v", got.Error)
	}
}
