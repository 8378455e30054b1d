package message

import (
	"omni/go-backend/internal/identity"
)

// ProtocolVersion is the message format revision this package produces.
const ProtocolVersion = 1

// RequestMessage is the decoded payload of a request envelope.
type RequestMessage struct {
	Version   uint8             `cbor:"0,keyasint,omitempty"`
	From      identity.Identity `cbor:"1,keyasint"`
	To        identity.Identity `cbor:"2,keyasint"`
	Method    string            `cbor:"3,keyasint"`
	Data      []byte            `cbor:"4,keyasint,omitempty"`
	Timestamp int64             `cbor:"5,keyasint,omitempty"`
	ID        uint64            `cbor:"6,keyasint,omitempty"`
}

// ResponseMessage is the decoded payload of a response envelope. A response
// is a success carrying Data unless Error is set.
type ResponseMessage struct {
	Version   uint8             `cbor:"0,keyasint,omitempty"`
	From      identity.Identity `cbor:"1,keyasint"`
	To        identity.Identity `cbor:"2,keyasint"`
	Data      []byte            `cbor:"4,keyasint,omitempty"`
	Error     *Error            `cbor:"5,keyasint,omitempty"`
	Timestamp int64             `cbor:"6,keyasint,omitempty"`
	ID        uint64            `cbor:"7,keyasint,omitempty"`
}

// Success builds a response carrying data.
func Success(data []byte) *ResponseMessage {
	return &ResponseMessage{Version: ProtocolVersion, Data: data}
}

// Failure builds a response carrying err.
func Failure(err error) *ResponseMessage {
	return &ResponseMessage{Version: ProtocolVersion, Error: AsError(err)}
}

// ReplyTo fills the addressing fields of a response to req.
func (r *ResponseMessage) ReplyTo(req *RequestMessage, from identity.Identity) *ResponseMessage {
	r.From = from
	if req != nil {
		r.To = req.From
		r.ID = req.ID
	}
	if r.Version == 0 {
		r.Version = ProtocolVersion
	}
	return r
}

// Result returns the payload or the carried error.
func (r *ResponseMessage) Result() ([]byte, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	return r.Data, nil
}
