package message

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is the stable numeric identifier of a protocol error.
// Negative codes belong to the protocol itself, positive ranges to modules.
type ErrorCode int64

const (
	CodeUnknown                 ErrorCode = 0
	CodeInternalServerError     ErrorCode = -1
	CodeInvalidMethodName       ErrorCode = -2
	CodeUnknownDestination      ErrorCode = -3
	CodeCouldNotVerifySignature ErrorCode = -4
	CodeSerializationError      ErrorCode = -5
	CodeDeserializationError    ErrorCode = -6
	CodeInvalidIdentity         ErrorCode = -7
	CodeRateLimited             ErrorCode = -8
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:                 "unknown",
	CodeInternalServerError:     "internal_server_error",
	CodeInvalidMethodName:       "invalid_method_name",
	CodeUnknownDestination:      "unknown_destination",
	CodeCouldNotVerifySignature: "could_not_verify_signature",
	CodeSerializationError:      "serialization_error",
	CodeDeserializationError:    "deserialization_error",
	CodeInvalidIdentity:         "invalid_identity",
	CodeRateLimited:             "rate_limited",
}

// RegisterCodeName gives a module error code a readable name for logs.
// It is meant to be called from package init.
func RegisterCodeName(code ErrorCode, name string) {
	codeNames[code] = name
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error_%d", int64(c))
}

// Error is the error carried in a ResponseMessage. Message is a template in
// which "{name}" is replaced by Arguments["name"].
type Error struct {
	Code      ErrorCode         `cbor:"0,keyasint"`
	Message   string            `cbor:"1,keyasint,omitempty"`
	Arguments map[string]string `cbor:"2,keyasint,omitempty"`
}

// NewError builds an error from a template and alternating name/value pairs.
func NewError(code ErrorCode, template string, kv ...string) *Error {
	e := &Error{Code: code, Message: template}
	if len(kv) > 0 {
		e.Arguments = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Arguments[kv[i]] = kv[i+1]
		}
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if len(e.Arguments) == 0 {
		return msg
	}
	keys := make([]string, 0, len(e.Arguments))
	for k := range e.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", e.Arguments[k])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Is matches any *Error with the same code, so sentinels such as
// ErrInvalidMethodName work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// Argument returns a named template argument.
func (e *Error) Argument(name string) string {
	if e == nil {
		return ""
	}
	return e.Arguments[name]
}

var (
	ErrInternalServerError     = &Error{Code: CodeInternalServerError}
	ErrInvalidMethodName       = &Error{Code: CodeInvalidMethodName}
	ErrUnknownDestination      = &Error{Code: CodeUnknownDestination}
	ErrCouldNotVerifySignature = &Error{Code: CodeCouldNotVerifySignature}
	ErrSerialization           = &Error{Code: CodeSerializationError}
	ErrDeserialization         = &Error{Code: CodeDeserializationError}
	ErrInvalidIdentity         = &Error{Code: CodeInvalidIdentity}
	ErrRateLimited             = &Error{Code: CodeRateLimited}
)

func InternalServerError(reason string) *Error {
	return NewError(CodeInternalServerError, "Internal server error: {reason}.", "reason", reason)
}

func InvalidMethodName(method string) *Error {
	return NewError(CodeInvalidMethodName, `Invalid method name: "{method}".`, "method", method)
}

func UnknownDestination(to, this string) *Error {
	return NewError(CodeUnknownDestination,
		"Unknown destination for message.\nThis is \"{this}\", message was for \"{to}\".",
		"to", to, "this", this)
}

func CouldNotVerifySignature(details string) *Error {
	return NewError(CodeCouldNotVerifySignature, "Could not verify the signature: {details}.", "details", details)
}

func RateLimited(sender string) *Error {
	return NewError(CodeRateLimited, `Too many requests from "{sender}".`, "sender", sender)
}

func SerializationError(details string) *Error {
	return NewError(CodeSerializationError, "Serialization error:\n{details}", "details", details)
}

func DeserializationError(details string) *Error {
	return NewError(CodeDeserializationError, "Deserialization error:\n{details}", "details", details)
}

func InvalidIdentity(details string) *Error {
	return NewError(CodeInvalidIdentity, "Identity is invalid: {details}.", "details", details)
}

// AsError converts any error into a protocol error, keeping *Error values
// found in the chain.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return InternalServerError(err.Error())
}
