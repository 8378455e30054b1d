// Package codec holds the CBOR encoding used for every payload that is
// hashed, signed or sent over the wire.
package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const maxNestedLevels = 32

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

var ErrTrailingData = errors.New("cbor: trailing data after value")

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeUnix
	encMode, err = opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: maxNestedLevels,
		IndefLength:     cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: dec mode: %v", err))
	}
}

// Marshal encodes v with core deterministic encoding so equal values always
// produce equal bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// MustMarshal is Marshal for values whose encoding cannot fail.
func MustMarshal(v any) []byte {
	out, err := Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("codec: marshal %T: %v", v, err))
	}
	return out
}

// Unmarshal decodes exactly one CBOR item from data into v.
func Unmarshal(data []byte, v any) error {
	rest, err := decMode.UnmarshalFirst(data, v)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return ErrTrailingData
	}
	return nil
}

// Diagnose renders data in CBOR diagnostic notation.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// Equal reports whether a and b encode to the same bytes.
func Equal(a, b any) bool {
	ea, err := Marshal(a)
	if err != nil {
		return false
	}
	eb, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// Empty is the encoding of an empty map, returned by calls with no result.
var Empty = []byte{0xa0}
