package identity

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBORTag marks an identity byte string on the wire.
const CBORTag = 10000

func (id Identity) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{Number: CBORTag, Content: id.Bytes()})
}

// UnmarshalCBOR accepts the tagged form, a bare byte string or the text form.
func (id *Identity) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if tag, ok := v.(cbor.Tag); ok {
		if tag.Number != CBORTag {
			return fmt.Errorf("%w: unexpected tag %d", ErrMalformed, tag.Number)
		}
		v = tag.Content
	}
	var (
		parsed Identity
		err    error
	)
	switch raw := v.(type) {
	case []byte:
		parsed, err = FromBytes(raw)
	case string:
		parsed, err = Parse(raw)
	default:
		return fmt.Errorf("%w: unexpected cbor type %T", ErrMalformed, v)
	}
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
