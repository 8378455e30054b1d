package identity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/multiformats/go-multihash"
)

// Kind distinguishes the three shapes an Identity can take.
type Kind uint8

const (
	KindAnonymous   Kind = 0x00
	KindPublicKey   Kind = 0x01
	KindSubresource Kind = 0x02
)

func (k Kind) String() string {
	switch k {
	case KindAnonymous:
		return "anonymous"
	case KindPublicKey:
		return "public_key"
	case KindSubresource:
		return "subresource"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	// HashSize is the length of the public key digest carried by addressable identities.
	HashSize = 28

	textPrefix = "m"

	anonymousLen   = 1
	publicKeyLen   = 1 + HashSize
	subresourceLen = 1 + HashSize + 4
)

var (
	ErrMalformed      = errors.New("malformed identity")
	ErrNotAddressable = errors.New("identity is not addressable")
)

// Identity is the network address of a party. The zero value is the
// anonymous identity. Values are comparable and usable as map keys.
type Identity struct {
	kind Kind
	hash [HashSize]byte
	sub  uint32
}

// Anonymous returns the identity of an unauthenticated party.
func Anonymous() Identity {
	return Identity{}
}

// FromPublicKey derives the identity bound to a public key.
func FromPublicKey(pk PublicKey) (Identity, error) {
	encoded, err := pk.MarshalCBOR()
	if err != nil {
		return Identity{}, err
	}
	return fromEncodedKey(encoded)
}

func fromEncodedKey(encoded []byte) (Identity, error) {
	mh, err := multihash.Sum(encoded, multihash.SHA3_224, -1)
	if err != nil {
		return Identity{}, fmt.Errorf("identity digest: %w", err)
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return Identity{}, fmt.Errorf("identity digest: %w", err)
	}
	if len(decoded.Digest) != HashSize {
		return Identity{}, fmt.Errorf("identity digest: unexpected length %d", len(decoded.Digest))
	}
	id := Identity{kind: KindPublicKey}
	copy(id.hash[:], decoded.Digest)
	return id, nil
}

// FromBytes parses the binary form produced by Bytes.
func FromBytes(raw []byte) (Identity, error) {
	if len(raw) == 0 {
		return Identity{}, ErrMalformed
	}
	switch Kind(raw[0]) {
	case KindAnonymous:
		if len(raw) != anonymousLen {
			return Identity{}, ErrMalformed
		}
		return Identity{}, nil
	case KindPublicKey:
		if len(raw) != publicKeyLen {
			return Identity{}, ErrMalformed
		}
		id := Identity{kind: KindPublicKey}
		copy(id.hash[:], raw[1:])
		return id, nil
	case KindSubresource:
		if len(raw) != subresourceLen {
			return Identity{}, ErrMalformed
		}
		id := Identity{kind: KindSubresource}
		copy(id.hash[:], raw[1:1+HashSize])
		id.sub = binary.BigEndian.Uint32(raw[1+HashSize:])
		return id, nil
	default:
		return Identity{}, ErrMalformed
	}
}

// Parse reads the textual form ("m" followed by base58 of Bytes).
func Parse(text string) (Identity, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, textPrefix) || len(text) == len(textPrefix) {
		return Identity{}, ErrMalformed
	}
	raw, err := base58.Decode(text[len(textPrefix):])
	if err != nil {
		return Identity{}, ErrMalformed
	}
	return FromBytes(raw)
}

// MustParse is Parse for fixtures and constants.
func MustParse(text string) Identity {
	id, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("identity.MustParse(%q): %v", text, err))
	}
	return id
}

func (id Identity) Kind() Kind { return id.kind }

func (id Identity) IsAnonymous() bool { return id.kind == KindAnonymous }

func (id Identity) IsPublicKey() bool { return id.kind == KindPublicKey }

func (id Identity) IsSubresource() bool { return id.kind == KindSubresource }

// IsAddressable reports whether the identity can be the target of a request.
func (id Identity) IsAddressable() bool { return id.kind != KindAnonymous }

// MatchesKey reports whether id is the public-key identity of pk.
func (id Identity) MatchesKey(pk PublicKey) bool {
	if id.kind != KindPublicKey {
		return false
	}
	derived, err := FromPublicKey(pk)
	if err != nil {
		return false
	}
	return derived == id
}

// WithSubresource returns the subresource sub of the public key behind id.
func (id Identity) WithSubresource(sub uint32) (Identity, error) {
	if !id.IsAddressable() {
		return Identity{}, ErrNotAddressable
	}
	return Identity{kind: KindSubresource, hash: id.hash, sub: sub}, nil
}

// Subresource returns the subresource discriminator, if any.
func (id Identity) Subresource() (uint32, bool) {
	if id.kind != KindSubresource {
		return 0, false
	}
	return id.sub, true
}

// Parent strips the subresource discriminator.
func (id Identity) Parent() Identity {
	if id.kind != KindSubresource {
		return id
	}
	return Identity{kind: KindPublicKey, hash: id.hash}
}

// Bytes is the canonical binary form. Ordering of identities follows it.
func (id Identity) Bytes() []byte {
	switch id.kind {
	case KindPublicKey:
		out := make([]byte, publicKeyLen)
		out[0] = byte(KindPublicKey)
		copy(out[1:], id.hash[:])
		return out
	case KindSubresource:
		out := make([]byte, subresourceLen)
		out[0] = byte(KindSubresource)
		copy(out[1:], id.hash[:])
		binary.BigEndian.PutUint32(out[1+HashSize:], id.sub)
		return out
	default:
		return []byte{byte(KindAnonymous)}
	}
}

func (id Identity) String() string {
	return textPrefix + base58.Encode(id.Bytes())
}

// Compare orders identities byte-wise over their binary form.
func Compare(a, b Identity) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

func (id Identity) Equal(other Identity) bool {
	return id == other
}

func (id Identity) Less(other Identity) bool {
	return Compare(id, other) < 0
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
