package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"omni/go-backend/internal/codec"
)

// COSE labels and values for an Ed25519 OKP key.
const (
	coseKtyOKP     = 1
	coseAlgEdDSA   = -8
	coseCrvEd25519 = 6
)

var (
	ErrInvalidKey     = errors.New("invalid public key")
	ErrInvalidSeed    = errors.New("invalid key seed")
	ErrMissingKeyPair = errors.New("key pair is not initialized")
)

// PublicKey is the COSE_Key encoding of an Ed25519 verifying key.
type PublicKey struct {
	Kty int    `cbor:"1,keyasint"`
	Alg int    `cbor:"3,keyasint"`
	Crv int    `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
}

type coseKey PublicKey

func NewPublicKey(pub ed25519.PublicKey) PublicKey {
	x := make([]byte, len(pub))
	copy(x, pub)
	return PublicKey{Kty: coseKtyOKP, Alg: coseAlgEdDSA, Crv: coseCrvEd25519, X: x}
}

func (pk PublicKey) Validate() error {
	if pk.Kty != coseKtyOKP || pk.Crv != coseCrvEd25519 {
		return fmt.Errorf("%w: unsupported key type %d/%d", ErrInvalidKey, pk.Kty, pk.Crv)
	}
	if pk.Alg != coseAlgEdDSA {
		return fmt.Errorf("%w: unsupported algorithm %d", ErrInvalidKey, pk.Alg)
	}
	if len(pk.X) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: bad key length %d", ErrInvalidKey, len(pk.X))
	}
	return nil
}

func (pk PublicKey) Ed25519() ed25519.PublicKey {
	return ed25519.PublicKey(pk.X)
}

func (pk PublicKey) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(coseKey(pk))
}

func (pk *PublicKey) UnmarshalCBOR(data []byte) error {
	var decoded coseKey
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	candidate := PublicKey(decoded)
	if err := candidate.Validate(); err != nil {
		return err
	}
	*pk = candidate
	return nil
}

// KeyPair is an Ed25519 signing key together with the identity it controls.
type KeyPair struct {
	private  ed25519.PrivateKey
	public   PublicKey
	identity Identity
}

func GenerateKeyPair() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newKeyPair(priv)
}

// KeyPairFromSeed builds a key pair from a 32-byte Ed25519 seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	return newKeyPair(ed25519.NewKeyFromSeed(seed))
}

func newKeyPair(priv ed25519.PrivateKey) (*KeyPair, error) {
	pub := NewPublicKey(priv.Public().(ed25519.PublicKey))
	id, err := FromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv, public: pub, identity: id}, nil
}

func (k *KeyPair) Identity() Identity {
	if k == nil {
		return Anonymous()
	}
	return k.identity
}

func (k *KeyPair) PublicKey() PublicKey {
	return k.public
}

func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	if k == nil || len(k.private) != ed25519.PrivateKeySize {
		return nil, ErrMissingKeyPair
	}
	return ed25519.Sign(k.private, msg), nil
}

// Ed25519Verifier checks detached Ed25519 signatures against COSE keys.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(msg, sig []byte, key PublicKey) bool {
	if key.Validate() != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(key.Ed25519(), msg, sig)
}
