package server

import (
	"omni/go-backend/internal/identity"
)

// StatusVersion is the revision of the Status payload layout.
const StatusVersion = 1

// Status is the payload of the "status" built-in.
type Status struct {
	Version         uint8              `cbor:"0,keyasint"`
	Name            string             `cbor:"1,keyasint,omitempty"`
	PublicKey       identity.PublicKey `cbor:"2,keyasint"`
	Identity        identity.Identity  `cbor:"3,keyasint"`
	Attributes      []uint32           `cbor:"4,keyasint"`
	ServerVersion   string             `cbor:"5,keyasint,omitempty"`
	InternalVersion []byte             `cbor:"6,keyasint"`
}

func (s *Server) Status() Status {
	attrs := make([]uint32, len(s.advertised))
	copy(attrs, s.advertised)
	internal := make([]byte, len(s.internalVer))
	copy(internal, s.internalVer)
	return Status{
		Version:         StatusVersion,
		Name:            s.name,
		PublicKey:       s.publicKey,
		Identity:        s.identity,
		Attributes:      attrs,
		ServerVersion:   s.version,
		InternalVersion: internal,
	}
}
