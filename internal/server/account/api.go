package account

import (
	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
)

// Wire method names.
const (
	MethodCreate         = "account.create"
	MethodInfo           = "account.info"
	MethodSetDescription = "account.setDescription"
	MethodListRoles      = "account.listRoles"
	MethodGetRoles       = "account.getRoles"
	MethodAddRoles       = "account.addRoles"
	MethodRemoveRoles    = "account.removeRoles"
	MethodAddFeatures    = "account.addFeatures"
	MethodDelete         = "account.delete"
)

type CreateArgs struct {
	Description *string       `cbor:"0,keyasint,omitempty"`
	Roles       RoleMap       `cbor:"1,keyasint,omitempty"`
	Features    []WireFeature `cbor:"2,keyasint"`
}

type CreateReturn struct {
	ID identity.Identity `cbor:"0,keyasint"`
}

type SetDescriptionArgs struct {
	Account     identity.Identity `cbor:"0,keyasint"`
	Description string            `cbor:"1,keyasint"`
}

type ListRolesArgs struct {
	Account identity.Identity `cbor:"0,keyasint"`
}

type ListRolesReturn struct {
	Roles []Role `cbor:"0,keyasint"`
}

type GetRolesArgs struct {
	Account    identity.Identity `cbor:"0,keyasint"`
	Identities IdentityList      `cbor:"1,keyasint"`
}

type GetRolesReturn struct {
	Roles RoleMap `cbor:"0,keyasint"`
}

type AddRolesArgs struct {
	Account identity.Identity `cbor:"0,keyasint"`
	Roles   RoleMap           `cbor:"1,keyasint"`
}

type RemoveRolesArgs struct {
	Account identity.Identity `cbor:"0,keyasint"`
	Roles   RoleMap           `cbor:"1,keyasint"`
}

type InfoArgs struct {
	Account identity.Identity `cbor:"0,keyasint"`
}

type InfoReturn struct {
	Description *string       `cbor:"0,keyasint,omitempty"`
	Roles       RoleMap       `cbor:"1,keyasint"`
	Features    []WireFeature `cbor:"2,keyasint"`
}

type DeleteArgs struct {
	Account identity.Identity `cbor:"0,keyasint"`
}

type AddFeaturesArgs struct {
	Account  identity.Identity `cbor:"0,keyasint"`
	Roles    RoleMap           `cbor:"1,keyasint,omitempty"`
	Features []WireFeature     `cbor:"2,keyasint"`
}

// cborArrayHead is the initial byte of a CBOR array (major type 4).
const cborArrayHead = 0x80

// IdentityList decodes from either one identity or an array of them.
type IdentityList []identity.Identity

func (l *IdentityList) UnmarshalCBOR(data []byte) error {
	if len(data) > 0 && data[0]&0xe0 == cborArrayHead {
		var many []identity.Identity
		if err := codec.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one identity.Identity
	if err := codec.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = IdentityList{one}
	return nil
}
