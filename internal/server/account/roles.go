package account

import (
	"sort"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
)

// Role is an open string tag. Features declare which roles they make
// grantable; Owner is always grantable.
type Role string

const (
	RoleOwner              Role = "owner"
	RoleCanLedgerTransact  Role = "canLedgerTransact"
	RoleCanMultisigSubmit  Role = "canMultisigSubmit"
	RoleCanMultisigApprove Role = "canMultisigApprove"
)

// RoleSet is an unordered set of roles that encodes as a sorted array.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) Clone() RoleSet {
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

func (s RoleSet) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(s.Sorted())
}

func (s *RoleSet) UnmarshalCBOR(data []byte) error {
	var roles []Role
	if err := codec.Unmarshal(data, &roles); err != nil {
		return err
	}
	*s = NewRoleSet(roles...)
	return nil
}

// RoleMap assigns role sets to identities.
type RoleMap map[identity.Identity]RoleSet

func (m RoleMap) Clone() RoleMap {
	out := make(RoleMap, len(m))
	for id, roles := range m {
		out[id] = roles.Clone()
	}
	return out
}

// Identities returns the keys in identity order.
func (m RoleMap) Identities() []identity.Identity {
	out := make([]identity.Identity, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
