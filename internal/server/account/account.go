// Package account implements multi-party accounts: identities hold roles on
// an account, and features decide which roles are meaningful.
package account

import (
	"omni/go-backend/internal/identity"
)

// Account is the stored state of one account.
type Account struct {
	// Creator keeps the Owner role for the lifetime of the account.
	Creator     identity.Identity
	Description *string
	Roles       RoleMap
	Features    FeatureSet
}

func (a *Account) clone() *Account {
	out := &Account{
		Creator:  a.Creator,
		Roles:    a.Roles.Clone(),
		Features: append(FeatureSet(nil), a.Features...),
	}
	if a.Description != nil {
		desc := *a.Description
		out.Description = &desc
	}
	return out
}

// HasRole reports whether caller holds role on the account.
func (a *Account) HasRole(caller identity.Identity, role Role) bool {
	roles, ok := a.Roles[caller]
	if !ok {
		return false
	}
	return roles.Has(role)
}

func (a *Account) needsOwner(caller identity.Identity) error {
	if !a.HasRole(caller, RoleOwner) {
		return userNeedsRole(RoleOwner)
	}
	return nil
}

// RolesFor returns the role set of id, empty when it holds none.
func (a *Account) RolesFor(id identity.Identity) RoleSet {
	roles, ok := a.Roles[id]
	if !ok {
		return NewRoleSet()
	}
	return roles.Clone()
}

// GrantedRoles is the union of roles held by any identity, without Owner.
func (a *Account) GrantedRoles() RoleSet {
	out := NewRoleSet()
	for _, roles := range a.Roles {
		for r := range roles {
			out[r] = struct{}{}
		}
	}
	delete(out, RoleOwner)
	return out
}

func validateRoles(features FeatureSet, roles RoleMap) error {
	for _, id := range roles.Identities() {
		if id.IsAnonymous() {
			return invalidRoleHolder()
		}
		for _, role := range roles[id].Sorted() {
			if !RoleGrantable(features, role) {
				return unknownRole(role)
			}
		}
	}
	return nil
}

func mergeRoles(dst RoleMap, add RoleMap) {
	for id, roles := range add {
		if len(roles) == 0 {
			continue
		}
		current, ok := dst[id]
		if !ok {
			current = NewRoleSet()
			dst[id] = current
		}
		for r := range roles {
			current[r] = struct{}{}
		}
	}
}
