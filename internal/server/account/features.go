package account

import (
	"sort"

	"github.com/fxamacker/cbor/v2"

	"omni/go-backend/internal/codec"
)

type FeatureID uint32

const (
	LedgerFeatureID   FeatureID = 0
	MultisigFeatureID FeatureID = 1
)

// Feature is a capability attached to an account. Each feature makes a fixed
// set of roles grantable on that account.
type Feature interface {
	ID() FeatureID
	Roles() []Role
}

// Validator is implemented by features whose arguments carry constraints.
type Validator interface {
	Validate() error
}

// LedgerFeature allows an account to hold and move funds.
type LedgerFeature struct{}

func (LedgerFeature) ID() FeatureID { return LedgerFeatureID }

func (LedgerFeature) Roles() []Role { return []Role{RoleCanLedgerTransact} }

// MultisigFeature allows transactions that need several approvals. Unset
// fields fall back to server defaults.
type MultisigFeature struct {
	Threshold            *uint64 `cbor:"0,keyasint,omitempty"`
	TimeoutInSecs        *uint64 `cbor:"1,keyasint,omitempty"`
	ExecuteAutomatically *bool   `cbor:"2,keyasint,omitempty"`
}

func (MultisigFeature) ID() FeatureID { return MultisigFeatureID }

func (MultisigFeature) Roles() []Role {
	return []Role{RoleCanMultisigSubmit, RoleCanMultisigApprove}
}

func (f MultisigFeature) Validate() error {
	if f.Threshold != nil && *f.Threshold == 0 {
		return invalidFeatureArgument(MultisigFeatureID, "threshold must be at least 1")
	}
	if f.TimeoutInSecs != nil && *f.TimeoutInSecs == 0 {
		return invalidFeatureArgument(MultisigFeatureID, "timeout must be positive")
	}
	return nil
}

// WireFeature is the encoded form of a feature: its id and raw arguments.
type WireFeature struct {
	ID        FeatureID       `cbor:"0,keyasint"`
	Arguments cbor.RawMessage `cbor:"1,keyasint,omitempty"`
}

// FeatureDecoder turns raw arguments into a feature value.
type FeatureDecoder func(args []byte) (Feature, error)

// FeatureRegistry knows which feature ids an account module accepts.
type FeatureRegistry struct {
	decoders map[FeatureID]FeatureDecoder
}

func NewFeatureRegistry() *FeatureRegistry {
	return &FeatureRegistry{decoders: make(map[FeatureID]FeatureDecoder)}
}

// DefaultFeatures accepts the ledger and multisig features.
func DefaultFeatures() *FeatureRegistry {
	r := NewFeatureRegistry()
	r.Register(LedgerFeatureID, func([]byte) (Feature, error) {
		return LedgerFeature{}, nil
	})
	r.Register(MultisigFeatureID, func(args []byte) (Feature, error) {
		var f MultisigFeature
		if len(args) > 0 {
			if err := codec.Unmarshal(args, &f); err != nil {
				return nil, invalidFeatureArgument(MultisigFeatureID, err.Error())
			}
		}
		return f, nil
	})
	return r
}

func (r *FeatureRegistry) Register(id FeatureID, dec FeatureDecoder) {
	r.decoders[id] = dec
}

func (r *FeatureRegistry) Decode(w WireFeature) (Feature, error) {
	dec, ok := r.decoders[w.ID]
	if !ok {
		return nil, unknownFeature(w.ID)
	}
	f, err := dec(w.Arguments)
	if err != nil {
		return nil, err
	}
	if v, ok := f.(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// DecodeSet decodes a list of wire features, rejecting repeated ids.
func (r *FeatureRegistry) DecodeSet(wire []WireFeature) (FeatureSet, error) {
	set := make(FeatureSet, 0, len(wire))
	for _, w := range wire {
		if set.Has(w.ID) {
			return nil, duplicateFeature(w.ID)
		}
		f, err := r.Decode(w)
		if err != nil {
			return nil, err
		}
		set = append(set, f)
	}
	return set, nil
}

func EncodeFeature(f Feature) (WireFeature, error) {
	args, err := codec.Marshal(f)
	if err != nil {
		return WireFeature{}, err
	}
	if len(args) == 1 && args[0] == codec.Empty[0] {
		args = nil
	}
	return WireFeature{ID: f.ID(), Arguments: args}, nil
}

// FeatureSet is the ordered feature collection of an account. Ids are unique.
type FeatureSet []Feature

func (s FeatureSet) Has(id FeatureID) bool {
	_, ok := s.Get(id)
	return ok
}

func (s FeatureSet) Get(id FeatureID) (Feature, bool) {
	for _, f := range s {
		if f.ID() == id {
			return f, true
		}
	}
	return nil, false
}

// GrantableRoles returns the roles the set makes valid, excluding Owner.
func (s FeatureSet) GrantableRoles() RoleSet {
	roles := NewRoleSet()
	for _, f := range s {
		for _, r := range f.Roles() {
			roles[r] = struct{}{}
		}
	}
	delete(roles, RoleOwner)
	return roles
}

// Wire encodes the set in order.
func (s FeatureSet) Wire() ([]WireFeature, error) {
	out := make([]WireFeature, 0, len(s))
	for _, f := range s {
		w, err := EncodeFeature(f)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// IDs lists the feature ids in ascending order.
func (s FeatureSet) IDs() []FeatureID {
	ids := make([]FeatureID, 0, len(s))
	for _, f := range s {
		ids = append(ids, f.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RoleGrantable reports whether role may be assigned on an account with
// features.
func RoleGrantable(features FeatureSet, role Role) bool {
	if role == RoleOwner {
		return true
	}
	return features.GrantableRoles().Has(role)
}
