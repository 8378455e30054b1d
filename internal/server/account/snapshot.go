package account

import (
	"fmt"
	"sort"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
)

const snapshotVersion = 1

type snapshot struct {
	Version  uint32          `cbor:"0,keyasint"`
	Next     uint32          `cbor:"1,keyasint"`
	Accounts []accountRecord `cbor:"2,keyasint"`
}

type accountRecord struct {
	ID          identity.Identity `cbor:"0,keyasint"`
	Creator     identity.Identity `cbor:"1,keyasint"`
	Description *string           `cbor:"2,keyasint,omitempty"`
	Roles       RoleMap           `cbor:"3,keyasint"`
	Features    []WireFeature     `cbor:"4,keyasint"`
}

func (s *Store) encodeLocked(replaceID identity.Identity, replacement *Account, next uint32) ([]byte, error) {
	ids := make([]identity.Identity, 0, len(s.accounts)+1)
	for id := range s.accounts {
		if id != replaceID {
			ids = append(ids, id)
		}
	}
	if replacement != nil {
		ids = append(ids, replaceID)
	}
	sortIdentities(ids)

	snap := snapshot{Version: snapshotVersion, Next: next, Accounts: make([]accountRecord, 0, len(ids))}
	for _, id := range ids {
		acc := s.accounts[id]
		if id == replaceID {
			acc = replacement
		}
		wire, err := acc.Features.Wire()
		if err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, accountRecord{
			ID:          id,
			Creator:     acc.Creator,
			Description: acc.Description,
			Roles:       acc.Roles,
			Features:    wire,
		})
	}
	return codec.Marshal(snap)
}

func (s *Store) restore(raw []byte) error {
	var snap snapshot
	if err := codec.Unmarshal(raw, &snap); err != nil {
		return err
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	accounts := make(map[identity.Identity]*Account, len(snap.Accounts))
	for _, rec := range snap.Accounts {
		if rec.ID.Parent() != s.parent || !rec.ID.IsSubresource() {
			return fmt.Errorf("account %s does not belong to %s", rec.ID, s.parent)
		}
		features, err := s.registry.DecodeSet(rec.Features)
		if err != nil {
			return fmt.Errorf("account %s: %w", rec.ID, err)
		}
		roles := rec.Roles
		if roles == nil {
			roles = make(RoleMap)
		}
		accounts[rec.ID] = &Account{
			Creator:     rec.Creator,
			Description: rec.Description,
			Roles:       roles,
			Features:    features,
		}
	}
	s.accounts = accounts
	s.next = snap.Next
	return nil
}

func sortIdentities(ids []identity.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
