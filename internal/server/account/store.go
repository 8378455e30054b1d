package account

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/platform/metrics"
)

// Persister stores encoded snapshots. Load returns nil when nothing has been
// stored yet.
type Persister interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// Store owns all accounts of one server. Every operation runs under a single
// lock; writers validate and build the next state before anything is
// committed, so a failed call leaves no trace.
type Store struct {
	mu       sync.RWMutex
	parent   identity.Identity
	next     uint32
	accounts map[identity.Identity]*Account

	registry  *FeatureRegistry
	persister Persister
	metrics   *metrics.Collector
	logger    *slog.Logger
}

type StoreOptions struct {
	Features  *FeatureRegistry
	Persister Persister
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// NewStore creates a store whose account ids are subresources of parent and
// loads any snapshot the persister holds.
func NewStore(parent identity.Identity, opts StoreOptions) (*Store, error) {
	if !parent.IsAddressable() {
		return nil, identity.ErrNotAddressable
	}
	s := &Store{
		parent:    parent.Parent(),
		accounts:  make(map[identity.Identity]*Account),
		registry:  opts.Features,
		persister: opts.Persister,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.registry == nil {
		s.registry = DefaultFeatures()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.persister != nil {
		raw, err := s.persister.Load()
		if err != nil {
			return nil, fmt.Errorf("load account snapshot: %w", err)
		}
		if raw != nil {
			if err := s.restore(raw); err != nil {
				return nil, fmt.Errorf("restore account snapshot: %w", err)
			}
		}
	}
	s.metrics.SetAccounts(len(s.accounts))
	return s, nil
}

func (s *Store) Features() *FeatureRegistry { return s.registry }

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Get returns a copy of the account.
func (s *Store) Get(id identity.Identity) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, unknownAccount(id)
	}
	return acc.clone(), nil
}

// HasRole is the role check primitive used by operations gated on a role.
func (s *Store) HasRole(id, caller identity.Identity, role Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return false, unknownAccount(id)
	}
	return acc.HasRole(caller, role), nil
}

// Create stores a new account owned by sender.
func (s *Store) Create(sender identity.Identity, description *string, roles RoleMap, features FeatureSet) (identity.Identity, error) {
	if sender.IsAnonymous() {
		return identity.Identity{}, anonymousCreator()
	}
	if err := validateRoles(features, roles); err != nil {
		return identity.Identity{}, err
	}

	acc := &Account{
		Creator:  sender,
		Roles:    roles.Clone(),
		Features: append(FeatureSet(nil), features...),
	}
	if description != nil {
		desc := *description
		acc.Description = &desc
	}
	if acc.Roles == nil {
		acc.Roles = make(RoleMap)
	}
	mergeRoles(acc.Roles, RoleMap{sender: NewRoleSet(RoleOwner)})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next == math.MaxUint32 {
		return identity.Identity{}, message.InternalServerError("account ids exhausted")
	}
	id, err := s.parent.WithSubresource(s.next)
	if err != nil {
		return identity.Identity{}, err
	}
	if _, taken := s.accounts[id]; taken {
		return identity.Identity{}, message.InternalServerError(fmt.Sprintf("account id %s already in use", id))
	}
	if err := s.commitLocked(id, acc, s.next+1); err != nil {
		return identity.Identity{}, err
	}
	s.logger.Info("account created",
		"component", "account",
		"operation", "create",
		"account", id.String(),
		"caller", sender.String(),
	)
	return id, nil
}

// update applies fn to a copy of the account and commits the copy only when
// fn succeeds.
func (s *Store) update(id identity.Identity, fn func(acc *Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.accounts[id]
	if !ok {
		return unknownAccount(id)
	}
	next := current.clone()
	if err := fn(next); err != nil {
		return err
	}
	return s.commitLocked(id, next, s.next)
}

func (s *Store) SetDescription(sender, id identity.Identity, description string) error {
	return s.update(id, func(acc *Account) error {
		if err := acc.needsOwner(sender); err != nil {
			return err
		}
		acc.Description = &description
		return nil
	})
}

func (s *Store) AddRoles(sender, id identity.Identity, roles RoleMap) error {
	return s.update(id, func(acc *Account) error {
		if err := acc.needsOwner(sender); err != nil {
			return err
		}
		if err := validateRoles(acc.Features, roles); err != nil {
			return err
		}
		mergeRoles(acc.Roles, roles)
		return nil
	})
}

// RemoveRoles drops roles. Removing a role that is not held does nothing, and
// the creator's Owner role is never removed.
func (s *Store) RemoveRoles(sender, id identity.Identity, roles RoleMap) error {
	return s.update(id, func(acc *Account) error {
		if err := acc.needsOwner(sender); err != nil {
			return err
		}
		for holder, remove := range roles {
			current, ok := acc.Roles[holder]
			if !ok {
				continue
			}
			for r := range remove {
				if holder == acc.Creator && r == RoleOwner {
					continue
				}
				delete(current, r)
			}
			if len(current) == 0 {
				delete(acc.Roles, holder)
			}
		}
		return nil
	})
}

// AddFeatures enables new features and optionally grants roles that the
// combined feature set makes valid.
func (s *Store) AddFeatures(sender, id identity.Identity, roles RoleMap, features FeatureSet) error {
	return s.update(id, func(acc *Account) error {
		if err := acc.needsOwner(sender); err != nil {
			return err
		}
		combined := append(FeatureSet(nil), acc.Features...)
		for _, f := range features {
			if combined.Has(f.ID()) {
				return duplicateFeature(f.ID())
			}
			combined = append(combined, f)
		}
		if err := validateRoles(combined, roles); err != nil {
			return err
		}
		acc.Features = combined
		mergeRoles(acc.Roles, roles)
		return nil
	})
}

func (s *Store) Delete(sender, id identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return unknownAccount(id)
	}
	if err := acc.needsOwner(sender); err != nil {
		return err
	}
	if err := s.commitLocked(id, nil, s.next); err != nil {
		return err
	}
	s.logger.Info("account deleted",
		"component", "account",
		"operation", "delete",
		"account", id.String(),
		"caller", sender.String(),
	)
	return nil
}

// commitLocked persists the state with id replaced by acc (removed when acc
// is nil) and then installs it. The caller holds the write lock.
func (s *Store) commitLocked(id identity.Identity, acc *Account, next uint32) error {
	if s.persister != nil {
		raw, err := s.encodeLocked(id, acc, next)
		if err != nil {
			return message.SerializationError(err.Error())
		}
		if err := s.persister.Save(raw); err != nil {
			s.logger.Error("account snapshot write failed",
				"component", "account",
				"operation", "persist",
				"error", err.Error(),
			)
			return message.InternalServerError("account state could not be persisted")
		}
	}
	if acc == nil {
		delete(s.accounts, id)
	} else {
		s.accounts[id] = acc
	}
	s.next = next
	s.metrics.SetAccounts(len(s.accounts))
	return nil
}
