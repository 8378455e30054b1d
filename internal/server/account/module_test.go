package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/server"
)

type harness struct {
	t      *testing.T
	server *server.Server
	module *Module
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKeyPair(t *testing.T) *identity.KeyPair {
	t.Helper()
	kp, err := identity.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	return kp
}

func newIdentity(t *testing.T) identity.Identity {
	t.Helper()
	return newKeyPair(t).Identity()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	kp := newKeyPair(t)
	store, err := NewStore(kp.Identity(), StoreOptions{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	mod := NewModule(store)
	srv, err := server.New(kp, server.Options{Logger: quietLogger()}, mod)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &harness{t: t, server: srv, module: mod}
}

func (h *harness) call(from identity.Identity, method string, args any) ([]byte, error) {
	h.t.Helper()
	data, err := codec.Marshal(args)
	if err != nil {
		h.t.Fatalf("encode args: %v", err)
	}
	req := &message.RequestMessage{From: from, Method: method, Data: data}
	if err := h.server.Validate(req); err != nil {
		return nil, err
	}
	resp, err := h.server.Execute(context.Background(), req)
	if err != nil {
		return nil, err
	}
	if resp.From != h.server.Identity() {
		h.t.Fatal("account responses must come from the server identity")
	}
	return resp.Result()
}

func (h *harness) mustCall(from identity.Identity, method string, args any, out any) {
	h.t.Helper()
	data, err := h.call(from, method, args)
	if err != nil {
		h.t.Fatalf("%s failed: %v", method, err)
	}
	if out != nil {
		if err := codec.Unmarshal(data, out); err != nil {
			h.t.Fatalf("decode %s result: %v", method, err)
		}
	}
}

func (h *harness) create(from identity.Identity, args CreateArgs) identity.Identity {
	h.t.Helper()
	var ret CreateReturn
	h.mustCall(from, MethodCreate, args, &ret)
	return ret.ID
}

func (h *harness) info(id identity.Identity) InfoReturn {
	h.t.Helper()
	var ret InfoReturn
	h.mustCall(identity.Anonymous(), MethodInfo, InfoArgs{Account: id}, &ret)
	return ret
}

func (h *harness) infoBytes(id identity.Identity) []byte {
	h.t.Helper()
	data, err := h.call(identity.Anonymous(), MethodInfo, InfoArgs{Account: id})
	if err != nil {
		h.t.Fatalf("info failed: %v", err)
	}
	return data
}

func wire(t *testing.T, features ...Feature) []WireFeature {
	t.Helper()
	out, err := FeatureSet(features).Wire()
	if err != nil {
		t.Fatalf("encode features: %v", err)
	}
	return out
}

func strptr(s string) *string { return &s }

func u64ptr(v uint64) *uint64 { return &v }

func TestModuleRegistersAdvertisedAttribute(t *testing.T) {
	h := newHarness(t)
	if diff := cmp.Diff([]uint32{AttributeID}, h.server.Status().Attributes); diff != "" {
		t.Fatalf("status attributes mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		MethodAddFeatures, MethodAddRoles, MethodCreate, MethodDelete, MethodGetRoles,
		MethodInfo, MethodListRoles, MethodRemoveRoles, MethodSetDescription,
	}
	if diff := cmp.Diff(want, h.server.Endpoints()); diff != "" {
		t.Fatalf("endpoints mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateRecordsOwner(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)

	id := h.create(a, CreateArgs{
		Description: strptr("Foobar"),
		Roles:       RoleMap{b: NewRoleSet(RoleCanMultisigApprove)},
		Features:    wire(t, MultisigFeature{}),
	})
	if !id.IsSubresource() || id.Parent() != h.server.Identity() {
		t.Fatalf("account id must be a subresource of the server identity: %s", id)
	}

	got := h.info(id)
	if got.Description == nil || *got.Description != "Foobar" {
		t.Fatalf("unexpected description: %v", got.Description)
	}
	want := RoleMap{
		a: NewRoleSet(RoleOwner),
		b: NewRoleSet(RoleCanMultisigApprove),
	}
	if diff := cmp.Diff(want, got.Roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
	if len(got.Features) != 1 || got.Features[0].ID != MultisigFeatureID {
		t.Fatalf("unexpected features: %+v", got.Features)
	}
}

func TestCreateAssignsIncreasingIDs(t *testing.T) {
	h := newHarness(t)
	a := newIdentity(t)
	first := h.create(a, CreateArgs{Features: wire(t, LedgerFeature{})})
	second := h.create(a, CreateArgs{Features: wire(t, LedgerFeature{})})
	if first == second || !first.Less(second) {
		t.Fatalf("account ids must be distinct and increasing: %s %s", first, second)
	}
}

func TestCreateInvalidRole(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	_, err := h.call(a, MethodCreate, CreateArgs{
		Roles:    RoleMap{b: NewRoleSet(RoleCanLedgerTransact)},
		Features: wire(t, MultisigFeature{}),
	})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown_role, got %v", err)
	}
	if message.AsError(err).Argument("role") != string(RoleCanLedgerTransact) {
		t.Fatalf("error must name the role: %v", err)
	}
	if h.module.Store().Len() != 0 {
		t.Fatal("failed create must not store an account")
	}
}

func TestCreateRejectsAnonymousAndUnknownFeatures(t *testing.T) {
	h := newHarness(t)
	if _, err := h.call(identity.Anonymous(), MethodCreate, CreateArgs{}); !errors.Is(err, message.ErrInvalidIdentity) {
		t.Fatalf("expected invalid_identity for anonymous creator, got %v", err)
	}
	a := newIdentity(t)
	if _, err := h.call(a, MethodCreate, CreateArgs{Features: []WireFeature{{ID: 77}}}); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected unknown_feature, got %v", err)
	}
	dup := append(wire(t, LedgerFeature{}), wire(t, LedgerFeature{})...)
	if _, err := h.call(a, MethodCreate, CreateArgs{Features: dup}); !errors.Is(err, ErrDuplicateFeature) {
		t.Fatalf("expected duplicate_feature, got %v", err)
	}
	zero := wire(t, MultisigFeature{Threshold: u64ptr(0)})
	if _, err := h.call(a, MethodCreate, CreateArgs{Features: zero}); !errors.Is(err, ErrInvalidFeatureArgument) {
		t.Fatalf("expected invalid_feature_argument, got %v", err)
	}
	anon := RoleMap{identity.Anonymous(): NewRoleSet(RoleOwner)}
	if _, err := h.call(a, MethodCreate, CreateArgs{Roles: anon}); !errors.Is(err, message.ErrInvalidIdentity) {
		t.Fatalf("expected invalid_identity for anonymous holder, got %v", err)
	}
}

func TestSetDescription(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Description: strptr("Foobar"), Features: wire(t, LedgerFeature{})})

	before := h.infoBytes(id)
	_, err := h.call(b, MethodSetDescription, SetDescriptionArgs{Account: id, Description: "Other"})
	if !errors.Is(err, ErrUserNeedsRole) {
		t.Fatalf("expected user_needs_role, got %v", err)
	}
	if message.AsError(err).Argument("role") != string(RoleOwner) {
		t.Fatalf("error must name the owner role: %v", err)
	}
	if diff := cmp.Diff(before, h.infoBytes(id)); diff != "" {
		t.Fatalf("rejected call changed state (-before +after):\n%s", diff)
	}

	h.mustCall(a, MethodSetDescription, SetDescriptionArgs{Account: id, Description: "Other"}, nil)
	if got := h.info(id); got.Description == nil || *got.Description != "Other" {
		t.Fatalf("description not updated: %v", got.Description)
	}
}

func TestListRoles(t *testing.T) {
	h := newHarness(t)
	a, b, c := newIdentity(t), newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, LedgerFeature{}, MultisigFeature{})})

	list := func() []Role {
		t.Helper()
		var ret ListRolesReturn
		h.mustCall(c, MethodListRoles, ListRolesArgs{Account: id}, &ret)
		return ret.Roles
	}

	if got := list(); len(got) != 0 {
		t.Fatalf("no grants yet, expected no roles, got %v", got)
	}

	h.mustCall(a, MethodAddRoles, AddRolesArgs{Account: id, Roles: RoleMap{b: NewRoleSet(RoleCanLedgerTransact)}}, nil)
	if diff := cmp.Diff([]Role{RoleCanLedgerTransact}, list()); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}

	h.mustCall(a, MethodAddRoles, AddRolesArgs{Account: id, Roles: RoleMap{
		b: NewRoleSet(RoleOwner),
		c: NewRoleSet(RoleCanMultisigApprove, RoleCanLedgerTransact),
	}}, nil)
	want := []Role{RoleCanLedgerTransact, RoleCanMultisigApprove}
	if diff := cmp.Diff(want, list()); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRoles(t *testing.T) {
	h := newHarness(t)
	a, b, c := newIdentity(t), newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{
		Roles:    RoleMap{b: NewRoleSet(RoleCanMultisigSubmit)},
		Features: wire(t, MultisigFeature{}),
	})

	var ret GetRolesReturn
	h.mustCall(c, MethodGetRoles, GetRolesArgs{Account: id, Identities: IdentityList{a, b, c}}, &ret)
	want := RoleMap{
		a: NewRoleSet(RoleOwner),
		b: NewRoleSet(RoleCanMultisigSubmit),
		c: NewRoleSet(),
	}
	if diff := cmp.Diff(want, ret.Roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}

	single := struct {
		Account    identity.Identity `cbor:"0,keyasint"`
		Identities identity.Identity `cbor:"1,keyasint"`
	}{Account: id, Identities: b}
	var one GetRolesReturn
	h.mustCall(c, MethodGetRoles, single, &one)
	if diff := cmp.Diff(RoleMap{b: NewRoleSet(RoleCanMultisigSubmit)}, one.Roles); diff != "" {
		t.Fatalf("single identity form mismatch (-want +got):\n%s", diff)
	}
}

func TestAddRemoveRoles(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, MultisigFeature{})})

	grant := RoleMap{b: NewRoleSet(RoleCanMultisigApprove)}
	if _, err := h.call(b, MethodAddRoles, AddRolesArgs{Account: id, Roles: grant}); !errors.Is(err, ErrUserNeedsRole) {
		t.Fatalf("non-owner add must fail, got %v", err)
	}
	bad := RoleMap{b: NewRoleSet(RoleCanLedgerTransact)}
	if _, err := h.call(a, MethodAddRoles, AddRolesArgs{Account: id, Roles: bad}); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("role outside features must fail, got %v", err)
	}

	h.mustCall(a, MethodAddRoles, AddRolesArgs{Account: id, Roles: grant}, nil)
	if diff := cmp.Diff(RoleMap{a: NewRoleSet(RoleOwner), b: NewRoleSet(RoleCanMultisigApprove)}, h.info(id).Roles); diff != "" {
		t.Fatalf("roles after add mismatch (-want +got):\n%s", diff)
	}

	h.mustCall(a, MethodRemoveRoles, RemoveRolesArgs{Account: id, Roles: grant}, nil)
	var ret GetRolesReturn
	h.mustCall(a, MethodGetRoles, GetRolesArgs{Account: id, Identities: IdentityList{b}}, &ret)
	if len(ret.Roles[b]) != 0 {
		t.Fatalf("expected empty role set after removal, got %v", ret.Roles[b].Sorted())
	}

	// Removing a role that is not held is a no-op.
	before := h.infoBytes(id)
	h.mustCall(a, MethodRemoveRoles, RemoveRolesArgs{Account: id, Roles: grant}, nil)
	if diff := cmp.Diff(before, h.infoBytes(id)); diff != "" {
		t.Fatalf("no-op removal changed state (-before +after):\n%s", diff)
	}
}

func TestCreatorKeepsOwner(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, LedgerFeature{})})

	h.mustCall(a, MethodAddRoles, AddRolesArgs{Account: id, Roles: RoleMap{b: NewRoleSet(RoleOwner)}}, nil)
	h.mustCall(b, MethodRemoveRoles, RemoveRolesArgs{Account: id, Roles: RoleMap{a: NewRoleSet(RoleOwner)}}, nil)
	h.mustCall(a, MethodRemoveRoles, RemoveRolesArgs{Account: id, Roles: RoleMap{a: NewRoleSet(RoleOwner)}}, nil)

	ok, err := h.module.Store().HasRole(id, a, RoleOwner)
	if err != nil || !ok {
		t.Fatalf("creator must keep owner: %v %v", ok, err)
	}

	// A granted owner can be removed.
	h.mustCall(a, MethodRemoveRoles, RemoveRolesArgs{Account: id, Roles: RoleMap{b: NewRoleSet(RoleOwner)}}, nil)
	if ok, _ := h.module.Store().HasRole(id, b, RoleOwner); ok {
		t.Fatal("granted owner must be removable")
	}
}

func TestAddFeatures(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, MultisigFeature{})})

	h.mustCall(a, MethodAddFeatures, AddFeaturesArgs{
		Account:  id,
		Roles:    RoleMap{b: NewRoleSet(RoleOwner, RoleCanLedgerTransact)},
		Features: wire(t, LedgerFeature{}),
	}, nil)

	got := h.info(id)
	ids := []FeatureID{got.Features[0].ID, got.Features[1].ID}
	if diff := cmp.Diff([]FeatureID{MultisigFeatureID, LedgerFeatureID}, ids); diff != "" {
		t.Fatalf("features mismatch (-want +got):\n%s", diff)
	}
	want := RoleMap{
		a: NewRoleSet(RoleOwner),
		b: NewRoleSet(RoleOwner, RoleCanLedgerTransact),
	}
	if diff := cmp.Diff(want, got.Roles); diff != "" {
		t.Fatalf("roles mismatch (-want +got):\n%s", diff)
	}
}

func TestAddFeaturesFailures(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, MultisigFeature{})})
	before := h.infoBytes(id)

	_, err := h.call(a, MethodAddFeatures, AddFeaturesArgs{
		Account:  id,
		Features: wire(t, MultisigFeature{Threshold: u64ptr(2)}),
	})
	if !errors.Is(err, ErrDuplicateFeature) {
		t.Fatalf("expected duplicate_feature, got %v", err)
	}

	_, err = h.call(b, MethodAddFeatures, AddFeaturesArgs{Account: id, Features: wire(t, LedgerFeature{})})
	if !errors.Is(err, ErrUserNeedsRole) {
		t.Fatalf("expected user_needs_role, got %v", err)
	}

	// A bad role leaves the feature un-added.
	_, err = h.call(a, MethodAddFeatures, AddFeaturesArgs{
		Account:  id,
		Roles:    RoleMap{b: NewRoleSet(Role("canMint"))},
		Features: wire(t, LedgerFeature{}),
	})
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected unknown_role, got %v", err)
	}
	if diff := cmp.Diff(before, h.infoBytes(id)); diff != "" {
		t.Fatalf("failed calls changed state (-before +after):\n%s", diff)
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	a, b := newIdentity(t), newIdentity(t)
	id := h.create(a, CreateArgs{Features: wire(t, LedgerFeature{})})

	if _, err := h.call(b, MethodDelete, DeleteArgs{Account: id}); !errors.Is(err, ErrUserNeedsRole) {
		t.Fatalf("non-owner delete must fail, got %v", err)
	}
	h.mustCall(a, MethodDelete, DeleteArgs{Account: id}, nil)

	_, err := h.call(a, MethodInfo, InfoArgs{Account: id})
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected unknown_account, got %v", err)
	}
	if _, err := h.call(a, MethodDelete, DeleteArgs{Account: id}); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("second delete must report unknown_account, got %v", err)
	}
}

func TestUnknownAccountEverywhere(t *testing.T) {
	h := newHarness(t)
	a := newIdentity(t)
	missing, err := h.server.Identity().WithSubresource(999)
	if err != nil {
		t.Fatalf("subresource: %v", err)
	}
	calls := map[string]any{
		MethodInfo:           InfoArgs{Account: missing},
		MethodSetDescription: SetDescriptionArgs{Account: missing, Description: "x"},
		MethodListRoles:      ListRolesArgs{Account: missing},
		MethodGetRoles:       GetRolesArgs{Account: missing, Identities: IdentityList{a}},
		MethodAddRoles:       AddRolesArgs{Account: missing, Roles: RoleMap{}},
		MethodRemoveRoles:    RemoveRolesArgs{Account: missing, Roles: RoleMap{}},
		MethodAddFeatures:    AddFeaturesArgs{Account: missing},
		MethodDelete:         DeleteArgs{Account: missing},
	}
	for method, args := range calls {
		if _, err := h.call(a, method, args); !errors.Is(err, ErrUnknownAccount) {
			t.Fatalf("%s: expected unknown_account, got %v", method, err)
		}
	}
}

func TestMalformedArguments(t *testing.T) {
	h := newHarness(t)
	req := &message.RequestMessage{From: newIdentity(t), Method: MethodInfo, Data: []byte{0xff}}
	_, err := h.server.Execute(context.Background(), req)
	if !errors.Is(err, message.ErrDeserialization) {
		t.Fatalf("expected deserialization error, got %v", err)
	}
}
