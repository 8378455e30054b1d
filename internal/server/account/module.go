package account

import (
	"context"

	"omni/go-backend/internal/codec"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/server"
)

// AttributeID is the account attribute advertised in the server status.
const AttributeID uint32 = 9

const moduleName = "account"

// Module exposes a Store over the wire.
type Module struct {
	*server.Router
	store *Store
}

func NewModule(store *Store) *Module {
	m := &Module{store: store}
	m.Router = server.NewRouter(moduleName, server.Attribute{ID: AttributeID, Advertised: true}, map[string]server.HandlerFunc{
		MethodCreate:         m.create,
		MethodInfo:           m.info,
		MethodSetDescription: m.setDescription,
		MethodListRoles:      m.listRoles,
		MethodGetRoles:       m.getRoles,
		MethodAddRoles:       m.addRoles,
		MethodRemoveRoles:    m.removeRoles,
		MethodAddFeatures:    m.addFeatures,
		MethodDelete:         m.deleteAccount,
	})
	return m
}

func (m *Module) Store() *Store { return m.store }

func decodeArgs(req *message.RequestMessage, v any) error {
	if err := codec.Unmarshal(req.Data, v); err != nil {
		return message.DeserializationError(err.Error())
	}
	return nil
}

func encodeReturn(v any) ([]byte, error) {
	out, err := codec.Marshal(v)
	if err != nil {
		return nil, message.SerializationError(err.Error())
	}
	return out, nil
}

func (m *Module) create(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args CreateArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	features, err := m.store.Features().DecodeSet(args.Features)
	if err != nil {
		return nil, err
	}
	id, err := m.store.Create(req.From, args.Description, args.Roles, features)
	if err != nil {
		return nil, err
	}
	return encodeReturn(CreateReturn{ID: id})
}

func (m *Module) info(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args InfoArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	acc, err := m.store.Get(args.Account)
	if err != nil {
		return nil, err
	}
	features, err := acc.Features.Wire()
	if err != nil {
		return nil, message.SerializationError(err.Error())
	}
	return encodeReturn(InfoReturn{
		Description: acc.Description,
		Roles:       acc.Roles,
		Features:    features,
	})
}

func (m *Module) setDescription(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args SetDescriptionArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	if err := m.store.SetDescription(req.From, args.Account, args.Description); err != nil {
		return nil, err
	}
	return codec.Empty, nil
}

func (m *Module) listRoles(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args ListRolesArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	acc, err := m.store.Get(args.Account)
	if err != nil {
		return nil, err
	}
	return encodeReturn(ListRolesReturn{Roles: acc.GrantedRoles().Sorted()})
}

func (m *Module) getRoles(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args GetRolesArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	acc, err := m.store.Get(args.Account)
	if err != nil {
		return nil, err
	}
	roles := make(RoleMap, len(args.Identities))
	for _, id := range args.Identities {
		roles[id] = acc.RolesFor(id)
	}
	return encodeReturn(GetRolesReturn{Roles: roles})
}

func (m *Module) addRoles(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args AddRolesArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	if err := m.store.AddRoles(req.From, args.Account, args.Roles); err != nil {
		return nil, err
	}
	return codec.Empty, nil
}

func (m *Module) removeRoles(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args RemoveRolesArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	if err := m.store.RemoveRoles(req.From, args.Account, args.Roles); err != nil {
		return nil, err
	}
	return codec.Empty, nil
}

func (m *Module) addFeatures(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args AddFeaturesArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	features, err := m.store.Features().DecodeSet(args.Features)
	if err != nil {
		return nil, err
	}
	if err := m.store.AddFeatures(req.From, args.Account, args.Roles, features); err != nil {
		return nil, err
	}
	return codec.Empty, nil
}

func (m *Module) deleteAccount(_ context.Context, req *message.RequestMessage) ([]byte, error) {
	var args DeleteArgs
	if err := decodeArgs(req, &args); err != nil {
		return nil, err
	}
	if err := m.store.Delete(req.From, args.Account); err != nil {
		return nil, err
	}
	return codec.Empty, nil
}
