// Package server composes modules into an RPC endpoint: it owns the method
// table, verifies and dispatches request envelopes and signs the responses.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"omni/go-backend/internal/identity"
	"omni/go-backend/internal/message"
	"omni/go-backend/internal/platform/metrics"
	"omni/go-backend/internal/platform/ratelimiter"
)

const componentName = "server"

// BaseAttributeID is held by the built-in methods and cannot be claimed by a
// module.
const BaseAttributeID uint32 = 0

// Built-in method names. They are answered before any module is consulted.
const (
	MethodStatus    = "status"
	MethodHeartbeat = "heartbeat"
	MethodEcho      = "echo"
	MethodEndpoints = "endpoints"
)

var builtins = map[string]struct{}{
	MethodStatus:    {},
	MethodHeartbeat: {},
	MethodEcho:      {},
	MethodEndpoints: {},
}

// IsBuiltin reports whether method is reserved by the server.
func IsBuiltin(method string) bool {
	_, ok := builtins[method]
	return ok
}

type RegistrationErrorKind string

const (
	AttributeConflict RegistrationErrorKind = "attribute_conflict"
	EndpointConflict  RegistrationErrorKind = "endpoint_conflict"
	ReservedEndpoint  RegistrationErrorKind = "reserved_endpoint"
	InvalidModule     RegistrationErrorKind = "invalid_module"
)

// RegistrationError reports a composition mistake. It never reaches a client.
type RegistrationError struct {
	Kind        RegistrationErrorKind
	Module      string
	AttributeID uint32
	Endpoint    string
}

func (e *RegistrationError) Error() string {
	switch e.Kind {
	case AttributeConflict:
		return fmt.Sprintf("module %q: attribute %d already registered", e.Module, e.AttributeID)
	case EndpointConflict:
		return fmt.Sprintf("module %q: endpoint %q already registered", e.Module, e.Endpoint)
	case ReservedEndpoint:
		return fmt.Sprintf("module %q: endpoint %q is reserved", e.Module, e.Endpoint)
	default:
		return fmt.Sprintf("module %q: invalid module", e.Module)
	}
}

// Is lets callers match on the kind alone.
func (e *RegistrationError) Is(target error) bool {
	var other *RegistrationError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var ErrNoSigner = errors.New("server signer is required")

type Options struct {
	// Name is reported in the status payload.
	Name string
	// Version is the human-readable server version reported in status.
	Version string
	// InternalVersion is opaque build information reported in status.
	InternalVersion []byte
	Logger          *slog.Logger
	Metrics         *metrics.Collector
	Verifier        message.Verifier
	// SenderRateLimit throttles each signed sender after its signature has
	// been verified. Anonymous requests are left to the transports.
	SenderRateLimit ratelimiter.Config
}

// Server is the registry and dispatcher. It is immutable once New returns
// and safe for concurrent use.
type Server struct {
	signer    message.Signer
	identity  identity.Identity
	publicKey identity.PublicKey

	modules     []Module
	methods     map[string]int
	attributes  map[uint32]string
	advertised  []uint32
	endpoints   []string
	name        string
	version     string
	internalVer []byte

	logger   *slog.Logger
	metrics  *metrics.Collector
	verifier message.Verifier
	senders  *ratelimiter.MapLimiter
}

// New registers modules in order. The first conflicting module aborts
// construction with a *RegistrationError.
func New(signer message.Signer, opts Options, modules ...Module) (*Server, error) {
	if signer == nil || !signer.Identity().IsAddressable() {
		return nil, ErrNoSigner
	}
	s := &Server{
		signer:      signer,
		identity:    signer.Identity(),
		publicKey:   signer.PublicKey(),
		methods:     make(map[string]int),
		attributes:  map[uint32]string{BaseAttributeID: "base"},
		name:        strings.TrimSpace(opts.Name),
		version:     opts.Version,
		internalVer: append([]byte(nil), opts.InternalVersion...),
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		verifier:    opts.Verifier,
		senders:     ratelimiter.FromConfig(opts.SenderRateLimit),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.verifier == nil {
		s.verifier = identity.Ed25519Verifier{}
	}
	for _, m := range modules {
		if err := s.register(m); err != nil {
			return nil, err
		}
	}
	sort.Slice(s.advertised, func(i, j int) bool { return s.advertised[i] < s.advertised[j] })
	s.endpoints = make([]string, 0, len(s.methods))
	for method := range s.methods {
		s.endpoints = append(s.endpoints, method)
	}
	sortStrings(s.endpoints)
	return s, nil
}

// MustNew is New for composition roots that cannot recover from a
// misconfigured module set.
func MustNew(signer message.Signer, opts Options, modules ...Module) *Server {
	s, err := New(signer, opts, modules...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Server) register(m Module) error {
	if m == nil {
		return &RegistrationError{Kind: InvalidModule}
	}
	info := m.Info()
	// Check the whole module first so a rejected module leaves no trace.
	seenAttrs := make(map[uint32]struct{}, len(info.Attributes))
	seenEndpoints := make(map[string]struct{})
	for _, attr := range info.Attributes {
		if _, taken := s.attributes[attr.ID]; taken {
			return &RegistrationError{Kind: AttributeConflict, Module: info.Name, AttributeID: attr.ID}
		}
		if _, dup := seenAttrs[attr.ID]; dup {
			return &RegistrationError{Kind: AttributeConflict, Module: info.Name, AttributeID: attr.ID}
		}
		seenAttrs[attr.ID] = struct{}{}
		for _, endpoint := range attr.Endpoints {
			if IsBuiltin(endpoint) {
				return &RegistrationError{Kind: ReservedEndpoint, Module: info.Name, AttributeID: attr.ID, Endpoint: endpoint}
			}
			_, taken := s.methods[endpoint]
			_, dup := seenEndpoints[endpoint]
			if taken || dup || strings.TrimSpace(endpoint) == "" {
				return &RegistrationError{Kind: EndpointConflict, Module: info.Name, AttributeID: attr.ID, Endpoint: endpoint}
			}
			seenEndpoints[endpoint] = struct{}{}
		}
	}

	index := len(s.modules)
	s.modules = append(s.modules, m)
	for _, attr := range info.Attributes {
		s.attributes[attr.ID] = info.Name
		if attr.Advertised {
			s.advertised = append(s.advertised, attr.ID)
		}
		for _, endpoint := range attr.Endpoints {
			s.methods[endpoint] = index
		}
	}
	s.logger.Info("module registered",
		"component", componentName,
		"operation", "register",
		"module", info.Name,
		"attributes", len(info.Attributes),
		"endpoints", len(seenEndpoints),
	)
	return nil
}

func (s *Server) Identity() identity.Identity { return s.identity }

func (s *Server) PublicKey() identity.PublicKey { return s.publicKey }

// Endpoints lists the module method names, sorted. Built-ins are not included.
func (s *Server) Endpoints() []string {
	return append([]string(nil), s.endpoints...)
}

// HasMethod reports whether method is a built-in or a module endpoint.
func (s *Server) HasMethod(method string) bool {
	if IsBuiltin(method) {
		return true
	}
	_, ok := s.methods[method]
	return ok
}

func sortStrings(values []string) {
	sort.Strings(values)
}
