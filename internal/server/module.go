package server

import (
	"context"

	"omni/go-backend/internal/message"
)

// Attribute is a numbered capability a module exposes together with the
// method names it answers.
type Attribute struct {
	ID        uint32
	Endpoints []string
	// Advertised attributes are listed in the status payload.
	Advertised bool
}

// HasEndpoint reports whether method belongs to the attribute.
func (a Attribute) HasEndpoint(method string) bool {
	for _, e := range a.Endpoints {
		if e == method {
			return true
		}
	}
	return false
}

type ModuleInfo struct {
	Name       string
	Attributes []Attribute
}

// Module is a unit of server functionality. Execute is only called with
// requests whose method is one of the module's endpoints. A returned error
// becomes the error of the response; modules never need to set addressing
// fields, the server fills them in.
type Module interface {
	Info() ModuleInfo
	Execute(ctx context.Context, req *message.RequestMessage) (*message.ResponseMessage, error)
}

// HandlerFunc serves one method.
type HandlerFunc func(ctx context.Context, req *message.RequestMessage) ([]byte, error)

// Router is a Module backed by a fixed method table. It keeps Info and
// Execute consistent for modules that do not need their own dispatch.
type Router struct {
	info     ModuleInfo
	handlers map[string]HandlerFunc
}

// NewRouter builds a single-attribute module from handlers.
func NewRouter(name string, attr Attribute, handlers map[string]HandlerFunc) *Router {
	endpoints := make([]string, 0, len(handlers))
	for method := range handlers {
		endpoints = append(endpoints, method)
	}
	sortStrings(endpoints)
	attr.Endpoints = endpoints
	return &Router{
		info:     ModuleInfo{Name: name, Attributes: []Attribute{attr}},
		handlers: handlers,
	}
}

func (r *Router) Info() ModuleInfo { return r.info }

func (r *Router) Execute(ctx context.Context, req *message.RequestMessage) (*message.ResponseMessage, error) {
	h, ok := r.handlers[req.Method]
	if !ok {
		return nil, message.InvalidMethodName(req.Method)
	}
	data, err := h(ctx, req)
	if err != nil {
		return nil, err
	}
	return message.Success(data), nil
}
