package vovk

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/finom/vovk/schema"
)

// HandlerFunc is the body of a controller method.
type HandlerFunc func(ctx context.Context, req *http.Request) (any, error)

// ControllerOption configures a controller at construction.
type ControllerOption func(*Controller)

// WithControllerName sets the public name the controller is exported under in
// schema documents and generated clients.
func WithControllerName(name string) ControllerOption {
	return func(c *Controller) {
		c.controllerName = name
	}
}

// Prefix sets the path segment prepended to every route of the controller.
func Prefix(path string) ControllerOption {
	return func(c *Controller) {
		c.prefix = trimPath(path)
	}
}

// Controller groups related route handlers.
//
// Controllers must be created with NewController. A zero Controller can hold
// methods but is not a valid route target: route decorators reject it.
type Controller struct {
	mu             sync.RWMutex
	static         bool
	name           string
	controllerName string
	prefix         string
	methods        map[string]*method
	handlers       schema.Map[*schema.HandlerMetadata]
	activated      bool
	onError        func(ctx context.Context, err error)
}

// method is one registered controller method and its decorator chain.
type method struct {
	name string
	fn   HandlerFunc

	// layers run in order; layers[0] is outermost.
	layers []Layer
}

// NewController creates a controller. name identifies the controller in error
// messages and is compared against the controllerName in development mode.
func NewController(name string, opts ...ControllerOption) *Controller {
	c := &Controller{
		static:  true,
		name:    name,
		methods: make(map[string]*method),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the controller's declared name.
func (c *Controller) Name() string {
	return c.name
}

// ControllerName returns the public controllerName, or "" if none was set.
func (c *Controller) ControllerName() string {
	return c.controllerName
}

// Prefix returns the trimmed path prefix.
func (c *Controller) Prefix() string {
	return c.prefix
}

// Activated reports whether the controller has been activated by a segment.
func (c *Controller) Activated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activated
}

// Handle registers fn as the method named name. Registering a name twice
// replaces the body but keeps the decorators already applied.
func (c *Controller) Handle(name string, fn HandlerFunc) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.methods == nil {
		c.methods = make(map[string]*method)
	}
	if m, ok := c.methods[name]; ok {
		m.fn = fn
		return c
	}
	c.methods[name] = &method{name: name, fn: fn}
	return c
}

// Decorate applies decorators to the named method in the order given.
// The first error stops the application.
func (c *Controller) Decorate(name string, decorators ...Decorator) error {
	for _, d := range decorators {
		if err := d(c, name); err != nil {
			return err
		}
	}
	return nil
}

// Define registers fn under name and applies decorators to it.
func (c *Controller) Define(name string, fn HandlerFunc, decorators ...Decorator) error {
	c.Handle(name, fn)
	return c.Decorate(name, decorators...)
}

// MustDefine is like Define but panics on error. It is meant for
// package-level controller setup where misuse is a programming error.
func (c *Controller) MustDefine(name string, fn HandlerFunc, decorators ...Decorator) *Controller {
	if err := c.Define(name, fn, decorators...); err != nil {
		panic(err)
	}
	return c
}

// Metadata returns a copy of the controller's public metadata.
func (c *Controller) Metadata() *schema.ControllerMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadataLocked()
}

func (c *Controller) metadataLocked() *schema.ControllerMetadata {
	m := &schema.ControllerMetadata{
		ControllerName: c.controllerName,
		Prefix:         c.prefix,
	}
	for name, h := range c.handlers.All() {
		m.Handlers.Set(name, h.Clone())
	}
	return m
}

// HandlerMetadata returns a copy of the metadata recorded for a method.
func (c *Controller) HandlerMetadata(name string) (*schema.HandlerMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers.Get(name)
	if !ok {
		return nil, false
	}
	return h.Clone(), true
}

// Call invokes the named method through its decorator chain, as a routed
// call would. It is useful for tests and for calling one controller from
// another.
func (c *Controller) Call(ctx context.Context, name string, req *http.Request) (any, error) {
	c.mu.RLock()
	_, ok := c.methods[name]
	var route *Route
	if ok {
		route = &Route{Controller: c, Name: name}
		if h, ok := c.handlers.Get(name); ok {
			route.Method = HTTPMethod(h.HTTPMethod)
			route.Path = joinPath(c.prefix, h.Path)
		}
	}
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotAFunction, c.name, name)
	}
	return route.Call(ctx, req)
}

// lookup returns the method's body and a snapshot of its decorator chain.
func (c *Controller) lookup(name string) (HandlerFunc, []Layer, func(context.Context, error), bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.methods[name]
	if !ok {
		return nil, nil, nil, false
	}
	return m.fn, m.layers, c.onError, true
}

// metadataFor returns the metadata record for name, creating it on first use.
// Callers must hold c.mu.
func (c *Controller) metadataFor(name string) *schema.HandlerMetadata {
	h, ok := c.handlers.Get(name)
	if !ok {
		h = &schema.HandlerMetadata{}
		c.handlers.Set(name, h)
	}
	return h
}

// setRoute records path and httpMethod for a method exactly once.
func (c *Controller) setRoute(name string, verb HTTPMethod, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activated {
		return fmt.Errorf("%w: controller %q", ErrActivated, c.name)
	}
	if _, ok := c.methods[name]; !ok {
		return fmt.Errorf("%w: %s.%s used with @%s", ErrNotAFunction, c.name, name, verb.decoratorName())
	}
	h := c.metadataFor(name)
	if h.HTTPMethod != "" {
		return fmt.Errorf("%w: %s.%s is already %s %q", ErrRouteAlreadySet, c.name, name, h.HTTPMethod, h.Path)
	}
	h.Path = path
	h.HTTPMethod = string(verb)
	return nil
}
