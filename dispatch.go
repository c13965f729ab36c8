package vovk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/finom/vovk/schema"
)

// Handlers is the result of activation: one dispatcher per HTTP verb.
// A hosting router reads it to bind requests to routes.
type Handlers struct {
	dispatchers map[HTTPMethod]*Dispatcher
}

// Dispatcher returns the dispatcher for a verb. Unknown verbs get an empty
// dispatcher.
func (h *Handlers) Dispatcher(verb HTTPMethod) *Dispatcher {
	if d, ok := h.dispatchers[verb]; ok {
		return d
	}
	return &Dispatcher{method: verb}
}

// Lookup finds the route for verb and path. The path is matched exactly
// after trimming surrounding slashes.
func (h *Handlers) Lookup(verb HTTPMethod, path string) (*Route, bool) {
	return h.Dispatcher(verb).Lookup(path)
}

// Routes returns every route in verb order, then registration order.
func (h *Handlers) Routes() []*Route {
	var all []*Route
	for _, verb := range Methods {
		all = append(all, h.Dispatcher(verb).Routes()...)
	}
	return all
}

// Dispatcher maps full paths to routes for a single verb.
type Dispatcher struct {
	method HTTPMethod
	routes map[string]*Route
	order  []*Route
}

// Method returns the dispatcher's verb.
func (d *Dispatcher) Method() HTTPMethod {
	return d.method
}

// Lookup returns the route registered for path. A miss is the NotFound
// outcome, not an error.
func (d *Dispatcher) Lookup(path string) (*Route, bool) {
	r, ok := d.routes[trimRequestPath(path)]
	return r, ok
}

// Routes returns the dispatcher's routes in registration order.
func (d *Dispatcher) Routes() []*Route {
	return append([]*Route(nil), d.order...)
}

// Len returns the number of routes.
func (d *Dispatcher) Len() int {
	return len(d.order)
}

// Route is one dispatchable (controller, method) entry.
type Route struct {
	Method     HTTPMethod
	Path       string // full path: controller prefix joined with the handler path
	Controller *Controller
	Name       string // controller method name
}

// String returns "GET users/list" style text.
func (r *Route) String() string {
	return fmt.Sprintf("%s %s", r.Method, r.Path)
}

// Metadata returns a copy of the route's handler metadata.
func (r *Route) Metadata() *schema.HandlerMetadata {
	h, _ := r.Controller.HandlerMetadata(r.Name)
	return h
}

// Call runs the method's decorator chain and the method itself. The route is
// available to every layer through RouteFromContext. Errors are passed to the
// controller's error hook before being returned.
func (r *Route) Call(ctx context.Context, req *http.Request) (any, error) {
	fn, layers, onError, ok := r.Controller.lookup(r.Name)
	if !ok || fn == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotAFunction, r.Controller.name, r.Name)
	}
	ctx = withRoute(ctx, r)
	res, err := runChain(ctx, req, layers, fn)
	if err != nil && onError != nil {
		onError(ctx, err)
	}
	return res, err
}

func trimRequestPath(path string) string {
	return strings.Trim(path, "/")
}
