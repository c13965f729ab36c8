package vovk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/finom/vovk/schema"
)

// Segment is a routing scope owning its own verb-indexed route table.
//
// A segment starts in the collecting state: route decorators created by it
// register handlers as they are applied. ActivateControllers moves it to the
// activated state, after which its decorators fail with ErrActivated.
type Segment struct {
	mu        sync.RWMutex
	name      string
	routes    map[HTTPMethod]map[*Controller]map[string]string // verb -> controller -> path -> method
	order     map[HTTPMethod][]routeRef
	activated bool
}

// routeRef remembers registration order within a verb.
type routeRef struct {
	controller *Controller
	path       string
}

// NewSegment creates a segment. The root segment has the empty name.
func NewSegment(name string) *Segment {
	return &Segment{
		name:   name,
		routes: make(map[HTTPMethod]map[*Controller]map[string]string),
		order:  make(map[HTTPMethod][]routeRef),
	}
}

// Name returns the segment name.
func (s *Segment) Name() string {
	return s.name
}

// Get returns a decorator routing GET {prefix}/{path} to the method.
func (s *Segment) Get(path string) Decorator { return s.route(GET, path) }

// Post returns a decorator routing POST {prefix}/{path} to the method.
func (s *Segment) Post(path string) Decorator { return s.route(POST, path) }

// Put returns a decorator routing PUT {prefix}/{path} to the method.
func (s *Segment) Put(path string) Decorator { return s.route(PUT, path) }

// Patch returns a decorator routing PATCH {prefix}/{path} to the method.
func (s *Segment) Patch(path string) Decorator { return s.route(PATCH, path) }

// Del returns a decorator routing DELETE {prefix}/{path} to the method.
func (s *Segment) Del(path string) Decorator { return s.route(DELETE, path) }

// Head returns a decorator routing HEAD {prefix}/{path} to the method.
func (s *Segment) Head(path string) Decorator { return s.route(HEAD, path) }

// Options returns a decorator routing OPTIONS {prefix}/{path} to the method.
func (s *Segment) Options(path string) Decorator { return s.route(OPTIONS, path) }

// Route returns a route decorator for an arbitrary verb.
//
// Route and the verb decorators trim one leading and one trailing "/" from
// path, so "/users/" and "users" are the same route. A path that still has a
// slash at either end, such as "//users", fails with ErrInvalidPath.
func (s *Segment) Route(verb HTTPMethod, path string) Decorator { return s.route(verb, path) }

// Auto returns a decorator that derives the path from the controllerName and
// the method name, both in kebab case: UserController.getAll becomes
// "user-controller/get-all". The controller must have a controllerName.
func (s *Segment) Auto(verb HTTPMethod) Decorator {
	return func(c *Controller, name string) error {
		if c == nil || c.controllerName == "" {
			cname := "unknown"
			if c != nil && c.name != "" {
				cname = c.name
			}
			return fmt.Errorf("%w: controllers using auto() routes need a controllerName; check the controller named %q",
				ErrMissingControllerName, cname)
		}
		path := kebabCase(c.controllerName) + "/" + kebabCase(name)
		return s.assign(verb, c, name, path)
	}
}

func (s *Segment) route(verb HTTPMethod, path string) Decorator {
	raw := path
	path = trimPath(path)
	return func(c *Controller, name string) error {
		if strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
			return fmt.Errorf("%w: %q on method %q", ErrInvalidPath, raw, name)
		}
		return s.assign(verb, c, name, path)
	}
}

// assign records path and verb on the method and registers it in the verb
// table.
func (s *Segment) assign(verb HTTPMethod, c *Controller, name, path string) error {
	if !verb.Valid() {
		return fmt.Errorf("vovk: unsupported HTTP method %q", verb)
	}
	if c == nil || !c.static {
		return fmt.Errorf("%w; check the controller method named %q used with @%s",
			ErrNotAController, name, verb.decoratorName())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activated {
		return fmt.Errorf("%w: segment %q", ErrActivated, s.name)
	}

	byController := s.routes[verb]
	if byController == nil {
		byController = make(map[*Controller]map[string]string)
		s.routes[verb] = byController
	}
	paths := byController[c]
	if other, ok := paths[path]; ok && other != name {
		return fmt.Errorf("%w: %s %q is claimed by both %s.%s and %s.%s",
			ErrRouteConflict, verb, path, c.name, other, c.name, name)
	}

	if err := c.setRoute(name, verb, path); err != nil {
		return err
	}

	if paths == nil {
		paths = make(map[string]string)
		byController[c] = paths
	}
	paths[path] = name
	s.order[verb] = append(s.order[verb], routeRef{controller: c, path: path})
	return nil
}

// ActivateOptions configures ActivateControllers.
type ActivateOptions struct {
	// Development enables the controllerName == name check.
	Development bool

	// OnError is attached to every controller and observes each error a
	// routed call returns.
	OnError func(ctx context.Context, err error)

	// OnMetadata receives the segment's schema document and a deep-equality
	// comparator. Its error is returned from ActivateControllers.
	OnMetadata func(doc *schema.Document, equal func(a, b any) bool) error

	// Workers are added to the emitted document's workers map.
	Workers []*Worker
}

// ActivateControllers freezes the segment and returns its dispatchers.
//
// Every controller must have been created with NewController. Two controllers
// claiming the same verb and full path fail with ErrRouteConflict. When
// OnMetadata is set, every controller needs a controllerName.
func (s *Segment) ActivateControllers(controllers []*Controller, opts ActivateOptions) (*Handlers, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activated {
		return nil, fmt.Errorf("%w: segment %q", ErrActivated, s.name)
	}

	included := make(map[*Controller]bool, len(controllers))
	for _, c := range controllers {
		if c == nil || !c.static {
			return nil, fmt.Errorf("%w: activateControllers received a value not created with NewController", ErrNotAController)
		}
		if opts.Development && c.controllerName != "" && c.controllerName != c.name {
			return nil, fmt.Errorf("%w: controller %q has controllerName %q",
				ErrControllerNameMismatch, c.name, c.controllerName)
		}
		included[c] = true
	}

	handlers, err := s.buildHandlers(included)
	if err != nil {
		return nil, err
	}

	var doc *schema.Document
	if opts.OnMetadata != nil {
		doc, err = s.document(controllers, opts.Workers)
		if err != nil {
			return nil, err
		}
	}

	for _, c := range controllers {
		c.mu.Lock()
		c.activated = true
		c.onError = opts.OnError
		c.mu.Unlock()
	}
	s.activated = true

	if doc != nil {
		if err := opts.OnMetadata(doc, schema.Equal); err != nil {
			return handlers, err
		}
	}
	return handlers, nil
}

// buildHandlers turns the verb tables into full-path dispatchers. Callers
// must hold s.mu.
func (s *Segment) buildHandlers(included map[*Controller]bool) (*Handlers, error) {
	h := &Handlers{dispatchers: make(map[HTTPMethod]*Dispatcher, len(Methods))}
	for _, verb := range Methods {
		d := &Dispatcher{method: verb, routes: make(map[string]*Route)}
		for _, ref := range s.order[verb] {
			if !included[ref.controller] {
				continue
			}
			name, ok := s.routes[verb][ref.controller][ref.path]
			if !ok {
				continue
			}
			full := joinPath(ref.controller.prefix, ref.path)
			if prev, ok := d.routes[full]; ok {
				if prev.Controller == ref.controller && prev.Name == name {
					continue
				}
				return nil, fmt.Errorf("%w: %s %q is claimed by both %s.%s and %s.%s",
					ErrRouteConflict, verb, full, prev.Controller.name, prev.Name, ref.controller.name, name)
			}
			r := &Route{Method: verb, Path: full, Controller: ref.controller, Name: name}
			d.routes[full] = r
			d.order = append(d.order, r)
		}
		h.dispatchers[verb] = d
	}
	return h, nil
}

// document builds the schema document for the activated controllers.
func (s *Segment) document(controllers []*Controller, workers []*Worker) (*schema.Document, error) {
	doc := schema.NewDocument(s.name)
	for _, c := range controllers {
		if c.controllerName == "" {
			return nil, fmt.Errorf("%w: client metadata error: controller %q does not have a controllerName",
				ErrMissingControllerName, c.name)
		}
		if doc.Controllers.Has(c.controllerName) {
			return nil, fmt.Errorf("vovk: controllerName %q is used by more than one controller", c.controllerName)
		}
		if err := doc.AddController(c.Metadata()); err != nil {
			return nil, err
		}
	}
	for _, w := range workers {
		if w == nil {
			return nil, errors.New("vovk: nil worker")
		}
		if doc.Workers.Has(w.name) {
			return nil, fmt.Errorf("vovk: worker %q is listed more than once", w.name)
		}
		doc.AddWorker(w.Metadata())
	}
	return doc, nil
}
